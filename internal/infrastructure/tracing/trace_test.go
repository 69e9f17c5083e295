package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/cookiefetch/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanInheritsTrace(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, child.SpanID, SpanIDFrom(childCtx))
}

func TestExtractIgnoresInvalidIDs(t *testing.T) {
	h := http.Header{}
	h.Set(TraceHeader, "not-a-ulid")
	ctx := Extract(context.Background(), h)
	assert.Empty(t, TraceIDFrom(ctx))

	valid := id.NewTraceID()
	h.Set(TraceHeader, valid.String())
	ctx = Extract(context.Background(), h)
	assert.Equal(t, valid, TraceIDFrom(ctx))
}

func TestSubmittedSpansAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New("test", zap.New(core))

	span, _ := tracer.StartSpan(context.Background(), "work")
	span.SetTag("url", "http://example.com/")
	span.SetError(errors.New("boom"))
	span.Finish()
	tracer.Submit(span)
	tracer.Close()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("span completed with error").Len() == 1
	}, time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("span completed with error").All()[0]
	assert.Equal(t, "work", entry.ContextMap()["operation"])
	assert.Equal(t, "http://example.com/", entry.ContextMap()["url"])
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	var seen id.TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/ping", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	incoming := id.NewTraceID()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceHeader, incoming.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, incoming, seen)
	assert.Equal(t, incoming.String(), w.Header().Get(TraceHeader))
	assert.True(t, id.IsValid(w.Header().Get(SpanHeader)))
}
