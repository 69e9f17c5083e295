package ipc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type statusLog struct{ calls []string }

func (s *statusLog) RecordIPC(op string, status int) {
	s.calls = append(s.calls, op+":"+strconv.Itoa(status))
}

func setup(t *testing.T) (*gin.Engine, *session.Broker, *statusLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := session.NewBroker(session.Config{})
	log := &statusLog{}
	router := gin.New()
	NewHandler(broker, zap.NewNop(), log).Register(router)
	return router, broker, log
}

func call(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		path    string
		op      Op
		id      int
		wantErr error
	}{
		{"/0/push", OpPush, 0, nil},
		{"/12/pop", OpPop, 12, nil},
		{"/3/close/upstream", OpCloseUpstream, 3, nil},
		{"/3/close/downstream/", OpCloseDownstream, 3, nil},
		{"/3", 0, 0, ErrMalformedPath},
		{"/3/close", 0, 0, ErrMalformedPath},
		{"/3/close/sideways", 0, 0, ErrMalformedPath},
		{"/3/push/extra/more", 0, 0, ErrMalformedPath},
		{"/x/push", 0, 0, ErrInvalidSessionID},
		{"/-1/push", 0, 0, ErrInvalidSessionID},
		{"/+1/push", 0, 0, ErrInvalidSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			op, id, err := ParsePath(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.op, op)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestPopStatuses(t *testing.T) {
	router, broker, log := setup(t)
	id := broker.Reserve()
	path := "/ipc/" + strconv.Itoa(id) + "/pop"

	w := call(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusAccepted, w.Code, "unclaimed session is pending")

	stream, err := broker.Claim(id)
	require.NoError(t, err)

	w = call(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	require.NoError(t, stream.Send(context.Background(), []byte("chunk")))
	w = call(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chunk", w.Body.String())

	stream.Finish()
	w = call(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusGone, w.Code)

	w = call(router, http.MethodPost, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "slot is released after end")

	assert.Equal(t, []string{"pop:202", "pop:204", "pop:200", "pop:410", "pop:404"}, log.calls)
}

func TestPushAndClose(t *testing.T) {
	router, broker, _ := setup(t)
	id := broker.Reserve()
	base := "/ipc/" + strconv.Itoa(id)

	w := call(router, http.MethodPost, base+"/push", "hello")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = call(router, http.MethodPost, base+"/close/upstream", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(router, http.MethodPost, base+"/push", "late")
	assert.Equal(t, http.StatusConflict, w.Code)

	stream, err := broker.Claim(id)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := stream.Upstream(context.Background()).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	w = call(router, http.MethodPost, base+"/close/downstream", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, broker.Len(), "slot is held until the end is observed")

	w = call(router, http.MethodPost, base+"/pop", "")
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, 0, broker.Len())
}

func TestProtocolErrors(t *testing.T) {
	router, _, _ := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown id", http.MethodPost, "/ipc/9/pop", http.StatusNotFound},
		{"unknown id push", http.MethodPost, "/ipc/9/push", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/ipc/0/pop", http.StatusMethodNotAllowed},
		{"bad operation", http.MethodPost, "/ipc/0/peek", http.StatusBadRequest},
		{"bad id", http.MethodPost, "/ipc/abc/pop", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(router, tt.method, tt.path, "")
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestPreflight(t *testing.T) {
	router, _, _ := setup(t)

	w := call(router, http.MethodOptions, "/ipc/0/push", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestPushTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	broker := session.NewBroker(session.Config{})
	h := NewHandler(broker, nil, nil)
	h.maxChunk = 4
	router := gin.New()
	h.Register(router)

	id := broker.Reserve()
	w := call(router, http.MethodPost, "/ipc/"+strconv.Itoa(id)+"/push", "too large")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
