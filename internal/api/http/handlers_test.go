package http

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
	"github.com/GriffinCanCode/cookiefetch/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/fetch"
	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/scope"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*gin.Engine, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "visited", Value: "yes", Path: "/"})
		_, _ = io.WriteString(w, "hello from "+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)

	pool := client.NewPool(client.Config{Capacity: 2})
	broker := session.NewBroker(session.Config{})
	fetcher := fetch.NewFetcher(pool, scope.MustNew(upstream.URL+"/*"), broker, nil, zap.NewNop(), nil)
	t.Cleanup(fetcher.Close)

	tracer := tracing.New("test", zap.NewNop())
	t.Cleanup(tracer.Close)

	router := gin.New()
	NewHandlers(broker, fetcher, pool, tracer, zap.NewNop()).Register(router)
	return router, upstream
}

func post(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestConnectAllocatesIncreasingIDs(t *testing.T) {
	router, _ := setup(t)

	for want := 0; want < 3; want++ {
		w := post(router, "/connect", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp ConnectResponse
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.ID)
	}
}

func TestFetchOK(t *testing.T) {
	router, upstream := setup(t)

	w := post(router, "/fetch", `{"url": "`+upstream.URL+`/page"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		URL     string                                  `json:"url"`
		Status  int                                     `json:"status"`
		Headers map[string][]string                     `json:"headers"`
		Cookies map[string]map[string]fetch.CookieProps `json:"cookies"`
		Body    string                                  `json:"body"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, upstream.URL+"/page", resp.URL)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, resp.Headers, "set-cookie")
	assert.Equal(t, "yes", resp.Cookies["127.0.0.1"]["visited"].Value)

	body, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello from /page", string(body))
}

func TestFetchErrors(t *testing.T) {
	router, upstream := setup(t)

	tests := []struct {
		name     string
		body     string
		status   int
		kind     string
		checkURL string
	}{
		{"empty body", "", http.StatusBadRequest, "InvalidRequest", ""},
		{"malformed json", "{", http.StatusBadRequest, "InvalidRequest", ""},
		{"invalid url", `{"url": "not a url"}`, http.StatusBadRequest, "InvalidUrl", ""},
		{"outside scope", `{"url": "http://example.invalid/"}`, http.StatusForbidden, "NotAllowed", "http://example.invalid/"},
		{"bad redirect", `{"url": "` + upstream.URL + `/", "options": {"redirect": "sometimes"}}`, http.StatusBadRequest, "InvalidRequest", ""},
		{"unknown session", `{"url": "` + upstream.URL + `/", "options": {"session": 42}}`, http.StatusNotFound, "SessionUnestablished", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/fetch", tt.body)
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.NotEmpty(t, resp.Error.Message)
			if tt.checkURL != "" {
				assert.Equal(t, tt.checkURL, resp.Error.URL)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router, _ := setup(t)
	post(router, "/connect", "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Sessions)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind fetch.Kind
		want int
	}{
		{fetch.KindInvalidURL, http.StatusBadRequest},
		{fetch.KindInvalidCookie, http.StatusBadRequest},
		{fetch.KindInvalidCookieDomain, http.StatusBadRequest},
		{fetch.KindInvalidHeader, http.StatusBadRequest},
		{fetch.KindNotAllowed, http.StatusForbidden},
		{fetch.KindSessionConsumed, http.StatusConflict},
		{fetch.KindSessionUnestablished, http.StatusNotFound},
		{fetch.KindTransport, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}
