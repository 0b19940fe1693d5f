package http

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	jwtx "github.com/dropDatabas3/edgeflix/internal/jwt"
	"github.com/dropDatabas3/edgeflix/internal/rate"
)

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, kind dispatch.ServiceKind, req dispatch.Request) dispatch.Response {
	resp := dispatch.Success("ok", req.Payload)
	resp.RequestID, resp.Kind = req.ID, kind
	return resp
}

func post(h http.Handler, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterPropagatesRequestID(t *testing.T) {
	h := NewRouter(Deps{Dispatcher: echoDispatcher{}})
	rr := post(h, "/v1/dispatch/user_service", `{"user_id":"u1"}`, map[string]string{"X-Request-ID": "rid-123"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rid-123", rr.Header().Get("X-Request-ID"))
	assert.Contains(t, rr.Body.String(), `"request_id":"rid-123"`)
}

func TestRouterRequiresBearerWhenSecretSet(t *testing.T) {
	iss := jwtx.NewIssuer("edgeflix", "test-secret")
	h := NewRouter(Deps{Dispatcher: echoDispatcher{}, Issuer: iss})

	rr := post(h, "/v1/dispatch/user_service", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tok, _, err := iss.IssueAccess("cli", time.Minute, nil)
	require.NoError(t, err)
	rr = post(h, "/v1/dispatch/user_service", `{}`, map[string]string{"Authorization": "Bearer " + tok})
	assert.Equal(t, http.StatusOK, rr.Code)

	// healthz queda fuera del grupo autenticado
	hr := httptest.NewRecorder()
	h.ServeHTTP(hr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, hr.Code)
}

func TestRouterRateLimitsDispatch(t *testing.T) {
	h := NewRouter(Deps{Dispatcher: echoDispatcher{}, Limiter: rate.NewMemoryLimiter(2, time.Minute)})
	for i := 0; i < 2; i++ {
		rr := post(h, "/v1/dispatch/user_service", `{}`, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := post(h, "/v1/dispatch/user_service", `{}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRouterNotFound(t *testing.T) {
	h := NewRouter(Deps{})
	rr := post(h, "/v1/movies", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/v1/edge/replicas/:param", normalizePath("/v1/edge/replicas/5f0c8a3e-1f2b-4c3d-9e8f-0a1b2c3d4e5f"))
	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/v1/dispatch/user_service", normalizePath("/v1/dispatch/user_service?x=1"))
}

func TestServeListenerShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, ServerConfig{ShutdownTimeout: time.Second}, NewRouter(Deps{})) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
