package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropDatabas3/edgeflix/internal/breaker"
	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	"github.com/dropDatabas3/edgeflix/internal/index"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

type fakeDispatcher struct {
	got  dispatch.Request
	kind dispatch.ServiceKind
	fn   func(dispatch.Request) dispatch.Response
}

func (f *fakeDispatcher) Dispatch(_ context.Context, kind dispatch.ServiceKind, req dispatch.Request) dispatch.Response {
	f.got, f.kind = req, kind
	return f.fn(req)
}

func withParams(r *http.Request, kv ...string) *http.Request {
	rc := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rc.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func jsonReq(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestDispatchSuccess(t *testing.T) {
	fd := &fakeDispatcher{fn: func(req dispatch.Request) dispatch.Response {
		return dispatch.Success("User authenticated", map[string]any{"user_id": req.String("user_id")})
	}}
	c := NewDispatchController(fd)

	rr := httptest.NewRecorder()
	c.Dispatch(rr, withParams(jsonReq(http.MethodPost, "/v1/dispatch/user_service", `{"user_id":"u1"}`), "kind", "user_service"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, dispatch.KindUser, fd.kind)
	assert.Equal(t, "u1", fd.got.String("user_id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "User authenticated", body["message"])
}

func TestDispatchBreakerOpenSetsRetryAfter(t *testing.T) {
	d, err := dispatch.New(dispatch.Deps{
		Logger:        zap.NewNop(),
		BreakerConfig: breaker.Config{Threshold: 1, Window: time.Minute, Cooldown: 30 * time.Second},
		Registry: []dispatch.Registration{{
			Kind: dispatch.KindOrder,
			Handler: dispatch.HandlerFunc(func(context.Context, dispatch.Request) (dispatch.Response, error) {
				return dispatch.Response{}, errors.New("db down")
			}),
		}},
	})
	require.NoError(t, err)
	c := NewDispatchController(d)

	rr := httptest.NewRecorder()
	c.Dispatch(rr, withParams(jsonReq(http.MethodPost, "/", `{}`), "kind", "order_service"))
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = httptest.NewRecorder()
	c.Dispatch(rr, withParams(jsonReq(http.MethodPost, "/", `{}`), "kind", "order_service"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestDispatchInvalidJSON(t *testing.T) {
	fd := &fakeDispatcher{fn: func(dispatch.Request) dispatch.Response { return dispatch.Success("", nil) }}
	rr := httptest.NewRecorder()
	NewDispatchController(fd).Dispatch(rr, withParams(jsonReq(http.MethodPost, "/", `{bad`), "kind", "user_service"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type fakeOnboarder struct {
	rep pipeline.DistributionReport
	err error
}

func (f *fakeOnboarder) OnboardMovie(context.Context, pipeline.MovieDescriptor) (pipeline.DistributionReport, error) {
	return f.rep, f.err
}

func TestOnboardInvalidDescriptor(t *testing.T) {
	c := NewMoviesController(&fakeOnboarder{err: pipeline.ErrInvalidDescriptor})
	rr := httptest.NewRecorder()
	c.Onboard(rr, jsonReq(http.MethodPost, "/v1/movies", `{"id":""}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOnboardCanceled(t *testing.T) {
	c := NewMoviesController(&fakeOnboarder{err: context.Canceled})
	rr := httptest.NewRecorder()
	c.Onboard(rr, jsonReq(http.MethodPost, "/v1/movies", `{"id":"m"}`))
	assert.Equal(t, 499, rr.Code)
}

func TestOnboardReport(t *testing.T) {
	rep := pipeline.DistributionReport{
		MovieID:     "m-1",
		Distributed: []pipeline.Replica{{MovieID: "m-1", Format: pipeline.FormatMP4, Resolution: pipeline.Res720p, State: pipeline.Distributed}},
		Failed:      []pipeline.Replica{},
	}
	c := NewMoviesController(&fakeOnboarder{rep: rep})
	rr := httptest.NewRecorder()
	c.Onboard(rr, jsonReq(http.MethodPost, "/v1/movies", `{"id":"m-1","raw_asset":{"uri":"s3://x"},"formats":["mp4"],"resolutions":["720p"]}`))

	require.Equal(t, http.StatusOK, rr.Code)
	var view ReportView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "m-1", view.MovieID)
	require.Len(t, view.Distributed, 1)
	assert.Empty(t, view.Failed)
	assert.Nil(t, view.Retry)
}

type flakyIndexer struct{ err error }

func (f flakyIndexer) Index(context.Context, string, index.Record) error { return f.err }

func TestReceiveReplica(t *testing.T) {
	mem := index.NewMemory()
	c := NewEdgeController(mem)

	rr := httptest.NewRecorder()
	req := withParams(jsonReq(http.MethodPut, "/", `{"uri":"edgeflix://renditions/m-1/720p.mp4","digest":"abc"}`),
		"movie", "m-1", "format", "mp4", "resolution", "720p")
	c.ReceiveReplica(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	recs, err := mem.Lookup(context.Background(), index.CollectionReplicas, "m-1/mp4/720p")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "abc", recs[0].Attributes["digest"])
}

func TestReceiveReplicaTwiceKeepsLatest(t *testing.T) {
	mem := index.NewMemory()
	c := NewEdgeController(mem)
	for _, digest := range []string{"first", "second"} {
		rr := httptest.NewRecorder()
		req := withParams(jsonReq(http.MethodPut, "/", `{"uri":"edgeflix://renditions/m-1/720p.mp4","digest":"`+digest+`"}`),
			"movie", "m-1", "format", "mp4", "resolution", "720p")
		c.ReceiveReplica(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code)
	}

	recs, err := mem.Lookup(context.Background(), index.CollectionReplicas, "m-1/mp4/720p")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "second", recs[0].Attributes["digest"])
}

func TestReceiveReplicaMismatchAndIndexDown(t *testing.T) {
	rr := httptest.NewRecorder()
	NewEdgeController(index.NewMemory()).ReceiveReplica(rr, withParams(
		jsonReq(http.MethodPut, "/", `{"movie_id":"other","uri":"x"}`), "movie", "m-1", "format", "mp4", "resolution", "720p"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	NewEdgeController(flakyIndexer{err: errors.New("down")}).ReceiveReplica(rr, withParams(
		jsonReq(http.MethodPut, "/", `{"uri":"x"}`), "movie", "m-1", "format", "mp4", "resolution", "720p"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthzDegraded(t *testing.T) {
	set := breaker.NewSet(breaker.Config{Threshold: 1, Window: time.Minute, Cooldown: time.Minute}, []string{"user_service"})
	c := NewHealthController("test", map[string]*breaker.Set{"dispatch": set}, nil)

	rr := httptest.NewRecorder()
	c.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "closed", resp.Breakers["dispatch"]["user_service"])

	_ = set.Get("user_service").Execute(context.Background(), func(context.Context) error { return errors.New("x") })
	rr = httptest.NewRecorder()
	c.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", resp.Status)
}
