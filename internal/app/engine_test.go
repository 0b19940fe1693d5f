package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgeflix/internal/config"
	"github.com/dropDatabas3/edgeflix/internal/dispatch"
	"github.com/dropDatabas3/edgeflix/internal/index"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

func newEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Zones = []index.Record{{ID: "eu-west", Attributes: map[string]any{"name": "EU West"}}}
	cfg.Index.Instances = []index.Record{{ID: "i-1", Attributes: map[string]any{"addr": "10.0.0.1"}}}
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineDispatchBuiltins(t *testing.T) {
	e := newEngine(t, nil)

	resp := e.Dispatcher.Dispatch(context.Background(), dispatch.KindOrder, dispatch.NewRequest(dispatch.KindOrder, map[string]any{
		"order_id": "o-1", dispatch.PayloadZoneID: "eu-west", dispatch.PayloadInstanceID: "i-1",
	}))
	require.Equal(t, dispatch.StatusSuccess, resp.Status, resp.Message)
	assert.Equal(t, "Order processed", resp.Message)

	first := e.Dispatcher.Dispatch(context.Background(), dispatch.KindReport, dispatch.NewRequest(dispatch.KindReport, map[string]any{"report": "monthly"}))
	second := e.Dispatcher.Dispatch(context.Background(), dispatch.KindReport, dispatch.NewRequest(dispatch.KindReport, map[string]any{"report": "monthly"}))
	assert.False(t, first.Cached)
	assert.True(t, second.Cached, "report_service is cached by default")

	e.Dispatcher.Wait()
	mem := e.Index.(*index.Memory)
	assert.Equal(t, 3, mem.Count(index.CollectionEvents))
}

func TestEngineBoundsIndexedEvents(t *testing.T) {
	e := newEngine(t, func(c *config.Config) { c.Index.Memory.EventsCap = 2 })

	for i := 0; i < 5; i++ {
		resp := e.Dispatcher.Dispatch(context.Background(), dispatch.KindUser, dispatch.NewRequest(dispatch.KindUser, map[string]any{"user_id": "u-1"}))
		require.Equal(t, dispatch.StatusSuccess, resp.Status, resp.Message)
	}
	e.Dispatcher.Wait()
	assert.Equal(t, 2, e.Index.(*index.Memory).Count(index.CollectionEvents))
}

func TestEngineOnlyConfiguredServices(t *testing.T) {
	e := newEngine(t, func(c *config.Config) {
		c.Services = []config.ServiceConfig{{Kind: "user_service", CacheMode: "wait"}}
	})
	resp := e.Dispatcher.Dispatch(context.Background(), dispatch.KindOrder, dispatch.NewRequest(dispatch.KindOrder, nil))
	assert.Equal(t, dispatch.CodeServiceNotFound, resp.Code)
}

func TestEngineOnboardToItselfAsEdge(t *testing.T) {
	e := newEngine(t, nil)
	edge := httptest.NewServer(e.Handler)
	defer edge.Close()

	e2 := newEngine(t, func(c *config.Config) {
		c.Pipeline.Edges = []string{edge.URL}
		c.Pipeline.Formats = []string{"mp4"}
		c.Pipeline.Resolutions = []string{"1080p", "720p"}
	})

	rep, err := e2.Pipeline.OnboardMovie(context.Background(), pipeline.MovieDescriptor{
		ID:          "m-1",
		RawAsset:    pipeline.Asset{URI: "s3://raw/m-1.mov"},
		Formats:     []pipeline.Format{pipeline.FormatMP4, pipeline.Format3GP},
		Resolutions: []pipeline.Resolution{pipeline.Res720p},
	})
	require.NoError(t, err)
	require.Len(t, rep.Distributed, 1)
	require.Len(t, rep.Failed, 1, "3gp is not a configured rendition")
	assert.Equal(t, pipeline.StageTranscode, rep.Failed[0].FailedStage)

	recs, err := e.Index.Lookup(context.Background(), index.CollectionReplicas, "m-1/mp4/720p")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestEngineHTTPHealthz(t *testing.T) {
	e := newEngine(t, nil)
	srv := httptest.NewServer(e.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Status   string                       `json:"status"`
		Breakers map[string]map[string]string `json:"breakers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.Breakers["dispatch"]["user_service"])
	assert.Equal(t, "closed", body.Breakers["pipeline"]["transcode"])
}

func TestEngineRequiresTokenWhenSecretSet(t *testing.T) {
	e := newEngine(t, func(c *config.Config) { c.Auth.JWTSecret = "shared" })
	srv := httptest.NewServer(e.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/dispatch/user_service", "application/json", strings.NewReader(`{"user_id":"u"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, _, err := e.Issuer.IssueAccess("test", time.Minute, nil)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/dispatch/user_service", strings.NewReader(`{"user_id":"u"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
