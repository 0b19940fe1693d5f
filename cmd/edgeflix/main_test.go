package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgeflix/internal/app"
	"github.com/dropDatabas3/edgeflix/internal/config"
	"github.com/dropDatabas3/edgeflix/internal/http/handlers"
	"github.com/dropDatabas3/edgeflix/internal/pipeline"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startEngine(t *testing.T) *httptest.Server {
	t.Helper()
	e, err := app.New(context.Background(), config.Default(), app.Options{})
	require.NoError(t, err)
	srv := httptest.NewServer(e.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = e.Close()
	})
	return srv
}

func TestDispatchCommand(t *testing.T) {
	srv := startEngine(t)
	out, err := runCLI(t, "dispatch", "user_service", "--url", srv.URL, "--data", `{"user_id":"u1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "success OK User authenticated")
}

func TestDispatchCommandUnknownKind(t *testing.T) {
	srv := startEngine(t)
	out, err := runCLI(t, "dispatch", "billing_service", "--url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, out, "SERVICE_NOT_FOUND")
}

func TestDispatchCommandRejectsBadJSON(t *testing.T) {
	_, err := runCLI(t, "dispatch", "user_service", "--data", "{nope")
	require.Error(t, err)
}

func TestConfigPrintRedactsSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "very-secret")
	out, err := runCLI(t, "config", "print")
	require.NoError(t, err)
	assert.NotContains(t, out, "very-secret")
	assert.Contains(t, out, "threshold: 5")
}

func TestRenderReport(t *testing.T) {
	out := renderReport(handlers.ReportView{
		MovieID: "m-1",
		Distributed: []handlers.ReplicaView{{Replica: pipeline.Replica{
			Format: pipeline.FormatMP4, Resolution: pipeline.Res720p, State: pipeline.Distributed, Targets: []string{"edge-a"},
		}}},
		Failed: []handlers.ReplicaView{{Replica: pipeline.Replica{
			Format: pipeline.Format3GP, Resolution: pipeline.Res4K, State: pipeline.Failed, FailedStage: pipeline.StageTranscode,
		}, Error: "codec crash"}},
	})
	assert.True(t, strings.HasPrefix(out, "movie m-1: 1 distributed, 1 failed"))
	assert.Contains(t, out, "edge-a")
	assert.Contains(t, out, "codec crash")
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "edgeflix.toml")
	_, err := runCLI(t, "config", "init", "--path", p)
	require.NoError(t, err)

	_, err = runCLI(t, "config", "init", "--path", p)
	require.Error(t, err, "refuses to overwrite")

	out, err := runCLI(t, "--config", p, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "config ok")
}
