package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatfabric/chat-node/config"
	"github.com/chatfabric/chat-node/internal/bus"
	"github.com/chatfabric/chat-node/internal/domain/model"
	"github.com/chatfabric/chat-node/internal/domain/registry"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error { return f.err }

type stubRegistrar struct {
	stats model.RegistryStats
}

func (stubRegistrar) OnConnect(registry.Connector)                                  {}
func (stubRegistrar) Register(context.Context, registry.Connector, []byte) error    { return nil }
func (stubRegistrar) Remove(registry.Connector)                                     {}
func (stubRegistrar) IsOnline(string) bool                                          { return false }
func (s stubRegistrar) Stats() model.RegistryStats                                  { return s.stats }

func testBuild() config.BuildInformation {
	return config.BuildInformation{
		Name:        "chat-node",
		Version:     "1.4.2",
		Environment: "staging",
		CommitHash:  "4be91aa",
	}
}

func newTestHandler(busUp bool, dbErr error) *Handler {
	fabric := bus.NewFake("node-a")
	fabric.SetConnected(busUp)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registrar := stubRegistrar{stats: model.RegistryStats{
		PendingConnections: 1,
		Collectives:        2,
		TotalConnections:   3,
	}}
	return NewHandler(testBuild(), fabric, fakePinger{err: dbErr}, registrar, logger)
}

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckReportsUp(t *testing.T) {
	rec := get(t, newTestHandler(true, nil), "/health-check")
	require.Equal(t, http.StatusOK, rec.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "UP", report.Status)
	require.Equal(t, "UP", report.Checks["bus"])
	require.Equal(t, "UP", report.Checks["database"])
	require.Equal(t, 3, report.Registry.TotalConnections)
	require.Equal(t, 2, report.Registry.Collectives)
}

func TestHealthCheckReportsBusOutage(t *testing.T) {
	rec := get(t, newTestHandler(false, nil), "/health-check")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "DOWN", report.Status)
	require.Equal(t, "DOWN", report.Checks["bus"])
	require.Equal(t, "UP", report.Checks["database"])
}

func TestHealthCheckReportsDatabaseOutage(t *testing.T) {
	rec := get(t, newTestHandler(true, errors.New("connection refused")), "/health-check")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "DOWN", report.Status)
	require.Equal(t, "DOWN", report.Checks["database"])
}

func TestBuildInfoServesApplicationManifest(t *testing.T) {
	rec := get(t, newTestHandler(true, nil), "/build-info")
	require.Equal(t, http.StatusOK, rec.Code)

	var build config.BuildInformation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &build))
	require.Equal(t, "chat-node", build.Name)
	require.Equal(t, "1.4.2", build.Version)
	require.Equal(t, "staging", build.Environment)
	require.Equal(t, "4be91aa", build.CommitHash)
}
