package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type staticHealth struct{ err error }

func (s staticHealth) HealthCheck(context.Context) error { return s.err }

func testConfig() *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Address = "127.0.0.1:0"
	return cfg
}

func checkHealth(t *testing.T, addr string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestServerServesHealth(t *testing.T) {
	srv, err := NewServer(testConfig(), staticHealth{nil})
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	defer srv.StopNow()

	assert.True(t, srv.IsRunning())
	assert.NotEmpty(t, srv.Address())

	status := checkHealth(t, srv.Address())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestServerReportsStoreOutage(t *testing.T) {
	srv, err := NewServer(testConfig(), staticHealth{errors.New("store down")})
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	defer srv.StopNow()

	status := checkHealth(t, srv.Address())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}

func TestServerNilCheckerAlwaysServing(t *testing.T) {
	srv, err := NewServer(testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	defer srv.StopNow()

	status := checkHealth(t, srv.Address())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestServerRefusesDoubleStart(t *testing.T) {
	srv, err := NewServer(testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	defer srv.StopNow()

	assert.Error(t, srv.StartAsync())
}

func TestServerStopIdempotent(t *testing.T) {
	srv, err := NewServer(testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	srv.Stop()
	assert.False(t, srv.IsRunning())
	srv.Stop() // no-op
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	_, err := NewServer(&ServerConfig{Address: "no-port", MaxRecvMsgSize: 1, MaxSendMsgSize: 1}, nil)
	assert.Error(t, err)
}
