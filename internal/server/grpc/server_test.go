package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))

	st, ok := status.FromError(toStatus(errorbank.NotFound("order not found")))
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "order not found", st.Message())

	st, _ = status.FromError(toStatus(errors.New("boom")))
	assert.Equal(t, codes.Internal, st.Code())

	original := status.Error(codes.Unavailable, "down")
	assert.Equal(t, original, toStatus(original))
}

func TestHealthServing(t *testing.T) {
	server := NewServer(zap.NewNop())
	hs := NewHealth(server)
	defer hs.Shutdown()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	defer server.Stop()

	conn, err := grpc.NewClient(ln.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
