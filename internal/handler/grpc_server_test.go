package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"vasset/parsing-service/internal/utils"
)

func dialParser(t *testing.T, p Parser) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterParserServiceServer(srv, NewGRPCServer(p, time.Second, zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPC_ParseURL(t *testing.T) {
	p := newFakeParser()
	p.results[videoURL] = sampleMeta()
	conn := dialParser(t, p)

	var resp ParseURLResponse
	err := conn.Invoke(context.Background(), parseURLMethod, &ParseURLRequest{URL: videoURL, ForceRefresh: true}, &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Video)
	assert.Equal(t, "7549035040701844779", resp.Video.VideoID)
	assert.Equal(t, "A", resp.Video.Author)
	assert.True(t, p.requests[0].ForceRefresh)
}

func TestGRPC_ParseURL_InvalidArgument(t *testing.T) {
	conn := dialParser(t, newFakeParser())

	var resp ParseURLResponse
	err := conn.Invoke(context.Background(), parseURLMethod, &ParseURLRequest{URL: "bad"}, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ValidateURL(t *testing.T) {
	p := newFakeParser()
	p.results[videoURL] = sampleMeta()
	conn := dialParser(t, p)

	var resp ValidateURLResponse
	require.NoError(t, conn.Invoke(context.Background(), validateURLMethod, &ValidateURLRequest{URL: videoURL}, &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "douyin", resp.Platform)
}

func TestMapErrorToGRPCStatus(t *testing.T) {
	exhausted := &utils.ResolutionExhaustedError{
		VideoID:  "1",
		Attempts: []utils.AttemptError{{Strategy: "api", Err: utils.ErrNoData}},
	}
	notFound := &utils.ResolutionExhaustedError{
		VideoID:  "1",
		Attempts: []utils.AttemptError{{Strategy: "api", Err: utils.ErrVideoNotFound}},
	}

	assert.Equal(t, codes.InvalidArgument, status.Code(mapErrorToGRPCStatus(utils.ErrInvalidURL)))
	assert.Equal(t, codes.Unavailable, status.Code(mapErrorToGRPCStatus(exhausted)))
	assert.Equal(t, codes.NotFound, status.Code(mapErrorToGRPCStatus(notFound)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(mapErrorToGRPCStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Internal, status.Code(mapErrorToGRPCStatus(assert.AnError)))
}
