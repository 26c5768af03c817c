package rpc_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/mblarsen/wsl-notifyd/internal/pki"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
	"github.com/mblarsen/wsl-notifyd/internal/rpc/rpctest"
)

// echoServer answers the duplex streams itself and records signals.
type echoServer struct {
	rpc.UnimplementedNotifierServer
	duration atomic.Int64
	calls    atomic.Int32
	closed   chan *rpc.NotificationClosedSignal
}

func (s *echoServer) Notify(stream grpc.BidiStreamingServer[rpc.NotifyResult, rpc.NotifyCall]) error {
	s.calls.Add(1)
	if err := stream.Send(&rpc.NotifyCall{Serial: 1, ID: 9, Document: "<toast/>", Attachments: map[string][]byte{"h": {1}}}); err != nil {
		return err
	}
	res, err := stream.Recv()
	if err != nil {
		return err
	}
	if res.Serial != 1 || res.ID != 9 || !res.Status.Success {
		return errors.New("unexpected result")
	}
	return nil
}

func (s *echoServer) NotificationClosed(stream grpc.ClientStreamingServer[rpc.NotificationClosedSignal, rpc.Empty]) error {
	for {
		sig, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return stream.SendAndClose(&rpc.Empty{})
		}
		if err != nil {
			return err
		}
		s.closed <- sig
	}
}

func (s *echoServer) Shutdown(_ *rpc.ShutdownRequest, stream grpc.ServerStreamingServer[rpc.ShutdownOrder]) error {
	return stream.Send(&rpc.ShutdownOrder{Reason: "idle"})
}

func (s *echoServer) MessageDurationChanged(_ context.Context, in *rpc.MessageDuration) (*rpc.Empty, error) {
	s.calls.Add(1)
	s.duration.Store(int64(in.Duration))
	return &rpc.Empty{}, nil
}

func newEcho() *echoServer {
	return &echoServer{closed: make(chan *rpc.NotificationClosedSignal, 4)}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestUnaryOverCBOR(t *testing.T) {
	srv := newEcho()
	client := rpc.NewNotifierClient(rpctest.Start(t, srv).Dial(t))

	_, err := client.MessageDurationChanged(testContext(t), &rpc.MessageDuration{Duration: 7 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, int64(7*time.Second), srv.duration.Load())
}

func TestDuplexCallReply(t *testing.T) {
	client := rpc.NewNotifierClient(rpctest.Start(t, newEcho()).Dial(t))
	ctx := testContext(t)

	stream, err := client.Notify(ctx)
	require.NoError(t, err)
	call, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), call.ID)
	assert.Equal(t, []byte{1}, call.Attachments["h"])

	require.NoError(t, stream.Send(&rpc.NotifyResult{Serial: call.Serial, ID: call.ID, Status: rpc.OK()}))
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClientStreamingSignals(t *testing.T) {
	srv := newEcho()
	client := rpc.NewNotifierClient(rpctest.Start(t, srv).Dial(t))

	stream, err := client.NotificationClosed(testContext(t))
	require.NoError(t, err)
	require.NoError(t, stream.Send(&rpc.NotificationClosedSignal{Session: 1, Seq: 1, ID: 3, Reason: rpc.ReasonDismissed}))
	_, err = stream.CloseAndRecv()
	require.NoError(t, err)

	sig := <-srv.closed
	assert.Equal(t, uint32(3), sig.ID)
	assert.Equal(t, rpc.ReasonDismissed, sig.Reason)
}

func TestServerStreamingShutdown(t *testing.T) {
	client := rpc.NewNotifierClient(rpctest.Start(t, newEcho()).Dial(t))

	stream, err := client.Shutdown(testContext(t), &rpc.ShutdownRequest{})
	require.NoError(t, err)
	order, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "idle", order.Reason)
}

func TestForeignCertificateRejectedBeforeDispatch(t *testing.T) {
	srv := newEcho()
	server := rpctest.Start(t, srv)

	other, err := pki.NewSession()
	require.NoError(t, err)
	foreign, err := other.IssueBundle()
	require.NoError(t, err)
	good, err := server.Session.IssueBundle()
	require.NoError(t, err)
	foreign.RootCert = good.RootCert

	client := rpc.NewNotifierClient(server.DialBundle(t, foreign))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = client.MessageDurationChanged(ctx, &rpc.MessageDuration{Duration: time.Second})
	assert.Error(t, err)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestStatus(t *testing.T) {
	assert.NoError(t, rpc.OK().Err())

	err := rpc.Failed(errors.New("toast failed")).Err()
	require.Error(t, err)
	assert.True(t, rpc.IsRemote(err))
	assert.Equal(t, "renderer: toast failed", err.Error())

	assert.EqualError(t, rpc.Status{}.Err(), "renderer: unknown error")
	assert.False(t, rpc.IsRemote(errors.New("transport")))
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("refused")
	err := error(&rpc.ConnectionError{Address: "127.0.0.1:1", Err: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
