package renderer

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/mblarsen/wsl-notifyd/internal/rpc"
)

// fakeRelay hands the streams the renderer opens to the test.
type fakeRelay struct {
	rpc.UnimplementedNotifierServer
	notify    chan grpc.BidiStreamingServer[rpc.NotifyResult, rpc.NotifyCall]
	close     chan grpc.BidiStreamingServer[rpc.CloseResult, rpc.CloseCall]
	signals   chan any
	durations chan time.Duration
	shutdown  chan string
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		notify:    make(chan grpc.BidiStreamingServer[rpc.NotifyResult, rpc.NotifyCall], 4),
		close:     make(chan grpc.BidiStreamingServer[rpc.CloseResult, rpc.CloseCall], 4),
		signals:   make(chan any, 32),
		durations: make(chan time.Duration, 4),
		shutdown:  make(chan string, 1),
	}
}

func (f *fakeRelay) Notify(stream grpc.BidiStreamingServer[rpc.NotifyResult, rpc.NotifyCall]) error {
	f.notify <- stream
	<-stream.Context().Done()
	return nil
}

func (f *fakeRelay) CloseNotification(stream grpc.BidiStreamingServer[rpc.CloseResult, rpc.CloseCall]) error {
	f.close <- stream
	<-stream.Context().Done()
	return nil
}

func forward[T any](recv func() (*T, error), out chan<- any) error {
	for {
		m, err := recv()
		if err != nil {
			return nil
		}
		out <- m
	}
}

func (f *fakeRelay) ActionInvoked(stream grpc.ClientStreamingServer[rpc.ActionInvokedSignal, rpc.Empty]) error {
	return forward(stream.Recv, f.signals)
}

func (f *fakeRelay) NotificationClosed(stream grpc.ClientStreamingServer[rpc.NotificationClosedSignal, rpc.Empty]) error {
	return forward(stream.Recv, f.signals)
}

func (f *fakeRelay) NotificationReplied(stream grpc.ClientStreamingServer[rpc.NotificationRepliedSignal, rpc.Empty]) error {
	return forward(stream.Recv, f.signals)
}

func (f *fakeRelay) Shutdown(_ *rpc.ShutdownRequest, stream grpc.ServerStreamingServer[rpc.ShutdownOrder]) error {
	select {
	case reason := <-f.shutdown:
		return stream.Send(&rpc.ShutdownOrder{Reason: reason})
	case <-stream.Context().Done():
		return nil
	}
}

func (f *fakeRelay) MessageDurationChanged(_ context.Context, in *rpc.MessageDuration) (*rpc.Empty, error) {
	f.durations <- in.Duration
	return &rpc.Empty{}, nil
}
