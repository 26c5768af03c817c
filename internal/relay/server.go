package relay

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/mblarsen/wsl-notifyd/internal/correlate"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
)

// rendererServer serves the renderer side of the channel.
type rendererServer struct {
	rpc.UnimplementedNotifierServer
	s *Service
}

// RPC returns the notifier service the renderer connects to.
func (s *Service) RPC() rpc.NotifierServer {
	return &rendererServer{s: s}
}

// serveDuplex attaches a renderer stream to a channel and dispatches the
// replies read from it until the stream ends.
func serveDuplex[Out, In any](s *Service, ctx context.Context, ch *correlate.Channel[*Out, *In], send func(*Out) error, recv func() (*In, error)) error {
	detach := ch.Attach(send)
	s.checkReady()
	err := correlate.Drain(ctx, recv, func(in *In) { ch.Dispatch(in) })
	detach(err)
	return err
}

func (r *rendererServer) Notify(stream grpc.BidiStreamingServer[rpc.NotifyResult, rpc.NotifyCall]) error {
	slog.Debug("Renderer attached notify stream")
	err := serveDuplex(r.s, stream.Context(), r.s.notify, stream.Send, stream.Recv)
	slog.Debug("Renderer notify stream ended", "error", err)
	return err
}

func (r *rendererServer) CloseNotification(stream grpc.BidiStreamingServer[rpc.CloseResult, rpc.CloseCall]) error {
	slog.Debug("Renderer attached close stream")
	err := serveDuplex(r.s, stream.Context(), r.s.close, stream.Send, stream.Recv)
	slog.Debug("Renderer close stream ended", "error", err)
	return err
}

func (r *rendererServer) ActionInvoked(stream grpc.ClientStreamingServer[rpc.ActionInvokedSignal, rpc.Empty]) error {
	err := correlate.Drain(stream.Context(), stream.Recv, func(sig *rpc.ActionInvokedSignal) {
		r.s.seq.deliver(sig.Session, sig.Seq, func() { r.s.emitAction(sig.ID, sig.ActionKey) })
	})
	if err != nil {
		slog.Warn("ActionInvoked stream failed", "error", err)
		return err
	}
	return stream.SendAndClose(&rpc.Empty{})
}

func (r *rendererServer) NotificationClosed(stream grpc.ClientStreamingServer[rpc.NotificationClosedSignal, rpc.Empty]) error {
	err := correlate.Drain(stream.Context(), stream.Recv, func(sig *rpc.NotificationClosedSignal) {
		r.s.seq.deliver(sig.Session, sig.Seq, func() { r.s.emitClosed(sig.ID, sig.Reason) })
	})
	if err != nil {
		slog.Warn("NotificationClosed stream failed", "error", err)
		return err
	}
	return stream.SendAndClose(&rpc.Empty{})
}

func (r *rendererServer) NotificationReplied(stream grpc.ClientStreamingServer[rpc.NotificationRepliedSignal, rpc.Empty]) error {
	err := correlate.Drain(stream.Context(), stream.Recv, func(sig *rpc.NotificationRepliedSignal) {
		r.s.seq.deliver(sig.Session, sig.Seq, func() { r.s.emitReplied(sig.ID, sig.Text) })
	})
	if err != nil {
		slog.Warn("NotificationReplied stream failed", "error", err)
		return err
	}
	return stream.SendAndClose(&rpc.Empty{})
}

// Shutdown registers the renderer as shutdown listener and sends it one
// order when the supervisor wants it gone.
func (r *rendererServer) Shutdown(_ *rpc.ShutdownRequest, stream grpc.ServerStreamingServer[rpc.ShutdownOrder]) error {
	orders, unsubscribe := r.s.starter.SubscribeShutdown()
	defer unsubscribe()
	select {
	case <-orders:
		slog.Debug("Asking renderer to shut down")
		return stream.Send(&rpc.ShutdownOrder{Reason: "idle"})
	case <-stream.Context().Done():
		return nil
	case <-r.s.done:
		return stream.Send(&rpc.ShutdownOrder{Reason: "relay stopping"})
	}
}

func (r *rendererServer) MessageDurationChanged(_ context.Context, in *rpc.MessageDuration) (*rpc.Empty, error) {
	if in.Duration > 0 {
		r.s.duration.Store(int64(in.Duration))
		slog.Info("Renderer message duration changed", "duration", in.Duration.Round(time.Millisecond))
	}
	return &rpc.Empty{}, nil
}
