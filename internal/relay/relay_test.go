package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/mblarsen/wsl-notifyd/internal/content"
	"github.com/mblarsen/wsl-notifyd/internal/correlate"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
	"github.com/mblarsen/wsl-notifyd/internal/rpc/rpctest"
)

const wait = 2 * time.Second

// fakeRenderer is the remote end of the duplex streams, driven by the test.
type fakeRenderer struct {
	client rpc.NotifierClient
	notify grpc.BidiStreamingClient[rpc.NotifyResult, rpc.NotifyCall]
	close  grpc.BidiStreamingClient[rpc.CloseResult, rpc.CloseCall]
	calls  chan *rpc.NotifyCall
	closes chan *rpc.CloseCall
}

func attachRenderer(t *testing.T, svc *Service, server *rpctest.Server) *fakeRenderer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := &fakeRenderer{
		client: rpc.NewNotifierClient(server.Dial(t)),
		calls:  make(chan *rpc.NotifyCall, 16),
		closes: make(chan *rpc.CloseCall, 16),
	}
	var err error
	r.notify, err = r.client.Notify(ctx)
	require.NoError(t, err)
	r.close, err = r.client.CloseNotification(ctx)
	require.NoError(t, err)
	go func() {
		for {
			c, err := r.notify.Recv()
			if err != nil {
				return
			}
			r.calls <- c
		}
	}()
	go func() {
		for {
			c, err := r.close.Recv()
			if err != nil {
				return
			}
			r.closes <- c
		}
	}()
	require.Eventually(t, func() bool {
		return svc.notify.Gate().Count() == 1 && svc.close.Gate().Count() == 1
	}, wait, time.Millisecond)
	return r
}

func (r *fakeRenderer) nextCall(t *testing.T) *rpc.NotifyCall {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(wait):
		t.Fatal("no notify call received")
		return nil
	}
}

func (r *fakeRenderer) answer(t *testing.T, c *rpc.NotifyCall, status rpc.Status) {
	t.Helper()
	require.NoError(t, r.notify.Send(&rpc.NotifyResult{Serial: c.Serial, ID: c.ID, Status: status}))
}

type notifyOutcome struct {
	id  uint32
	err error
}

func notifyAsync(svc *Service, ctx context.Context, replaces uint32, req content.Request) <-chan notifyOutcome {
	out := make(chan notifyOutcome, 1)
	go func() {
		id, err := svc.Notify(ctx, replaces, req)
		out <- notifyOutcome{id, err}
	}()
	return out
}

func awaitNotify(t *testing.T, ch <-chan notifyOutcome) notifyOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(wait):
		t.Fatal("Notify did not return")
		return notifyOutcome{}
	}
}

func newTestService(t *testing.T) (*Service, *fakeStarter, *rpctest.Server) {
	t.Helper()
	starter := &fakeStarter{}
	svc := New(Options{Starter: starter, Version: "1.2.3"})
	t.Cleanup(svc.Close)
	return svc, starter, rpctest.Start(t, svc.RPC())
}

func TestServerInformation(t *testing.T) {
	svc := New(Options{Version: "1.2.3"})
	name, vendor, version, spec := svc.GetServerInformation()
	assert.Equal(t, []string{"wsl-notifyd", "WSL", "1.2.3", "1.2"}, []string{name, vendor, version, spec})
	assert.Contains(t, svc.GetCapabilities(), "inline-reply")
	assert.Len(t, svc.GetCapabilities(), 7)
}

func TestNotifyRoundTrip(t *testing.T) {
	svc, starter, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	pending := notifyAsync(svc, context.Background(), 0, content.Request{AppName: "app", Summary: "hello", ExpireTimeout: -1})
	call := r.nextCall(t)
	assert.Equal(t, uint32(1), call.ID)

	doc, err := content.ParseDocument(call.Document)
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Title())

	r.answer(t, call, rpc.OK())
	o := awaitNotify(t, pending)
	require.NoError(t, o.err)
	assert.Equal(t, uint32(1), o.id)
	assert.Equal(t, []uint32{1}, starter.started)
	assert.Empty(t, starter.handledIDs(), "displayed toast keeps interest")
}

func TestNotifyReplacesID(t *testing.T) {
	svc, _, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	pending := notifyAsync(svc, context.Background(), 42, content.Request{Summary: "again"})
	call := r.nextCall(t)
	assert.Equal(t, uint32(42), call.ID)
	r.answer(t, call, rpc.OK())
	assert.Equal(t, uint32(42), awaitNotify(t, pending).id)
}

func TestNotifyRemoteError(t *testing.T) {
	svc, starter, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	pending := notifyAsync(svc, context.Background(), 0, content.Request{Summary: "x"})
	call := r.nextCall(t)
	r.answer(t, call, rpc.Failed(errors.New("toast rejected")))

	o := awaitNotify(t, pending)
	require.Error(t, o.err)
	assert.True(t, rpc.IsRemote(o.err))
	assert.Contains(t, o.err.Error(), "toast rejected")
	assert.Equal(t, []uint32{call.ID}, starter.handledIDs())
}

func TestNotifyStartFailure(t *testing.T) {
	svc, starter, _ := newTestService(t)
	starter.err = errors.New("exec failed")

	_, err := svc.Notify(context.Background(), 0, content.Request{Summary: "x"})
	assert.ErrorIs(t, err, starter.err)
	assert.Equal(t, []uint32{1}, starter.handledIDs())
}

func TestConcurrentNotifyRepliesOutOfOrder(t *testing.T) {
	svc, _, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	a := notifyAsync(svc, context.Background(), 0, content.Request{Summary: "A"})
	callA := r.nextCall(t)
	b := notifyAsync(svc, context.Background(), 0, content.Request{Summary: "B"})
	callB := r.nextCall(t)
	require.NotEqual(t, callA.Serial, callB.Serial)

	r.answer(t, callB, rpc.OK())
	ob := awaitNotify(t, b)
	require.NoError(t, ob.err)
	assert.Equal(t, callB.ID, ob.id)

	r.answer(t, callA, rpc.OK())
	oa := awaitNotify(t, a)
	require.NoError(t, oa.err)
	assert.Equal(t, callA.ID, oa.id)
	assert.NotEqual(t, oa.id, ob.id)
}

func TestReadyOnceBothStreamsAttached(t *testing.T) {
	svc, starter, server := newTestService(t)
	client := rpc.NewNotifierClient(server.Dial(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := client.Notify(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.notify.Gate().Count() == 1 }, wait, time.Millisecond)
	assert.Equal(t, 0, starter.readyCount())

	_, err = client.CloseNotification(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return starter.readyCount() == 1 }, wait, time.Millisecond)
}

func TestStreamEndFailsPendingCall(t *testing.T) {
	svc, starter, server := newTestService(t)
	client := rpc.NewNotifierClient(server.Dial(t))
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := client.Notify(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return svc.notify.Gate().Count() == 1 }, wait, time.Millisecond)

	pending := notifyAsync(svc, context.Background(), 0, content.Request{Summary: "x"})
	_, err = stream.Recv()
	require.NoError(t, err)
	cancel()

	o := awaitNotify(t, pending)
	assert.ErrorIs(t, o.err, correlate.ErrCancelled)
	assert.Equal(t, []uint32{1}, starter.handledIDs())
}

func TestCloseNotificationForwarded(t *testing.T) {
	svc, starter, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	errc := make(chan error, 1)
	go func() { errc <- svc.CloseNotification(context.Background(), 5) }()

	var call *rpc.CloseCall
	select {
	case call = <-r.closes:
	case <-time.After(wait):
		t.Fatal("close call not forwarded")
	}
	assert.Equal(t, uint32(5), call.ID)
	require.NoError(t, r.close.Send(&rpc.CloseResult{Serial: call.Serial, Status: rpc.OK()}))

	require.NoError(t, <-errc)
	assert.Equal(t, []uint32{5}, starter.started)
	assert.Equal(t, []uint32{5}, starter.handledIDs())
}

func TestCloseReleasesWaiters(t *testing.T) {
	svc, _, server := newTestService(t)
	r := attachRenderer(t, svc, server)

	pending := notifyAsync(svc, context.Background(), 0, content.Request{Summary: "x"})
	r.nextCall(t)
	svc.Close()

	assert.ErrorIs(t, awaitNotify(t, pending).err, correlate.ErrCancelled)
	_, err := svc.Notify(context.Background(), 0, content.Request{Summary: "late"})
	assert.ErrorIs(t, err, correlate.ErrClosed)
}

func TestSignalsEmittedInRendererOrder(t *testing.T) {
	svc, starter, server := newTestService(t)
	emitter := newFakeEmitter()
	svc.SetEmitter(emitter)
	client := rpc.NewNotifierClient(server.Dial(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replied, err := client.NotificationReplied(ctx)
	require.NoError(t, err)
	action, err := client.ActionInvoked(ctx)
	require.NoError(t, err)
	closed, err := client.NotificationClosed(ctx)
	require.NoError(t, err)

	// Sent in reverse order over independent streams.
	require.NoError(t, closed.Send(&rpc.NotificationClosedSignal{Session: 9, Seq: 3, ID: 4, Reason: rpc.ReasonDismissed}))
	require.NoError(t, action.Send(&rpc.ActionInvokedSignal{Session: 9, Seq: 2, ID: 4, ActionKey: "inline-reply"}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, replied.Send(&rpc.NotificationRepliedSignal{Session: 9, Seq: 1, ID: 4, Text: "hi"}))

	var got []emitted
	for range 3 {
		select {
		case e := <-emitter.events:
			got = append(got, e)
		case <-time.After(wait):
			t.Fatalf("only %d signals emitted", len(got))
		}
	}
	assert.Equal(t, []emitted{
		{kind: "replied", id: 4, text: "hi"},
		{kind: "action", id: 4, text: "inline-reply"},
		{kind: "closed", id: 4, reason: rpc.ReasonDismissed},
	}, got)
	assert.Equal(t, []uint32{4}, starter.handledIDs())
}

func TestShutdownStreamDeliversOrder(t *testing.T) {
	_, starter, server := newTestService(t)
	client := rpc.NewNotifierClient(server.Dial(t))
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	stream, err := client.Shutdown(ctx, &rpc.ShutdownRequest{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return starter.listenerCount() == 1 }, wait, time.Millisecond)
	starter.requestShutdown()

	order, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "idle", order.Reason)
}

func TestMessageDurationChangesThreshold(t *testing.T) {
	svc, _, server := newTestService(t)
	r := attachRenderer(t, svc, server)
	_, err := r.client.MessageDurationChanged(context.Background(), &rpc.MessageDuration{Duration: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, svc.MessageDuration())

	for _, tt := range []struct {
		expire int32
		want   string
	}{{500, "short"}, {2000, "long"}} {
		pending := notifyAsync(svc, context.Background(), 0, content.Request{ExpireTimeout: tt.expire})
		call := r.nextCall(t)
		doc, err := content.ParseDocument(call.Document)
		require.NoError(t, err)
		assert.Equal(t, tt.want, doc.Duration)
		r.answer(t, call, rpc.OK())
		require.NoError(t, awaitNotify(t, pending).err)
	}

	// Zero is ignored.
	_, err = r.client.MessageDurationChanged(context.Background(), &rpc.MessageDuration{})
	require.NoError(t, err)
	assert.Equal(t, time.Second, svc.MessageDuration())
}
