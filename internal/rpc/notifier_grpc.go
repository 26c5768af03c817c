package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Notifier_Notify_FullMethodName                 = "/wslnotifyd.Notifier/Notify"
	Notifier_CloseNotification_FullMethodName      = "/wslnotifyd.Notifier/CloseNotification"
	Notifier_ActionInvoked_FullMethodName          = "/wslnotifyd.Notifier/ActionInvoked"
	Notifier_NotificationClosed_FullMethodName     = "/wslnotifyd.Notifier/NotificationClosed"
	Notifier_NotificationReplied_FullMethodName    = "/wslnotifyd.Notifier/NotificationReplied"
	Notifier_Shutdown_FullMethodName               = "/wslnotifyd.Notifier/Shutdown"
	Notifier_MessageDurationChanged_FullMethodName = "/wslnotifyd.Notifier/MessageDurationChanged"
)

// NotifierClient is the renderer's view of the service. The relay is the
// server, so the renderer receives calls on the duplex streams and answers
// them with results.
type NotifierClient interface {
	Notify(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[NotifyResult, NotifyCall], error)
	CloseNotification(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[CloseResult, CloseCall], error)
	ActionInvoked(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[ActionInvokedSignal, Empty], error)
	NotificationClosed(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[NotificationClosedSignal, Empty], error)
	NotificationReplied(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[NotificationRepliedSignal, Empty], error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ShutdownOrder], error)
	MessageDurationChanged(ctx context.Context, in *MessageDuration, opts ...grpc.CallOption) (*Empty, error)
}

type notifierClient struct {
	cc grpc.ClientConnInterface
}

// NewNotifierClient wraps cc. Every call uses the CBOR codec.
func NewNotifierClient(cc grpc.ClientConnInterface) NotifierClient {
	return &notifierClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *notifierClient) Notify(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[NotifyResult, NotifyCall], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[0], Notifier_Notify_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[NotifyResult, NotifyCall]{ClientStream: stream}, nil
}

func (c *notifierClient) CloseNotification(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[CloseResult, CloseCall], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[1], Notifier_CloseNotification_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[CloseResult, CloseCall]{ClientStream: stream}, nil
}

func (c *notifierClient) ActionInvoked(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[ActionInvokedSignal, Empty], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[2], Notifier_ActionInvoked_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[ActionInvokedSignal, Empty]{ClientStream: stream}, nil
}

func (c *notifierClient) NotificationClosed(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[NotificationClosedSignal, Empty], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[3], Notifier_NotificationClosed_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[NotificationClosedSignal, Empty]{ClientStream: stream}, nil
}

func (c *notifierClient) NotificationReplied(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[NotificationRepliedSignal, Empty], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[4], Notifier_NotificationReplied_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[NotificationRepliedSignal, Empty]{ClientStream: stream}, nil
}

func (c *notifierClient) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ShutdownOrder], error) {
	stream, err := c.cc.NewStream(ctx, &Notifier_ServiceDesc.Streams[5], Notifier_Shutdown_FullMethodName, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ShutdownRequest, ShutdownOrder]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *notifierClient) MessageDurationChanged(ctx context.Context, in *MessageDuration, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	err := c.cc.Invoke(ctx, Notifier_MessageDurationChanged_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NotifierServer is implemented by the relay.
type NotifierServer interface {
	Notify(grpc.BidiStreamingServer[NotifyResult, NotifyCall]) error
	CloseNotification(grpc.BidiStreamingServer[CloseResult, CloseCall]) error
	ActionInvoked(grpc.ClientStreamingServer[ActionInvokedSignal, Empty]) error
	NotificationClosed(grpc.ClientStreamingServer[NotificationClosedSignal, Empty]) error
	NotificationReplied(grpc.ClientStreamingServer[NotificationRepliedSignal, Empty]) error
	Shutdown(*ShutdownRequest, grpc.ServerStreamingServer[ShutdownOrder]) error
	MessageDurationChanged(context.Context, *MessageDuration) (*Empty, error)
}

// UnimplementedNotifierServer can be embedded by partial implementations,
// mostly test doubles.
type UnimplementedNotifierServer struct{}

func (UnimplementedNotifierServer) Notify(grpc.BidiStreamingServer[NotifyResult, NotifyCall]) error {
	return status.Errorf(codes.Unimplemented, "method Notify not implemented")
}
func (UnimplementedNotifierServer) CloseNotification(grpc.BidiStreamingServer[CloseResult, CloseCall]) error {
	return status.Errorf(codes.Unimplemented, "method CloseNotification not implemented")
}
func (UnimplementedNotifierServer) ActionInvoked(grpc.ClientStreamingServer[ActionInvokedSignal, Empty]) error {
	return status.Errorf(codes.Unimplemented, "method ActionInvoked not implemented")
}
func (UnimplementedNotifierServer) NotificationClosed(grpc.ClientStreamingServer[NotificationClosedSignal, Empty]) error {
	return status.Errorf(codes.Unimplemented, "method NotificationClosed not implemented")
}
func (UnimplementedNotifierServer) NotificationReplied(grpc.ClientStreamingServer[NotificationRepliedSignal, Empty]) error {
	return status.Errorf(codes.Unimplemented, "method NotificationReplied not implemented")
}
func (UnimplementedNotifierServer) Shutdown(*ShutdownRequest, grpc.ServerStreamingServer[ShutdownOrder]) error {
	return status.Errorf(codes.Unimplemented, "method Shutdown not implemented")
}
func (UnimplementedNotifierServer) MessageDurationChanged(context.Context, *MessageDuration) (*Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method MessageDurationChanged not implemented")
}

// RegisterNotifierServer registers srv with s.
func RegisterNotifierServer(s grpc.ServiceRegistrar, srv NotifierServer) {
	s.RegisterService(&Notifier_ServiceDesc, srv)
}

func _Notifier_Notify_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(NotifierServer).Notify(&grpc.GenericServerStream[NotifyResult, NotifyCall]{ServerStream: stream})
}

func _Notifier_CloseNotification_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(NotifierServer).CloseNotification(&grpc.GenericServerStream[CloseResult, CloseCall]{ServerStream: stream})
}

func _Notifier_ActionInvoked_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(NotifierServer).ActionInvoked(&grpc.GenericServerStream[ActionInvokedSignal, Empty]{ServerStream: stream})
}

func _Notifier_NotificationClosed_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(NotifierServer).NotificationClosed(&grpc.GenericServerStream[NotificationClosedSignal, Empty]{ServerStream: stream})
}

func _Notifier_NotificationReplied_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(NotifierServer).NotificationReplied(&grpc.GenericServerStream[NotificationRepliedSignal, Empty]{ServerStream: stream})
}

func _Notifier_Shutdown_Handler(srv any, stream grpc.ServerStream) error {
	m := new(ShutdownRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(NotifierServer).Shutdown(m, &grpc.GenericServerStream[ShutdownRequest, ShutdownOrder]{ServerStream: stream})
}

func _Notifier_MessageDurationChanged_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MessageDuration)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotifierServer).MessageDurationChanged(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Notifier_MessageDurationChanged_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotifierServer).MessageDurationChanged(ctx, req.(*MessageDuration))
	}
	return interceptor(ctx, in, info, handler)
}

// Notifier_ServiceDesc is the grpc.ServiceDesc for the notifier service.
var Notifier_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "wslnotifyd.Notifier",
	HandlerType: (*NotifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "MessageDurationChanged",
			Handler:    _Notifier_MessageDurationChanged_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Notify",
			Handler:       _Notifier_Notify_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "CloseNotification",
			Handler:       _Notifier_CloseNotification_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "ActionInvoked",
			Handler:       _Notifier_ActionInvoked_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "NotificationClosed",
			Handler:       _Notifier_NotificationClosed_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "NotificationReplied",
			Handler:       _Notifier_NotificationReplied_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "Shutdown",
			Handler:       _Notifier_Shutdown_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "wslnotifyd/notifier",
}
