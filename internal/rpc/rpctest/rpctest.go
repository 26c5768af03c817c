// Package rpctest runs the notifier service over an in-memory listener with
// real mutual TLS, for tests of both sides of the channel.
package rpctest

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mblarsen/wsl-notifyd/internal/pki"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
)

const bufSize = 1 << 20

// Server is a running notifier server.
type Server struct {
	Session  *pki.Session
	Listener *bufconn.Listener
	GRPC     *grpc.Server
}

// Start serves srv until the test ends.
func Start(t testing.TB, srv rpc.NotifierServer) *Server {
	t.Helper()
	session, err := pki.NewSession()
	if err != nil {
		t.Fatalf("failed to create pki session: %v", err)
	}
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.Creds(credentials.NewTLS(session.ServerTLSConfig())))
	rpc.RegisterNotifierServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		gs.Stop()
		_ = lis.Close()
	})
	return &Server{Session: session, Listener: lis, GRPC: gs}
}

// Dial connects with a freshly issued renderer bundle.
func (s *Server) Dial(t testing.TB) *grpc.ClientConn {
	t.Helper()
	b, err := s.Session.IssueBundle()
	if err != nil {
		t.Fatalf("failed to issue bundle: %v", err)
	}
	defer b.Zero()
	return s.DialBundle(t, b)
}

// DialBundle connects presenting the certificate in b.
func (s *Server) DialBundle(t testing.TB, b *pki.Bundle) *grpc.ClientConn {
	t.Helper()
	cfg, err := b.ClientTLSConfig()
	if err != nil {
		t.Fatalf("failed to build client tls config: %v", err)
	}
	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.Listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(credentials.NewTLS(cfg)),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
