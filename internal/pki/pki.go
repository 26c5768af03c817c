// Package pki creates the ephemeral certificate authority that pins the
// loopback RPC channel between the relay and its renderer. Nothing here is
// ever written to disk.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"
)

const (
	// ServerName is the name the renderer verifies the relay certificate against.
	ServerName = "localhost"

	// validity outlasts any relay process; renderer leaves share the root's.
	validity = 100 * 365 * 24 * time.Hour
	skew     = time.Minute
)

// ErrSessionClosed is returned by IssueBundle after Close.
var ErrSessionClosed = errors.New("pki session closed")

// Session holds the ephemeral root and the relay's server certificate.
type Session struct {
	mu      sync.Mutex
	root    *x509.Certificate
	rootKey *ecdsa.PrivateKey
	pool    *x509.CertPool
	server  tls.Certificate
}

// NewSession generates a fresh root and server leaf.
func NewSession() (*Session, error) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate root key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "wsl-notifyd ephemeral root"},
		NotBefore:             now.Add(-skew),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create root certificate: %w", err)
	}
	root, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse root certificate: %w", err)
	}

	s := &Session{root: root, rootKey: rootKey, pool: x509.NewCertPool()}
	s.pool.AddCert(root)

	certDER, key, err := s.issue(x509.ExtKeyUsageServerAuth, "wsl-notifyd relay")
	if err != nil {
		return nil, fmt.Errorf("failed to issue server certificate: %w", err)
	}
	s.server = tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}
	return s, nil
}

// ServerTLSConfig requires every client to present a certificate issued by
// this session's root.
func (s *Session) ServerTLSConfig() *tls.Config {
	cfg := baseConfig()
	cfg.Certificates = []tls.Certificate{s.server}
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	cfg.ClientCAs = s.pool
	return cfg
}

// IssueBundle signs a renderer certificate for one launch. The session
// keeps no copy of the private key.
func (s *Session) IssueBundle() (*Bundle, error) {
	certDER, key, err := s.issue(x509.ExtKeyUsageClientAuth, "wsl-notifyd renderer")
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode renderer key: %w", err)
	}
	return &Bundle{
		RootCert:   s.root.Raw,
		Cert:       certDER,
		Key:        keyDER,
		ServerName: ServerName,
	}, nil
}

// Close zeroes and drops the root key. Already issued certificates stay
// valid for connections that are established.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootKey != nil && s.rootKey.D != nil {
		s.rootKey.D.SetInt64(0)
	}
	s.rootKey = nil
}

func (s *Session) issue(usage x509.ExtKeyUsage, cn string) ([]byte, *ecdsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootKey == nil {
		return nil, nil, ErrSessionClosed
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    now.Add(-skew),
		NotAfter:     s.root.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	if usage == x509.ExtKeyUsageServerAuth {
		tmpl.DNSNames = []string{ServerName}
		tmpl.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, s.root, &key.PublicKey, s.rootKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign certificate: %w", err)
	}
	return der, key, nil
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}

func baseConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519MLKEM768,
			tls.X25519,
			tls.CurveP256,
		},
	}
}
