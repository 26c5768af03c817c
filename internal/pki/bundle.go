package pki

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mblarsen/wsl-notifyd/internal/codec"
)

// MaxBundleSize bounds the handoff message read from stdin.
const MaxBundleSize = 64 * 1024

// ErrBundleTooLarge is returned when a length prefix exceeds MaxBundleSize.
var ErrBundleTooLarge = errors.New("certificate bundle too large")

// Bundle is what a renderer needs to authenticate to the relay. All
// certificates and the key are DER encoded.
type Bundle struct {
	RootCert   []byte `cbor:"root_cert"`
	Cert       []byte `cbor:"cert"`
	Key        []byte `cbor:"key"`
	ServerName string `cbor:"server_name"`
}

// Zero overwrites the private key bytes.
func (b *Bundle) Zero() {
	if b == nil {
		return
	}
	clear(b.Key)
	b.Key = nil
}

// ClientTLSConfig trusts only the bundle's root and presents the renderer
// certificate.
func (b *Bundle) ClientTLSConfig() (*tls.Config, error) {
	root, err := x509.ParseCertificate(b.RootCert)
	if err != nil {
		return nil, fmt.Errorf("failed to parse root certificate: %w", err)
	}
	key, err := x509.ParsePKCS8PrivateKey(b.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse renderer key: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(root)

	cfg := baseConfig()
	cfg.RootCAs = pool
	cfg.ServerName = b.ServerName
	cfg.Certificates = []tls.Certificate{{
		Certificate: [][]byte{b.Cert},
		PrivateKey:  key,
	}}
	return cfg, nil
}

// WriteBundle writes b as a 4-byte big-endian length followed by its CBOR
// encoding. The encoded copy of the key is cleared after the write.
func WriteBundle(w io.Writer, b *Bundle) error {
	data, err := codec.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	defer clear(data)
	if len(data) > MaxBundleSize {
		return ErrBundleTooLarge
	}
	frame := make([]byte, 4+len(data))
	defer clear(frame)
	binary.BigEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

// ReadBundle reads one length-prefixed bundle.
func ReadBundle(r io.Reader) (*Bundle, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read bundle length: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxBundleSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBundleTooLarge, n)
	}
	data := make([]byte, n)
	defer clear(data)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	var b Bundle
	if err := codec.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return &b, nil
}
