package renderer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
	"github.com/mblarsen/wsl-notifyd/internal/content"
	"github.com/mblarsen/wsl-notifyd/internal/fileutil"
)

// ErrInvalidAttachmentName is returned for attachment keys that are not
// sha256 hex digests.
var ErrInvalidAttachmentName = errors.New("invalid attachment name")

// Spool stores attachments as files named by their hash so the toaster can
// load them by path. Files are reference counted across toasts sharing an
// image and removed a while after the last toast using them was shown.
type Spool struct {
	dir    string
	linger time.Duration
	clock  clock.Clock

	mu   sync.Mutex
	refs map[string]int
}

// NewSpool creates dir with mode 0700 if needed.
func NewSpool(dir string, linger time.Duration, clk clock.Clock) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Spool{dir: dir, linger: linger, clock: clk, refs: make(map[string]int)}, nil
}

// Dir is the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Store writes every attachment that is not already spooled and returns
// the hash to path mapping of those available. Failed entries are skipped
// and reported in the joined error.
func (s *Spool) Store(att content.Attachments) (map[string]string, error) {
	paths := make(map[string]string, len(att))
	var errs []error
	for hash, data := range att {
		path, err := s.store(hash, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths[hash] = path
	}
	return paths, errors.Join(errs...)
}

func (s *Spool) store(hash string, data []byte) (string, error) {
	if len(hash) != 64 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttachmentName, hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttachmentName, hash)
	}
	if content.Hash(data) != hash {
		return "", fmt.Errorf("attachment %s does not match its content", hash[:12])
	}
	path, err := fileutil.JoinInside(s.dir, hash+".png")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttachmentName, hash)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[hash] == 0 {
		if err := fileutil.AtomicWriteFile(path, data, 0o600); err != nil {
			return "", fmt.Errorf("failed to spool attachment: %w", err)
		}
	}
	s.refs[hash]++
	return path, nil
}

// Release drops the references taken by Store once the linger delay has
// passed. Files without references are deleted.
func (s *Spool) Release(paths map[string]string) {
	if len(paths) == 0 {
		return
	}
	s.clock.AfterFunc(s.linger, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for hash, path := range paths {
			s.refs[hash]--
			if s.refs[hash] > 0 {
				continue
			}
			delete(s.refs, hash)
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("Failed to delete spooled attachment", "path", path, "error", err)
			}
		}
	})
}

// Close removes the spool directory and everything in it.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refs)
	return os.RemoveAll(s.dir)
}
