package renderer

import (
	"os"
	"sync"
	"time"
)

type mockToaster struct {
	mu       sync.Mutex
	shown    []*Toast
	hidden   []string
	missing  []string
	err      error
	duration time.Duration
	changes  chan time.Duration
}

func newMockToaster() *mockToaster {
	return &mockToaster{duration: 5 * time.Second, changes: make(chan time.Duration, 1)}
}

func (m *mockToaster) Show(t *Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, img := range t.Document.Visual.Binding.Images {
		if _, err := os.Stat(filePath(img.Src)); err != nil {
			m.missing = append(m.missing, img.Src)
		}
	}
	m.shown = append(m.shown, t)
	return nil
}

func (m *mockToaster) Hide(tag string) error {
	m.mu.Lock()
	m.hidden = append(m.hidden, tag)
	var t *Toast
	for _, s := range m.shown {
		if s.Tag == tag {
			t = s
		}
	}
	m.mu.Unlock()
	if t != nil {
		t.OnEvent(Event{Kind: Dismissed, Reason: ApplicationHidden})
	}
	return nil
}

func (m *mockToaster) MessageDuration() time.Duration {
	return m.duration
}

func (m *mockToaster) DurationChanges() <-chan time.Duration {
	return m.changes
}

func (m *mockToaster) last() *Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.shown) == 0 {
		return nil
	}
	return m.shown[len(m.shown)-1]
}

func (m *mockToaster) hiddenTags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hidden...)
}
