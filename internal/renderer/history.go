package renderer

import "sync"

// History tracks the toasts currently on screen by tag.
type History struct {
	mu     sync.Mutex
	toasts map[string]*Toast
}

func NewHistory() *History {
	return &History{toasts: make(map[string]*Toast)}
}

func (h *History) Put(t *Toast) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toasts[t.Tag] = t
}

func (h *History) Get(tag string) (*Toast, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.toasts[tag]
	return t, ok
}

// Remove deletes t if it is still the toast recorded for its tag.
func (h *History) Remove(t *Toast) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.toasts[t.Tag]; ok && cur == t {
		delete(h.toasts, t.Tag)
		return true
	}
	return false
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.toasts)
}
