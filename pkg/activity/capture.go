package activity

import (
	"context"
	"slices"
	"sync"
)

// CaptureHook keeps every event it receives. Tests and the dashboard example
// use it to inspect what a store emitted.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify records the event and returns Err.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Verbs lists the verbs recorded so far in arrival order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.Events))
	for i, event := range h.Events {
		verbs[i] = event.Verb
	}
	return verbs
}

// ForNamespace returns the recorded events whose object is namespace.
func (h *CaptureHook) ForNamespace(namespace string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, event := range h.Events {
		if event.ObjectID == namespace {
			out = append(out, event)
		}
	}
	return slices.Clip(out)
}

// Reset drops everything recorded.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.Events = nil
	h.mu.Unlock()
}
