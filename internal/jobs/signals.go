package jobs

import "sync"

// SignalHub is the in-process rendezvous between chunk workers and the
// coordinator awaiting completion.
//
// Channels are buffered so publishing never blocks a worker, and publishing
// is tolerant of duplicates and of jobs nobody is awaiting.
type SignalHub struct {
	mu   sync.Mutex
	subs map[string]chan struct{}
}

// NewSignalHub creates an empty hub.
func NewSignalHub() *SignalHub {
	return &SignalHub{subs: make(map[string]chan struct{})}
}

// Subscribe registers interest in a job's completion and returns the channel
// the signal arrives on. Subscribing twice for the same job returns the same
// channel.
func (h *SignalHub) Subscribe(jobID string) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subs[jobID]
	if !ok {
		ch = make(chan struct{}, 1)
		h.subs[jobID] = ch
	}
	return ch
}

// Publish delivers a completion signal for the job. Duplicate publishes and
// publishes with no subscriber are no-ops.
func (h *SignalHub) Publish(jobID string) {
	h.mu.Lock()
	ch, ok := h.subs[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- struct{}{}:
	default:
	}
}

// Unsubscribe removes the job's channel. Safe to call for unknown jobs.
func (h *SignalHub) Unsubscribe(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, jobID)
}
