package notify

import (
	"context"
	"sync"
)

// Sent is one notification captured by a Recorder.
type Sent struct {
	Kind Kind
	To   string
	Data Data
}

// Recorder is a Notifier that remembers every call, for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned from every Notify after recording.
	Err error
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, kind Kind, to string, data Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Kind: kind, To: to, Data: data})
	return r.Err
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
