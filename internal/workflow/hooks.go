package workflow

import "context"

// Hooks collects work that must run only after a transaction commits.
// Services append to it inside the transaction and call Run once the
// commit succeeded; a rolled back transaction simply drops the list.
type Hooks []func(ctx context.Context)

// Add queues fn.
func (h *Hooks) Add(fn func(ctx context.Context)) {
	*h = append(*h, fn)
}

// Run executes the queued hooks in order. Hooks own their error handling.
func (h Hooks) Run(ctx context.Context) {
	for _, fn := range h {
		fn(ctx)
	}
}
