package mocks

import (
	"sync"

	"chat-widget/internal/render"
)

var _ render.Sink = (*SinkRecorder)(nil)

// SinkRecorder is a render.Sink that keeps every op. Safe for concurrent use.
type SinkRecorder struct {
	mu  sync.Mutex
	ops []render.Op
}

func (r *SinkRecorder) Send(op render.Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return nil
}

// Ops returns a copy of the recorded ops.
func (r *SinkRecorder) Ops() []render.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render.Op(nil), r.ops...)
}

// Kinds returns the op names in order.
func (r *SinkRecorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.ops))
	for _, op := range r.ops {
		kinds = append(kinds, op.Op)
	}
	return kinds
}
