// Package abort provides the process-wide cooperative cancellation signal
// shared by the enumeration loop, the fetch scheduler and the deletion
// planner. The first abort reason wins; later aborts are no-ops. Nothing is
// interrupted preemptively: code observes the signal at checkpoints and
// short-circuits with the stored reason.
package abort

import (
	"context"
	"errors"
)

// ErrInterrupted is the reason reported when the run was cancelled from the
// outside (Ctrl-C, parent context) rather than by an explicit Abort call.
var ErrInterrupted = errors.New("interrupted")

// Signal is a single-use abort flag carrying the first abort reason.
type Signal struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// New returns a Signal derived from parent. Cancelling the parent aborts the
// signal with ErrInterrupted.
func New(parent context.Context) *Signal {
	ctx, cancel := context.WithCancelCause(parent)
	return &Signal{ctx: ctx, cancel: cancel}
}

// Abort records reason and trips the signal. Idempotent: only the first
// reason is retained. A nil reason aborts with ErrInterrupted.
func (s *Signal) Abort(reason error) {
	if reason == nil {
		reason = ErrInterrupted
	}
	s.cancel(reason)
}

// Aborted reports whether the signal has tripped.
func (s *Signal) Aborted() bool {
	return s.ctx.Err() != nil
}

// Reason returns the retained abort reason, or nil if not aborted. A parent
// cancellation without an explicit cause reads as ErrInterrupted.
func (s *Signal) Reason() error {
	if s.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(s.ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ErrInterrupted
	}
	return cause
}

// Err is the checkpoint helper: the retained reason if aborted, else nil.
func (s *Signal) Err() error {
	return s.Reason()
}

// Context returns the context that trips when the signal aborts. Pass it to
// anything blocking so in-flight I/O unwinds promptly after an abort.
func (s *Signal) Context() context.Context {
	return s.ctx
}

// Done returns the channel closed when the signal aborts.
func (s *Signal) Done() <-chan struct{} {
	return s.ctx.Done()
}
