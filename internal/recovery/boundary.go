// Package recovery contains the error boundary wrapped around the
// interactive map and the tabular view shown once retries run out.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxRetries is the retry budget of a boundary.
const DefaultMaxRetries = 3

// ErrRetryExhausted is returned by Retry once the budget is spent.
var ErrRetryExhausted = errors.New("render retry budget exhausted")

// ErrNothingToRetry is returned by Retry when no failure is caught.
var ErrNothingToRetry = errors.New("no caught render failure")

// RenderError is a failure caught by the boundary, either a returned error
// or a recovered panic.
type RenderError struct {
	Err   error
	Panic any
	Stack []byte
	// Attempt is the retry budget at the time of the failure.
	Attempt int
}

func (e *RenderError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("render panic: %v", e.Panic)
	}
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one render attempt through the boundary.
type Outcome struct {
	// Err is set when the attempt failed or was skipped because the
	// boundary is exhausted.
	Err *RenderError
	// Recovered is true when the attempt succeeded after earlier failures.
	Recovered bool
	// Skipped is true when the boundary was exhausted and fn was not run.
	Skipped bool
}

// OK reports whether the render succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Boundary catches render failures and enforces a bounded retry budget.
// The budget is 0 on the first failure, grows by one on every retry and is
// reset only when a render succeeds again.
type Boundary struct {
	mu         sync.Mutex
	maxRetries int
	budget     int
	caught     *RenderError
	recovering bool
	pending    bool // a pending render awaits Confirm
	logger     *slog.Logger
}

// NewBoundary creates a boundary. maxRetries <= 0 uses DefaultMaxRetries.
func NewBoundary(maxRetries int, logger *slog.Logger) *Boundary {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Boundary{maxRetries: maxRetries, logger: logger}
}

// Attempt runs fn and catches a returned error or a panic. When the boundary
// is exhausted fn is not called and the last failure is returned.
func (b *Boundary) Attempt(fn func() error) Outcome {
	return b.attempt(fn, true)
}

// AttemptPending is Attempt for renders whose success is only known later,
// such as a widget that reports readiness asynchronously. A successful call
// keeps the retry budget until Confirm.
func (b *Boundary) AttemptPending(fn func() error) Outcome {
	return b.attempt(fn, false)
}

// Confirm records that a pending render succeeded.
func (b *Boundary) Confirm() Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.succeededLocked()
}

func (b *Boundary) succeededLocked() Outcome {
	recovered := b.recovering
	if recovered {
		b.logger.Info("Render recovered", "retries", b.budget)
	}
	b.budget = 0
	b.caught = nil
	b.recovering = false
	b.pending = false
	return Outcome{Recovered: recovered}
}

func (b *Boundary) attempt(fn func() error, confirm bool) Outcome {
	b.mu.Lock()
	if b.exhaustedLocked() {
		caught := b.caught
		b.mu.Unlock()
		return Outcome{Err: caught, Skipped: true}
	}
	b.mu.Unlock()

	renderErr := run(fn)

	b.mu.Lock()
	defer b.mu.Unlock()

	if renderErr == nil {
		if !confirm {
			b.pending = true
			return Outcome{}
		}
		return b.succeededLocked()
	}

	b.pending = false

	if !b.recovering {
		b.budget = 0
	}
	renderErr.Attempt = b.budget
	b.caught = renderErr
	b.recovering = true

	attrs := []any{"error", renderErr.Error(), "retryBudget", b.budget, "maxRetries", b.maxRetries}
	if renderErr.Panic != nil {
		attrs = append(attrs, "stack", string(renderErr.Stack))
	}
	if b.exhaustedLocked() {
		b.logger.Error("Render failed, retries exhausted", attrs...)
	} else {
		b.logger.Warn("Render failed", attrs...)
	}
	return Outcome{Err: renderErr}
}

func run(fn func() error) (renderErr *RenderError) {
	defer func() {
		if r := recover(); r != nil {
			var err error
			if e, ok := r.(error); ok {
				err = e
			}
			renderErr = &RenderError{Err: err, Panic: r, Stack: debug.Stack()}
		}
	}()
	if err := fn(); err != nil {
		return &RenderError{Err: err}
	}
	return nil
}

// Pending reports whether a render started with AttemptPending has not been
// confirmed or failed yet.
func (b *Boundary) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Retry clears the caught failure and spends one unit of the budget. The
// caller re-renders afterwards.
func (b *Boundary) Retry() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.caught == nil {
		return ErrNothingToRetry
	}
	if b.budget >= b.maxRetries {
		return ErrRetryExhausted
	}
	b.budget++
	b.caught = nil
	b.logger.Info("Retrying render", "retryBudget", b.budget, "maxRetries", b.maxRetries)
	return nil
}

// CanRetry reports whether a failure is caught and the budget allows a retry.
func (b *Boundary) CanRetry() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caught != nil && b.budget < b.maxRetries
}

// Exhausted reports whether the permanent fallback applies.
func (b *Boundary) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhaustedLocked()
}

func (b *Boundary) exhaustedLocked() bool {
	return b.caught != nil && b.budget >= b.maxRetries
}

// Caught returns the current failure, or nil.
func (b *Boundary) Caught() *RenderError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.caught
}

// Budget returns the current retry budget.
func (b *Boundary) Budget() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.budget
}

// MaxRetries returns the configured budget limit.
func (b *Boundary) MaxRetries() int {
	return b.maxRetries
}

// Reset forgets any failure and restores the full budget.
func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budget = 0
	b.caught = nil
	b.recovering = false
	b.pending = false
}
