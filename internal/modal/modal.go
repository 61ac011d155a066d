// Package modal tracks the single modal dialog clanboard may show at a time.
//
// Opening a modal returns a Pending that resolves when the modal is closed
// with a result or cancelled. Only one modal can be open; opening a second
// one, or closing a modal of another kind than the open one, is reported as
// an error instead of silently replacing the first.
package modal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind names a modal.
type Kind string

const (
	KindAddMachine     Kind = "addMachine"
	KindInstallMachine Kind = "installMachine"
	KindUpdateMachine  Kind = "updateMachine"
	KindClanSettings   Kind = "clanSettings"
)

var (
	ErrAlreadyOpen  = errors.New("a modal is already open")
	ErrNotOpen      = errors.New("no modal is open")
	ErrKindMismatch = errors.New("modal kind does not match the open modal")
)

// CancelError is returned by Pending.Wait when the modal was cancelled.
type CancelError struct {
	Kind Kind
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("modal %s cancelled", e.Kind)
}

// IsCancel reports whether err is a modal cancellation.
func IsCancel(err error) bool {
	var c *CancelError
	return errors.As(err, &c)
}

// Pending is the outcome of an opened modal.
type Pending struct {
	kind Kind
	done chan struct{}

	result any
	err    error
}

// Kind returns the kind the modal was opened with.
func (p *Pending) Kind() Kind { return p.kind }

// Done is closed once the modal is closed or cancelled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the modal is closed, cancelled, or ctx ends. A closed
// modal yields its result; a cancelled one a *CancelError.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) resolve(result any, err error) {
	p.result, p.err = result, err
	close(p.done)
}

// Await waits for p and asserts the result type.
func Await[T any](ctx context.Context, p *Pending) (T, error) {
	var zero T
	v, err := p.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("modal %s: result is %T, want %T", p.kind, v, zero)
	}
	return out, nil
}

// State describes the open modal.
type State struct {
	Kind Kind
	Data any
}

// Controller owns the open modal. The zero value is not usable; use New.
type Controller struct {
	logger *zap.Logger

	mu       sync.Mutex
	open     *Pending
	data     any
	onClose  []func(Kind, any)
	onCancel []func(Kind)
}

// New returns a controller with no modal open.
func New(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{logger: logger}
}

// Open opens a modal of kind with data for the dialog to render.
func (c *Controller) Open(kind Kind, data any) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open != nil {
		return nil, fmt.Errorf("open %s while %s is open: %w", kind, c.open.kind, ErrAlreadyOpen)
	}
	c.open = &Pending{kind: kind, done: make(chan struct{})}
	c.data = data
	c.logger.Debug("modal opened", zap.String("kind", string(kind)))
	return c.open, nil
}

// Current returns the open modal.
func (c *Controller) Current() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == nil {
		return State{}, false
	}
	return State{Kind: c.open.kind, Data: c.data}, true
}

// Close closes the open modal of kind and resolves its Pending with result.
func (c *Controller) Close(kind Kind, result any) error {
	p, err := c.take(kind)
	if err != nil {
		return err
	}
	p.resolve(result, nil)
	c.mu.Lock()
	hooks := append(([]func(Kind, any))(nil), c.onClose...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(kind, result)
	}
	c.logger.Debug("modal closed", zap.String("kind", string(kind)))
	return nil
}

// Cancel closes the open modal of kind and fails its Pending with a
// *CancelError.
func (c *Controller) Cancel(kind Kind) error {
	p, err := c.take(kind)
	if err != nil {
		return err
	}
	p.resolve(nil, &CancelError{Kind: kind})
	c.mu.Lock()
	hooks := append(([]func(Kind))(nil), c.onCancel...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(kind)
	}
	c.logger.Debug("modal cancelled", zap.String("kind", string(kind)))
	return nil
}

// OnClose registers fn to run after every Close.
func (c *Controller) OnClose(fn func(kind Kind, result any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = append(c.onClose, fn)
}

// OnCancel registers fn to run after every Cancel.
func (c *Controller) OnCancel(fn func(kind Kind)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCancel = append(c.onCancel, fn)
}

func (c *Controller) take(kind Kind) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == nil {
		return nil, fmt.Errorf("close %s: %w", kind, ErrNotOpen)
	}
	if c.open.kind != kind {
		return nil, fmt.Errorf("close %s while %s is open: %w", kind, c.open.kind, ErrKindMismatch)
	}
	p := c.open
	c.open, c.data = nil, nil
	return p, nil
}
