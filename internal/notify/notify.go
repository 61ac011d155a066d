// Package notify keeps the toast notifications shown by clanboard.
//
// A Center observes RPC calls: every call gets an "Executing <op>" toast
// with a cancel action while it runs, and a failed call leaves an error
// toast behind. Cancelled calls and calls whose context ended are not
// reported as failures.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/rpc"
)

// Level is the severity of a toast.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Toast is one notification.
type Toast struct {
	ID      int
	Level   Level
	Title   string
	Body    string
	Created time.Time

	// TaskID is set while the toast tracks a running call; such toasts
	// offer a cancel action.
	TaskID string
	Op     rpc.Operation
}

// Running reports whether the toast tracks a call in flight.
func (t Toast) Running() bool { return t.TaskID != "" }

// Canceller cancels a running call. *rpc.Client implements it.
type Canceller interface {
	Cancel(ctx context.Context, taskID string) error
}

var ErrNoToast = errors.New("no such toast")

// Center holds the current toasts.
type Center struct {
	logger    *zap.Logger
	canceller Canceller
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	toasts  []Toast
	nextID  int
	changed chan struct{}
}

var _ rpc.Observer = (*Center)(nil)

// New returns an empty center. Finished toasts expire after ttl; zero keeps
// them until dismissed.
func New(canceller Canceller, ttl time.Duration, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		logger:    logger,
		canceller: canceller,
		ttl:       ttl,
		now:       time.Now,
		changed:   make(chan struct{}, 1),
	}
}

// SetCanceller sets the canceller after construction. The client that
// reports to the center is usually built after it.
func (c *Center) SetCanceller(canceller Canceller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceller = canceller
}

// Changed receives a value after the toasts changed. Notifications
// coalesce.
func (c *Center) Changed() <-chan struct{} { return c.changed }

// CallStarted adds the executing toast of a call.
func (c *Center) CallStarted(info rpc.CallInfo) {
	if quiet(info.Op) {
		return
	}
	c.push(Toast{
		Level:  LevelInfo,
		Title:  fmt.Sprintf("Executing %s", info.Op),
		TaskID: info.TaskID,
		Op:     info.Op,
	})
}

// CallFinished drops the executing toast and reports failures.
func (c *Center) CallFinished(info rpc.CallInfo, err error) {
	c.mu.Lock()
	for i, t := range c.toasts {
		if t.TaskID == info.TaskID && t.TaskID != "" {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.signal()

	switch {
	case err == nil:
	case info.Cancelled:
		c.Info(fmt.Sprintf("Cancelled %s", info.Op), "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, rpc.ErrUnknownOperation):
		// Programming error; logged by the client, never shown.
	default:
		title, body := describe(info.Op, err)
		c.Error(title, body)
	}
}

// Info adds an informational toast.
func (c *Center) Info(title, body string) int {
	return c.push(Toast{Level: LevelInfo, Title: title, Body: body})
}

// Error adds an error toast.
func (c *Center) Error(title, body string) int {
	c.logger.Debug("error toast", zap.String("title", title), zap.String("body", body))
	return c.push(Toast{Level: LevelError, Title: title, Body: body})
}

// List returns the toasts, oldest first.
func (c *Center) List() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

// Dismiss removes a toast.
func (c *Center) Dismiss(id int) error {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNoToast
	}
	c.toasts = append(c.toasts[:idx], c.toasts[idx+1:]...)
	c.mu.Unlock()
	c.signal()
	return nil
}

// Cancel asks the host to cancel the call behind a running toast. The
// toast goes away when the call finishes.
func (c *Center) Cancel(ctx context.Context, id int) error {
	c.mu.Lock()
	idx := c.index(id)
	var taskID string
	if idx >= 0 {
		taskID = c.toasts[idx].TaskID
	}
	canceller := c.canceller
	c.mu.Unlock()
	if idx < 0 || taskID == "" {
		return ErrNoToast
	}
	if canceller == nil {
		return fmt.Errorf("cancel toast %d: no canceller", id)
	}
	return canceller.Cancel(ctx, taskID)
}

// Expire drops finished toasts older than the ttl.
func (c *Center) Expire() {
	if c.ttl <= 0 {
		return
	}
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if t.Running() || t.Created.After(cutoff) {
			kept = append(kept, t)
		}
	}
	dropped := len(kept) != len(c.toasts)
	c.toasts = kept
	c.mu.Unlock()
	if dropped {
		c.signal()
	}
}

func (c *Center) push(t Toast) int {
	c.mu.Lock()
	c.nextID++
	t.ID = c.nextID
	t.Created = c.now()
	c.toasts = append(c.toasts, t)
	c.mu.Unlock()
	c.signal()
	return t.ID
}

func (c *Center) index(id int) int {
	for i, t := range c.toasts {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (c *Center) signal() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// quiet ops manage other calls and get no toast of their own.
func quiet(op rpc.Operation) bool {
	return op == rpc.OpCancelTask || op == rpc.OpDeleteTask
}

func describe(op rpc.Operation, err error) (string, string) {
	var apiErr *rpc.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", op, apiErr.Message()), apiErr.Description()
	}
	return fmt.Sprintf("%s failed", op), err.Error()
}
