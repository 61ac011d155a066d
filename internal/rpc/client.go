package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport moves encoded envelopes between the client and the host.
type Transport interface {
	// Request sends an encoded Request and returns the encoded Response.
	// It returns an error wrapping ErrUnknownOperation when the host does
	// not expose op.
	Request(ctx context.Context, op Operation, payload []byte) ([]byte, error)
	// Subscribe delivers events the host pushes for op until the returned
	// function is called.
	Subscribe(op Operation, fn func(payload []byte)) (func(), error)
	Close() error
}

// Caller is the subset of *Client used by the typed API layer.
type Caller interface {
	Call(ctx context.Context, op Operation, body, out any, opts ...CallOption) error
	Subscribe(op Operation, fn func(Event)) (func(), error)
}

// Ensure Client implements Caller at compile time.
var _ Caller = (*Client)(nil)

// CallInfo describes an in-flight or finished call.
type CallInfo struct {
	TaskID    string
	Op        Operation
	Started   time.Time
	Cancelled bool
}

// Observer is notified about the lifecycle of every call.
type Observer interface {
	CallStarted(info CallInfo)
	CallFinished(info CallInfo, err error)
}

const deleteTaskTimeout = 5 * time.Second

// Client calls backend operations through a Transport.
type Client struct {
	transport Transport
	logger    *zap.Logger
	observer  Observer
	metrics   *Metrics
	newTaskID func() string

	mu      sync.Mutex
	pending map[string]*pendingCall
}

type pendingCall struct {
	info      CallInfo
	cancelled atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers the call lifecycle observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithMetrics records call counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTaskIDs overrides task id generation.
func WithTaskIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newTaskID = fn
		}
	}
}

// NewClient builds a Client on top of transport.
func NewClient(transport Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is nil")
	}
	c := &Client{
		transport: transport,
		logger:    zap.NewNop(),
		newTaskID: uuid.NewString,
		pending:   make(map[string]*pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CallOption adjusts a single call.
type CallOption func(*Header)

// WithLogGroup groups host logs under clanID, or clanID#machineID when a
// machine is given.
func WithLogGroup(clanID, machineID string) CallOption {
	return func(h *Header) {
		group := clanID
		if machineID != "" {
			group = clanID + "#" + machineID
		}
		h.Logging = &Logging{Group: group}
	}
}

// WithTaskID forces the task id of a call, for callers that need to know
// it before the call starts.
func WithTaskID(id string) CallOption {
	return func(h *Header) {
		if id != "" {
			h.OpKey = id
		}
	}
}

// Call invokes op with body and decodes the success payload into out, which
// may be nil. A status "error" response is returned as *APIError. When ctx
// ends before the host answers, a best-effort delete_task request is sent
// in the background and ctx.Err() is returned.
func (c *Client) Call(ctx context.Context, op Operation, body, out any, opts ...CallOption) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if !op.Known() {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	header := Header{OpKey: c.newTaskID()}
	for _, opt := range opts {
		opt(&header)
	}

	rawBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", op, err)
	}
	payload, err := json.Marshal(Request{Body: rawBody, Header: header})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	call := c.register(op, header.OpKey)
	c.logger.Debug("rpc call", zap.String("op", string(op)), zap.String("task_id", header.OpKey))

	respBytes, err := c.transport.Request(ctx, op, payload)
	if err != nil && ctx.Err() != nil {
		c.unregister(call)
		go c.deleteTask(op, header.OpKey)
		c.finish(call, ctx.Err())
		return ctx.Err()
	}
	c.unregister(call)
	if err != nil {
		err = fmt.Errorf("call %s: %w", op, err)
		c.finish(call, err)
		return err
	}

	err = decodeResponse(op, header.OpKey, respBytes, out)
	c.finish(call, err)
	return err
}

func decodeResponse(op Operation, taskID string, raw []byte, out any) error {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	switch resp.Status {
	case StatusSuccess:
	case StatusError:
		return &APIError{Op: op, TaskID: taskID, Details: resp.Errors}
	default:
		return fmt.Errorf("decode %s response: unexpected status %q", op, resp.Status)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", op, err)
	}
	return nil
}

// Cancel asks the host to cancel a running call. On success the call is
// marked cancelled, so observers can tell its eventual failure apart.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	c.mu.Lock()
	p := c.pending[taskID]
	c.mu.Unlock()
	// Mark first: the call may fail before cancel_task returns.
	if p != nil {
		p.cancelled.Store(true)
	}
	if err := c.Call(ctx, OpCancelTask, map[string]string{"task_id": taskID}, nil); err != nil {
		if p != nil {
			p.cancelled.Store(false)
		}
		return fmt.Errorf("cancel %s: %w", taskID, err)
	}
	c.logger.Info("rpc call cancelled", zap.String("task_id", taskID))
	return nil
}

// Pending returns the calls that have not completed yet, oldest first.
func (c *Client) Pending() []CallInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallInfo, 0, len(c.pending))
	for _, p := range c.pending {
		info := p.info
		info.Cancelled = p.cancelled.Load()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Subscribe relays host events for op to fn.
func (c *Client) Subscribe(op Operation, fn func(Event)) (func(), error) {
	if !op.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return c.transport.Subscribe(op, func(payload []byte) {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.logger.Warn("drop malformed event", zap.String("op", string(op)), zap.Error(err))
			return
		}
		if ev.Op == "" {
			ev.Op = op
		}
		fn(ev)
	})
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) register(op Operation, taskID string) *pendingCall {
	p := &pendingCall{info: CallInfo{TaskID: taskID, Op: op, Started: time.Now()}}
	c.mu.Lock()
	c.pending[taskID] = p
	c.mu.Unlock()
	if c.observer != nil {
		c.observer.CallStarted(p.info)
	}
	return p
}

func (c *Client) unregister(p *pendingCall) {
	c.mu.Lock()
	delete(c.pending, p.info.TaskID)
	c.mu.Unlock()
}

func (c *Client) finish(p *pendingCall, err error) {
	info := p.info
	info.Cancelled = p.cancelled.Load()
	if c.metrics != nil {
		c.metrics.observe(info.Op, time.Since(info.Started), err)
	}
	if err != nil {
		var apiErr *APIError
		switch {
		case info.Cancelled, errors.Is(err, context.Canceled):
			c.logger.Info("rpc call ended after cancel", zap.String("op", string(info.Op)), zap.String("task_id", info.TaskID))
		case errors.As(err, &apiErr):
			c.logger.Warn("rpc call failed", zap.String("op", string(info.Op)), zap.String("task_id", info.TaskID), zap.String("message", apiErr.Message()))
		default:
			c.logger.Error("rpc call error", zap.String("op", string(info.Op)), zap.String("task_id", info.TaskID), zap.Error(err))
		}
	}
	if c.observer != nil {
		c.observer.CallFinished(info, err)
	}
}

// deleteTask fires the out-of-band cancellation for an abandoned call. It
// bypasses Call so it is neither observed nor itself cancellable.
func (c *Client) deleteTask(op Operation, taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTaskTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"task_id": taskID})
	payload, err := json.Marshal(Request{Body: body, Header: Header{OpKey: c.newTaskID()}})
	if err != nil {
		return
	}
	raw, err := c.transport.Request(ctx, OpDeleteTask, payload)
	if err == nil {
		err = decodeResponse(OpDeleteTask, taskID, raw, nil)
	}
	if err != nil {
		c.logger.Warn("delete_task failed", zap.String("op", string(op)), zap.String("task_id", taskID), zap.Error(err))
		return
	}
	c.logger.Info("delete_task sent", zap.String("op", string(op)), zap.String("task_id", taskID))
}
