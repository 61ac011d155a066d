package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler serves one operation of an in-process host.
type Handler func(ctx context.Context, req Request) Response

// HostTransport is an in-process host. Operations are registered and
// unregistered explicitly; calling an operation without a handler fails
// with ErrUnknownOperation.
type HostTransport struct {
	mu       sync.RWMutex
	handlers map[Operation]Handler
	subs     map[Operation]map[int]func([]byte)
	nextSub  int
	closed   bool
}

var _ Transport = (*HostTransport)(nil)

// NewHostTransport returns an empty host.
func NewHostTransport() *HostTransport {
	return &HostTransport{
		handlers: make(map[Operation]Handler),
		subs:     make(map[Operation]map[int]func([]byte)),
	}
}

// Register installs the handler for op, replacing any previous one.
func (h *HostTransport) Register(op Operation, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[op] = fn
}

// Unregister removes the handler for op.
func (h *HostTransport) Unregister(op Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, op)
}

// Request runs the handler in its own goroutine and waits for it or ctx.
func (h *HostTransport) Request(ctx context.Context, op Operation, payload []byte) ([]byte, error) {
	h.mu.RLock()
	fn, ok := h.handlers[op]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	done := make(chan Response, 1)
	go func() { done <- fn(ctx, req) }()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-done:
		if resp.OpKey == "" {
			resp.OpKey = req.Header.OpKey
		}
		return json.Marshal(resp)
	}
}

// Subscribe registers fn for events on op.
func (h *HostTransport) Subscribe(op Operation, fn func([]byte)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.subs[op] == nil {
		h.subs[op] = make(map[int]func([]byte))
	}
	id := h.nextSub
	h.nextSub++
	h.subs[op][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[op], id)
			h.mu.Unlock()
		})
	}, nil
}

// Emit pushes an event to the subscribers of ev.Op.
func (h *HostTransport) Emit(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	h.mu.RLock()
	fns := make([]func([]byte), 0, len(h.subs[ev.Op]))
	for _, fn := range h.subs[ev.Op] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

// Close rejects further requests and drops all subscribers.
func (h *HostTransport) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[Operation]map[int]func([]byte))
	return nil
}

// DecodeBody unmarshals the request body into dest.
func DecodeBody(req Request, dest any) error {
	if len(req.Body) == 0 {
		return nil
	}
	return json.Unmarshal(req.Body, dest)
}
