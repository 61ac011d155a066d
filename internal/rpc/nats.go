package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	defaultSubjectPrefix = "clan.api"
	defaultConnectWait   = 5 * time.Second
)

// NATSTransport reaches the host over NATS request/reply. Operation op is
// served on "<prefix>.<op>" and its events arrive on "<prefix>.events.<op>".
type NATSTransport struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

var _ Transport = (*NATSTransport)(nil)

// NATSOptions configure DialNATS.
type NATSOptions struct {
	URL         string
	Prefix      string
	Name        string
	ConnectWait time.Duration
	Logger      *zap.Logger
}

// DialNATS connects to the NATS server that fronts the host.
func DialNATS(opts NATSOptions) (*NATSTransport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := subjectPrefix(opts.Prefix)
	name := opts.Name
	if name == "" {
		name = "clanboard"
	}
	wait := opts.ConnectWait
	if wait <= 0 {
		wait = defaultConnectWait
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(wait),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSTransport{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the request subject of op.
func (t *NATSTransport) Subject(op Operation) string {
	return t.prefix + "." + string(op)
}

// EventSubject returns the subject host events for op are published on.
func (t *NATSTransport) EventSubject(op Operation) string {
	return t.prefix + ".events." + string(op)
}

func (t *NATSTransport) Request(ctx context.Context, op Operation, payload []byte) ([]byte, error) {
	if t.nc == nil || t.nc.IsClosed() {
		return nil, ErrClosed
	}
	msg, err := t.nc.RequestWithContext(ctx, t.Subject(op), payload)
	if err != nil {
		return nil, requestError(op, err)
	}
	return msg.Data, nil
}

func subjectPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return defaultSubjectPrefix
	}
	return prefix
}

// requestError maps a subject nobody serves to ErrUnknownOperation.
func requestError(op Operation, err error) error {
	if errors.Is(err, nats.ErrNoResponders) {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return err
}

func (t *NATSTransport) Subscribe(op Operation, fn func([]byte)) (func(), error) {
	if t.nc == nil || t.nc.IsClosed() {
		return nil, ErrClosed
	}
	sub, err := t.nc.Subscribe(t.EventSubject(op), func(m *nats.Msg) {
		fn(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", op, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			t.logger.Debug("nats unsubscribe", zap.String("op", string(op)), zap.Error(err))
		}
	}, nil
}

// Close drains pending messages and closes the connection.
func (t *NATSTransport) Close() error {
	if t.nc == nil || t.nc.IsClosed() {
		return nil
	}
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
		return err
	}
	return nil
}
