package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/clanapi"
	"github.com/five82/clanboard/internal/config"
	"github.com/five82/clanboard/internal/demohost"
	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/logging"
	"github.com/five82/clanboard/internal/notify"
	"github.com/five82/clanboard/internal/persist"
	"github.com/five82/clanboard/internal/rpc"
	"github.com/five82/clanboard/internal/store"
	"github.com/five82/clanboard/internal/ui"
)

// DemoClanDir is the directory of the example clan served in demo mode.
const DemoClanDir = "/srv/clans/demo"

// toastTTL is how long finished toasts stay visible.
const toastTTL = 8 * time.Second

// Options configure the clanboard application. Empty override fields keep
// the value from the config file.
type Options struct {
	ConfigPath string
	// Demo serves an in-memory example host instead of dialing NATS.
	Demo bool

	NATSURL  string
	Storage  string
	LogLevel string
	Theme    string

	// LogToStderr logs human-readable lines to stderr instead of the log
	// file. Only for commands that do not draw the TUI.
	LogToStderr bool
}

// Stack is the wired set of clanboard services shared by the TUI and the
// CLI subcommands.
type Stack struct {
	Config   config.Config
	Logger   *zap.Logger
	Storage  kv.Backend
	Client   *rpc.Client
	Clans    *store.Clans
	Toasts   *notify.Center
	Registry *prometheus.Registry

	closers []func() error
}

// Open loads configuration and wires storage, transport, client and store.
// The returned stack is initialised; Close releases it.
func Open(ctx context.Context, opts Options) (_ *Stack, err error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Development: opts.LogToStderr,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	s := &Stack{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	kind, err := kv.ParseKind(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if opts.Demo {
		kind = kv.KindMemory
	}
	s.Storage, err = kv.Open(kind, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", kind, err)
	}
	s.closers = append(s.closers, s.Storage.Close)

	transport, err := openTransport(cfg, opts.Demo, logger)
	if err != nil {
		return nil, err
	}

	s.Registry = prometheus.NewRegistry()
	metrics, err := rpc.NewMetrics(s.Registry)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s.Toasts = notify.New(nil, toastTTL, logger.Named("notify"))
	s.Client, err = rpc.NewClient(transport,
		rpc.WithLogger(logger.Named("rpc")),
		rpc.WithObserver(s.Toasts),
		rpc.WithMetrics(metrics),
	)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("init rpc client: %w", err)
	}
	s.closers = append(s.closers, s.Client.Close)
	s.Toasts.SetCanceller(s.Client)

	s.Clans, err = store.New(store.Options{
		API:     clanapi.New(s.Client),
		Storage: s.Storage,
		Logger:  logger.Named("store"),
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := s.Clans.Init(initCtx); err != nil {
		return nil, fmt.Errorf("restore clans: %w", err)
	}
	if opts.Demo && len(s.Clans.Snapshot().All) == 0 {
		if _, err := s.Clans.LoadClan(initCtx, DemoClanDir); err != nil {
			return nil, fmt.Errorf("load demo clan: %w", err)
		}
	}

	logger.Info("clanboard started",
		zap.Bool("demo", opts.Demo),
		zap.String("storage", string(kind)),
		zap.Int("clans", len(s.Clans.Snapshot().All)),
	)
	return s, nil
}

// Close releases storage and transport in reverse order of opening.
func (s *Stack) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	s.closers = nil
	if s.Logger != nil {
		// Sync fails on some terminals; it is not worth reporting.
		_ = s.Logger.Sync()
	}
	return err
}

// Run boots the clanboard TUI until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if addr := s.Config.MetricsAddr; addr != "" {
		_, stop, err := ServeMetrics(addr, s.Registry, s.Logger.Named("metrics"))
		if err != nil {
			return err
		}
		defer stop()
	}

	done := StartPoller(ctx, s.Clans, s.Config.RefreshEvery, s.Config.RequestTimeout, s.Logger.Named("poller"))

	err = ui.Run(ui.Options{
		Context:   ctx,
		Clans:     s.Clans,
		Toasts:    s.Toasts,
		Canceller: s.Client,
		Storage:   s.Storage,
		ThemeName: s.theme(opts.Theme),
		Logger:    s.Logger.Named("ui"),
	})
	cancel()
	<-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// theme picks the override, then the saved choice, then the config value.
func (s *Stack) theme(override string) string {
	if t := strings.TrimSpace(override); t != "" {
		return t
	}
	saved, err := persist.LoadTheme(s.Storage)
	if err != nil {
		s.Logger.Warn("read saved theme", zap.Error(err))
	}
	if saved != "" {
		return saved
	}
	return s.Config.Theme
}

func applyOverrides(cfg *config.Config, opts Options) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.NATSURL, opts.NATSURL)
	set(&cfg.Storage, strings.ToLower(opts.Storage))
	set(&cfg.LogLevel, strings.ToLower(opts.LogLevel))
}

func openTransport(cfg config.Config, demo bool, logger *zap.Logger) (rpc.Transport, error) {
	if demo {
		host := demohost.New(logger.Named("demohost"))
		host.Seed(DemoClanDir)
		host.SetPickDir(DemoClanDir)
		tr := rpc.NewHostTransport()
		host.Serve(tr)
		return tr, nil
	}
	tr, err := rpc.DialNATS(rpc.NATSOptions{
		URL:    cfg.NATSURL,
		Prefix: cfg.SubjectPrefix,
		Logger: logger.Named("nats"),
	})
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}
	return tr, nil
}
