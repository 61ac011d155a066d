package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds clanboard settings.
type Config struct {
	NATSURL        string
	SubjectPrefix  string
	RequestTimeout time.Duration
	RefreshEvery   time.Duration
	Storage        string
	DataDir        string
	LogLevel       string
	LogFile        string
	Theme          string
	MetricsAddr    string
}

const (
	defaultConfigPath     = "~/.config/clanboard/config.toml"
	defaultDataDir        = "~/.local/share/clanboard"
	defaultNATSURL        = "nats://127.0.0.1:4222"
	defaultSubjectPrefix  = "clan.api"
	defaultRequestTimeout = 30 * time.Second
	defaultRefreshEvery   = 10 * time.Second
	defaultStorage        = "badger"
	defaultLogLevel       = "info"
	defaultTheme          = "Nightfox"
)

// Default returns the settings used when no config file exists.
func Default() Config {
	dataDir := mustExpand(defaultDataDir)
	return Config{
		NATSURL:        defaultNATSURL,
		SubjectPrefix:  defaultSubjectPrefix,
		RequestTimeout: defaultRequestTimeout,
		RefreshEvery:   defaultRefreshEvery,
		Storage:        defaultStorage,
		DataDir:        dataDir,
		LogLevel:       defaultLogLevel,
		LogFile:        filepath.Join(dataDir, "clanboard.log"),
		Theme:          defaultTheme,
	}
}

// Load locates and parses the clanboard config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		NATSURL        string `toml:"nats_url"`
		SubjectPrefix  string `toml:"subject_prefix"`
		RequestTimeout string `toml:"request_timeout"`
		RefreshEvery   string `toml:"refresh_every"`
		Storage        string `toml:"storage"`
		DataDir        string `toml:"data_dir"`
		LogLevel       string `toml:"log_level"`
		LogFile        string `toml:"log_file"`
		Theme          string `toml:"theme"`
		MetricsAddr    string `toml:"metrics_addr"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.NATSURL, raw.NATSURL)
	setString(&cfg.SubjectPrefix, raw.SubjectPrefix)
	setString(&cfg.Storage, strings.ToLower(raw.Storage))
	setString(&cfg.LogLevel, strings.ToLower(raw.LogLevel))
	setString(&cfg.Theme, raw.Theme)
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)

	if err := setDuration(&cfg.RequestTimeout, "request_timeout", raw.RequestTimeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.RefreshEvery, "refresh_every", raw.RefreshEvery); err != nil {
		return Config{}, err
	}

	if dir := strings.TrimSpace(raw.DataDir); dir != "" {
		cfg.DataDir = mustExpand(dir)
		cfg.LogFile = filepath.Join(cfg.DataDir, "clanboard.log")
	}
	if file := strings.TrimSpace(raw.LogFile); file != "" {
		cfg.LogFile = mustExpand(file)
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("parse %s: must be positive", key)
	}
	*dst = d
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
