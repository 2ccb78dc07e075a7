// Package config resolves warpmulti settings from defaults, an optional
// config.yaml in the configuration directory and WARPMULTI_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/warpdl/warpmulti/common"
	"github.com/warpdl/warpmulti/internal/poll"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
)

// FileName is the config file looked up in the configuration directory.
const FileName = "config.yaml"

// Config is the resolved configuration.
type Config struct {
	ConfigDir      string        `mapstructure:"-"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout"`
	MaxWait        time.Duration `mapstructure:"max_wait"`
	MaxWorkers     int64         `mapstructure:"max_workers"`
	MaxTries       uint          `mapstructure:"max_tries"`
	LockOSThread   bool          `mapstructure:"lock_os_thread"`
	Proxy          string        `mapstructure:"proxy"`
	HistoryDB      string        `mapstructure:"history_db"`
	ScriptPath     string        `mapstructure:"script"`
	Listen         string        `mapstructure:"listen"`
	LogFormat      string        `mapstructure:"log_format"`
	KnownHostsPath string        `mapstructure:"known_hosts"`
	SSHKeyPath     string        `mapstructure:"ssh_key"`
	Debug          bool          `mapstructure:"debug"`
}

var envBindings = map[string]string{
	"wait_timeout":   common.WaitTimeoutEnv,
	"max_wait":       common.MaxWaitEnv,
	"max_workers":    common.MaxWorkersEnv,
	"max_tries":      common.MaxTriesEnv,
	"lock_os_thread": common.LockOSThreadEnv,
	"proxy":          common.ProxyEnv,
	"history_db":     common.HistoryDBEnv,
	"script":         common.ScriptEnv,
	"listen":         common.ListenEnv,
	"log_format":     common.LogFormatEnv,
	"debug":          common.DebugEnv,
}

var userConfigDir = os.UserConfigDir

// DefaultDir returns WARPMULTI_CONFIG_DIR or the per-user config directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(common.ConfigDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(base, "warpmulti"), nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("wait_timeout", poll.DefaultWait)
	v.SetDefault("max_wait", poll.DefaultMaxWait)
	v.SetDefault("max_workers", 0)
	v.SetDefault("max_tries", engine.DefaultMaxTries)
	v.SetDefault("lock_os_thread", false)
	v.SetDefault("proxy", "")
	v.SetDefault("history_db", filepath.Join(dir, "history.db"))
	v.SetDefault("script", "")
	v.SetDefault("listen", common.DefaultListen)
	v.SetDefault("log_format", "text")
	v.SetDefault("known_hosts", filepath.Join(dir, "known_hosts"))
	v.SetDefault("ssh_key", "")
	v.SetDefault("debug", false)
}

// Load resolves the configuration for dir. An empty dir uses DefaultDir.
// The directory is created if missing; a missing config.yaml is not an error.
func Load(dir string) (*Config, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	setDefaults(v, dir)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(filepath.Join(dir, FileName))
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigDir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.WaitTimeout <= 0:
		return fmt.Errorf("wait_timeout must be positive, got %s", c.WaitTimeout)
	case c.MaxWait <= 0:
		return fmt.Errorf("max_wait must be positive, got %s", c.MaxWait)
	case c.MaxWorkers < 0:
		return fmt.Errorf("max_workers must not be negative, got %d", c.MaxWorkers)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// PollOptions returns the poll loop tuning.
func (c *Config) PollOptions(l logger.Logger) poll.Options {
	return poll.Options{DefaultWait: c.WaitTimeout, MaxWait: c.MaxWait, Logger: l}
}

// ThreadOptions returns the worker spawner settings.
func (c *Config) ThreadOptions(l logger.Logger) threads.Options {
	return threads.Options{LockOSThread: c.LockOSThread, MaxLive: c.MaxWorkers, Logger: l}
}

// MultiOpts returns engine options. creds may be nil.
func (c *Config) MultiOpts(creds engine.CredentialFunc) *engine.MultiOpts {
	return &engine.MultiOpts{
		Proxy:          c.Proxy,
		Credentials:    creds,
		KnownHostsPath: c.KnownHostsPath,
		SSHKeyPath:     c.SSHKeyPath,
		MaxTries:       c.MaxTries,
	}
}
