// Package config loads godudb settings from defaults, an optional YAML file,
// GODUDB_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sadopc/godudb/internal/remote"
	"github.com/sadopc/godudb/internal/scanner"
)

// EnvPrefix prefixes environment overrides, e.g. GODUDB_DB.
const EnvPrefix = "GODUDB"

// Keys double as flag names.
const (
	KeyDB             = "db"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyMetricsAddr    = "metrics-addr"
	KeyHidden         = "hidden"
	KeyExclude        = "exclude"
	KeyFollowSymlinks = "follow-symlinks"
	KeyJobs           = "jobs"
	KeyFanOut         = "fanout"
	KeyBatchSize      = "batch-size"
	KeyMailbox        = "mailbox"
	KeySSHPort        = "ssh-port"
	KeySSHBatch       = "ssh-batch"
	KeySSHTimeout     = "ssh-timeout"
)

// Config is the resolved configuration.
type Config struct {
	DB          string `mapstructure:"db"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	MetricsAddr string `mapstructure:"metrics-addr"`

	Hidden         bool     `mapstructure:"hidden"`
	Exclude        []string `mapstructure:"exclude"`
	FollowSymlinks bool     `mapstructure:"follow-symlinks"`
	Jobs           int      `mapstructure:"jobs"`
	FanOut         int      `mapstructure:"fanout"`
	BatchSize      int      `mapstructure:"batch-size"`
	Mailbox        int      `mapstructure:"mailbox"`

	SSHPort    int           `mapstructure:"ssh-port"`
	SSHBatch   bool          `mapstructure:"ssh-batch"`
	SSHTimeout time.Duration `mapstructure:"ssh-timeout"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// DefaultDir is where the database and config file live by default.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "godudb")
}

// SetDefaults registers every key's default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDB, filepath.Join(DefaultDir(), "godudb.db"))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyHidden, true)
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyFollowSymlinks, false)
	v.SetDefault(KeyJobs, 0)
	v.SetDefault(KeyFanOut, scanner.DefaultFanOutThreshold)
	v.SetDefault(KeyBatchSize, scanner.DefaultBatchSize)
	v.SetDefault(KeyMailbox, 100)
	v.SetDefault(KeySSHPort, 22)
	v.SetDefault(KeySSHBatch, false)
	v.SetDefault(KeySSHTimeout, 15*time.Second)
}

// Load resolves the configuration. An explicit file must exist; otherwise
// config.yaml in DefaultDir is read when present. flags may be nil.
func Load(v *viper.Viper, file string, flags *pflag.FlagSet) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Exclude = cleanList(cfg.Exclude)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DB) == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	if c.Jobs < 0 {
		errs = append(errs, errors.New("jobs must be >= 0"))
	}
	if c.FanOut < 0 {
		errs = append(errs, errors.New("fanout must be >= 0"))
	}
	if c.BatchSize < 0 {
		errs = append(errs, errors.New("batch-size must be >= 0"))
	}
	if c.Mailbox < 0 {
		errs = append(errs, errors.New("mailbox must be >= 0"))
	}
	if c.SSHPort < 1 || c.SSHPort > 65535 {
		errs = append(errs, errors.New("ssh-port must be between 1 and 65535"))
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log-format must be auto, text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// WalkerOptions maps the scan settings onto walker options.
func (c Config) WalkerOptions() scanner.Options {
	opts := scanner.DefaultOptions()
	opts.ShowHidden = c.Hidden
	opts.FollowSymlinks = c.FollowSymlinks
	opts.Exclude = c.Exclude
	opts.Concurrency = c.Jobs
	opts.FanOutThreshold = c.FanOut
	return opts
}

// Remote maps the SSH settings onto the remote opener's config. The port
// applies when a root does not name one.
func (c Config) Remote() remote.Config {
	return remote.Config{Port: c.SSHPort, BatchMode: c.SSHBatch, Timeout: c.SSHTimeout}
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
