package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "HOSTSTAT"
	DefaultConfigFile = "/etc/hoststat.toml"
	DefaultLogLevel   = LogLevelInfo

	defaultHistorySize          = 180
	defaultConsolidationLimit   = 20
	defaultUpdateFrequency      = 3 * time.Second
	defaultCPUSampleDuration    = time.Second
	defaultPersistenceDir       = "/var/lib/hoststat"
	defaultPersistenceSizeLimit = 10_000_000
	defaultArchivePath          = "/var/lib/hoststat/archive.db"
	defaultListen               = "127.0.0.1:8080"
)

type Config struct {
	HistorySize          int           `mapstructure:"history_size"`
	ConsolidationLimit   int           `mapstructure:"consolidation_limit"`
	UpdateFrequency      time.Duration `mapstructure:"update_frequency"`
	CPUSampleDuration    time.Duration `mapstructure:"cpu_sample_duration"`
	Persist              bool          `mapstructure:"persist"`
	PersistenceDir       string        `mapstructure:"persistence_dir"`
	PersistenceSizeLimit int64         `mapstructure:"persistence_size_limit"`
	Archive              bool          `mapstructure:"archive"`
	ArchivePath          string        `mapstructure:"archive_path"`
	GPU                  bool          `mapstructure:"gpu"`
	Listen               string        `mapstructure:"listen"`
	LogLevel             LogLevel      `mapstructure:"log_level"`
	PIDDir               string        `mapstructure:"pid_dir"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"history-size":           "history_size",
	"consolidation-limit":    "consolidation_limit",
	"update-frequency":       "update_frequency",
	"cpu-sample-duration":    "cpu_sample_duration",
	"persist":                "persist",
	"persistence-dir":        "persistence_dir",
	"persistence-size-limit": "persistence_size_limit",
	"archive":                "archive",
	"archive-path":           "archive_path",
	"gpu":                    "gpu",
	"listen":                 "listen",
	"log-level":              "log_level",
	"pid-dir":                "pid_dir",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("history_size", defaultHistorySize)
	v.SetDefault("consolidation_limit", defaultConsolidationLimit)
	v.SetDefault("update_frequency", defaultUpdateFrequency)
	v.SetDefault("cpu_sample_duration", defaultCPUSampleDuration)
	v.SetDefault("persist", true)
	v.SetDefault("persistence_dir", defaultPersistenceDir)
	v.SetDefault("persistence_size_limit", defaultPersistenceSizeLimit)
	v.SetDefault("archive", false)
	v.SetDefault("archive_path", defaultArchivePath)
	v.SetDefault("gpu", true)
	v.SetDefault("listen", defaultListen)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("pid_dir", os.TempDir())
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hoststat", pflag.ContinueOnError)

	fs.String("config", "", "Path to a TOML configuration file")
	fs.Int("history-size", defaultHistorySize, "Number of consolidated snapshots kept in memory")
	fs.Int("consolidation-limit", defaultConsolidationLimit, "Raw samples averaged into one history entry")
	fs.Duration("update-frequency", defaultUpdateFrequency, "Time between samples")
	fs.Duration("cpu-sample-duration", defaultCPUSampleDuration, "Window used to measure CPU load")
	fs.Bool("persist", true, "Persist consolidated snapshots to disk")
	fs.String("persistence-dir", defaultPersistenceDir, "Directory for persisted snapshots")
	fs.Int64("persistence-size-limit", defaultPersistenceSizeLimit, "Upper bound in bytes for persisted snapshots")
	fs.Bool("archive", false, "Record consolidated snapshots in an SQLite archive")
	fs.String("archive-path", defaultArchivePath, "Path to the SQLite archive")
	fs.Bool("gpu", true, "Read NVIDIA GPU telemetry when available")
	fs.String("listen", defaultListen, "HTTP listen address")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("pid-dir", os.TempDir(), "Directory for the PID file")

	return fs
}

// Load reads configuration from, in decreasing priority: command line flags,
// environment variables, a TOML file and defaults.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(ErrBindFlags, err)
	}
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path, explicit := configPath(o, fs)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, errFactory.Wrap(ErrReadConfig, err).WithData(struct {
					Path  string
					Error string
				}{
					Path:  path,
					Error: err.Error(),
				})
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	cfg.LogLevel = LogLevel(strings.ToLower(string(cfg.LogLevel)))
	if cfg.LogLevel == "warn" {
		cfg.LogLevel = LogLevelWarning
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configPath resolves the configuration file. explicit is false only for the
// default location, which may be absent.
func configPath(o *options, fs *pflag.FlagSet) (string, bool) {
	if o.configPath != "" {
		return o.configPath, true
	}
	if p, _ := fs.GetString("config"); p != "" {
		return p, true
	}
	if p := os.Getenv(o.envPrefix + "_CONFIG"); p != "" {
		return p, true
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, false
	}
	return "", false
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	invalid := func(code errors.ErrorCode, field string, value interface{}, reason string) error {
		return errFactory.Wrap(code, &validationError{field: field, value: value, reason: reason})
	}

	switch {
	case c.HistorySize < 1:
		return invalid(ErrInvalidConfig, "history_size", c.HistorySize, "must be at least 1")
	case c.ConsolidationLimit < 1:
		return invalid(ErrInvalidConfig, "consolidation_limit", c.ConsolidationLimit, "must be at least 1")
	case c.CPUSampleDuration <= 0:
		return invalid(ErrInvalidInterval, "cpu_sample_duration", c.CPUSampleDuration, "must be positive")
	case c.UpdateFrequency <= c.CPUSampleDuration:
		return invalid(ErrInvalidInterval, "update_frequency", c.UpdateFrequency, "must exceed cpu_sample_duration")
	case c.Persist && c.PersistenceDir == "":
		return invalid(ErrInvalidConfig, "persistence_dir", c.PersistenceDir, "must be set when persist is enabled")
	case c.Persist && c.PersistenceSizeLimit <= 0:
		return invalid(ErrInvalidConfig, "persistence_size_limit", c.PersistenceSizeLimit, "must be positive")
	case c.Archive && c.ArchivePath == "":
		return invalid(ErrInvalidConfig, "archive_path", c.ArchivePath, "must be set when archive is enabled")
	case c.Listen == "":
		return invalid(ErrInvalidConfig, "listen", c.Listen, "must not be empty")
	case !c.LogLevel.IsValid():
		return invalid(ErrInvalidLogLevel, "log_level", c.LogLevel, "must be one of debug, info, warning, error")
	}

	return nil
}
