package config

import (
	"os"
	"time"

	"codeberg.org/tessen/netdom/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval  = 60 // seconds
	DefaultLogLevel  = "info"
	DefaultInventory = "inventory.csv"

	configEnvVar = "NETDOM_CONFIG"
)

// Config is the process-wide configuration, constructed once at startup and
// immutable afterward. Endpoint URLs and credentials referencing environment
// variables are expanded exactly once at load time.
type Config struct {
	LogLevel   string                     `mapstructure:"log_level"`
	Defaults   DefaultsConfig             `mapstructure:"defaults"`
	Collectors map[string]CollectorConfig `mapstructure:"collectors"`
	Exporters  map[string]ExporterConfig  `mapstructure:"exporters"`
	Export     ExportConfig               `mapstructure:"export"`
}

type DefaultsConfig struct {
	Interval    int               `mapstructure:"interval"`
	Inventory   string            `mapstructure:"inventory"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type CredentialsConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CollectorConfig struct {
	Interval         int   `mapstructure:"interval"`
	ExcludeAdminDown *bool `mapstructure:"exclude_admin_down"`
	ExcludeLinkDown  bool  `mapstructure:"exclude_link_down"`
}

type ExporterConfig struct {
	Type      string `mapstructure:"type"`
	URL       string `mapstructure:"url"`
	ServerURL string `mapstructure:"server_url"`
	Database  string `mapstructure:"database"`
	Listen    string `mapstructure:"listen"`
	BatchSize int    `mapstructure:"batch_size"`
}

type ExportConfig struct {
	MaxInflight   int           `mapstructure:"max_inflight"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"`
	ExportTimeout time.Duration `mapstructure:"export_timeout"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("netdom", pflag.ContinueOnError)
	configPath := fs.StringP("config", "C", "", "path to configuration file")
	interval := fs.Int("interval", 0, "collection interval (seconds)")
	inventory := fs.String("inventory", "", "path to inventory file")
	logLevel := fs.String("log-level", "", "log level")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("defaults.interval", DefaultInterval)
	v.SetDefault("defaults.inventory", DefaultInventory)
	v.SetDefault("export.max_inflight", 100)
	v.SetDefault("export.backoff_base", "4s")
	v.SetDefault("export.backoff_cap", "10s")
	v.SetDefault("export.export_timeout", "0s")

	switch {
	case *configPath != "":
		v.SetConfigFile(*configPath)
	case os.Getenv(configEnvVar) != "":
		v.SetConfigFile(os.Getenv(configEnvVar))
	default:
		v.SetConfigName("netdom")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	}

	// Command line flags override file values
	if *interval > 0 {
		v.Set("defaults.interval", *interval)
	}
	if *inventory != "" {
		v.Set("defaults.inventory", *inventory)
	}
	if *logLevel != "" {
		v.Set("log_level", *logLevel)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	config.expandEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// expandEnv resolves $VAR references in secrets and endpoint addresses.
// Expansion happens once; the result is cached in the config for the
// process lifetime.
func (c *Config) expandEnv() {
	c.Defaults.Credentials.Username = os.ExpandEnv(c.Defaults.Credentials.Username)
	c.Defaults.Credentials.Password = os.ExpandEnv(c.Defaults.Credentials.Password)

	for name, exp := range c.Exporters {
		exp.URL = os.ExpandEnv(exp.URL)
		exp.ServerURL = os.ExpandEnv(exp.ServerURL)
		c.Exporters[name] = exp
	}
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Defaults.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Defaults.Interval)
	}
	if c.Defaults.Inventory == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "missing inventory path")
	}

	if !validLogLevel(c.LogLevel) {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	for name, col := range c.Collectors {
		if col.Interval < 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, name)
		}
	}

	for name, exp := range c.Exporters {
		switch exp.Type {
		case "circonus", "influxdb", "prometheus", "journal":
		default:
			return errFactory.WithMessage(errors.ErrInvalidConfig, "unknown exporter type").WithData(struct {
				Exporter string
				Type     string
			}{name, exp.Type})
		}
	}

	return nil
}

// CollectorInterval returns the effective interval for a named collector:
// its own setting when present, the process-wide default otherwise.
func (c *Config) CollectorInterval(name string) time.Duration {
	if col, ok := c.Collectors[name]; ok && col.Interval > 0 {
		return time.Duration(col.Interval) * time.Second
	}

	return time.Duration(c.Defaults.Interval) * time.Second
}

func validLogLevel(level string) bool {
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal":
		return true
	default:
		return false
	}
}
