package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/agent_monitor/internal/logging"
	"github.com/Dicklesworthstone/agent_monitor/internal/schedule"
)

// ErrNoArguments is returned when the agent is started without any flag.
var ErrNoArguments = errors.New("no arguments given")

// Config carries runtime options for agent-monitor. It is loaded once at
// startup and not changed afterwards.
type Config struct {
	ServerURL      string `yaml:"server_url"`
	Port           int    `yaml:"port"`
	Token          string `yaml:"token"`
	Interval       int    `yaml:"interval"` // minutes
	LogFile        string `yaml:"log_file"`
	LogLevel       string `yaml:"log_level"`
	InstallService bool   `yaml:"-"`
	ConfigFile     string `yaml:"-"`
}

func Default() Config {
	return Config{
		Interval: 1,
		LogFile:  logging.DefaultFile,
		LogLevel: "info",
	}
}

// Endpoint is the collector URL metrics are posted to.
func (c Config) Endpoint() string {
	return fmt.Sprintf("%s:%d/collect", strings.TrimRight(c.ServerURL, "/"), c.Port)
}

// Args renders the flags that reproduce this configuration, used for the
// service unit's command line.
func (c Config) Args() []string {
	args := []string{
		"--url", c.ServerURL,
		"--port", strconv.Itoa(c.Port),
		"--token", c.Token,
		"--interval", strconv.Itoa(c.Interval),
		"--log_file", c.LogFile,
	}
	if c.LogLevel != "" && c.LogLevel != "info" {
		args = append(args, "--log_level", c.LogLevel)
	}
	return args
}

// NewFlagSet declares the agent's flags on a fresh FlagSet bound to cfg.
func NewFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("agent-monitor", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.ServerURL, "url", cfg.ServerURL, "monitoring server URL (required)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "monitoring server port (required)")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "API bearer token (required)")
	fs.IntVar(&cfg.Interval, "interval", cfg.Interval, "collection interval in minutes, minimum 1")
	fs.StringVar(&cfg.LogFile, "log_file", cfg.LogFile, "log file")
	fs.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "log level: debug|info|warning|error")
	fs.BoolVar(&cfg.InstallService, "install-service", cfg.InstallService, "create and start the systemd service, then exit")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "optional YAML config file")
	return fs
}

// FromFlags parses args and layers the sources: defaults, then the YAML file
// named by --config, then AGENT_MONITOR_* environment variables, then the
// flags that were set explicitly.
func FromFlags(args []string, output io.Writer) (Config, error) {
	if len(args) == 0 {
		d := Default()
		NewFlagSet(&d, output).Usage()
		return Config{}, ErrNoArguments
	}

	flags := Default()
	fs := NewFlagSet(&flags, output)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if flags.ConfigFile != "" {
		if err := LoadFile(flags.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = flags.ConfigFile
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.ServerURL = flags.ServerURL
		case "port":
			cfg.Port = flags.Port
		case "token":
			cfg.Token = flags.Token
		case "interval":
			cfg.Interval = flags.Interval
		case "log_file":
			cfg.LogFile = flags.LogFile
		case "log_level":
			cfg.LogLevel = flags.LogLevel
		case "install-service":
			cfg.InstallService = flags.InstallService
		}
	})

	cfg.Interval = schedule.Clamp(cfg.Interval)
	if cfg.LogFile == "" {
		cfg.LogFile = logging.DefaultFile
	}
	if err := cfg.Validate(); err != nil {
		fs.Usage()
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("AGENT_MONITOR_URL"); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup("AGENT_MONITOR_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENT_MONITOR_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v, ok := lookup("AGENT_MONITOR_TOKEN"); ok && v != "" {
		cfg.Token = v
	}
	if v, ok := lookup("AGENT_MONITOR_INTERVAL"); ok && v != "" {
		interval, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENT_MONITOR_INTERVAL: %w", err)
		}
		cfg.Interval = interval
	}
	if v, ok := lookup("AGENT_MONITOR_LOG_FILE"); ok && v != "" {
		cfg.LogFile = v
	}
	if v, ok := lookup("AGENT_MONITOR_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate reports every missing or malformed required setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("missing required --url"))
	} else if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid --url %q: expected scheme://host", c.ServerURL))
	}
	if c.Port == 0 {
		errs = append(errs, errors.New("missing required --port"))
	} else if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid --port %d", c.Port))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("missing required --token"))
	}
	return errors.Join(errs...)
}
