package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval = 15 * time.Second

	formatCLI  = "cli"
	formatJSON = "json"
	formatText = "text"
)

// config is the browser configuration, loaded from an optional YAML file and
// overridden by any flag given on the command line.
type config struct {
	Service     string        `yaml:"service"`
	Interface   string        `yaml:"interface"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	IgnoreEmpty bool          `yaml:"ignore_empty"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	Output      string        `yaml:"output"`
}

func defaultConfig() config {
	return config{
		Interval:    defaultInterval,
		IgnoreEmpty: true,
		LogLevel:    "info",
		LogFormat:   formatCLI,
		Output:      formatText,
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// override copies every field whose flag was set explicitly, plus the
// positional service name.
func (c *config) override(flags config, changed func(name string) bool, args []string) {
	if len(args) > 0 {
		c.Service = args[0]
	}
	if changed("interface") {
		c.Interface = flags.Interface
	}
	if changed("interval") {
		c.Interval = flags.Interval
	}
	if changed("timeout") {
		c.Timeout = flags.Timeout
	}
	if changed("ignore-empty") {
		c.IgnoreEmpty = flags.IgnoreEmpty
	}
	if changed("log-level") {
		c.LogLevel = flags.LogLevel
	}
	if changed("log-format") {
		c.LogFormat = flags.LogFormat
	}
	if changed("output") {
		c.Output = flags.Output
	}
}

func (c *config) validate() error {
	if c.Service == "" {
		return errors.New("a service name is required, e.g. _googlecast._tcp.local")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	if c.Interface != "" && c.interfaceIP() == nil {
		return fmt.Errorf("interface must be an IPv4 address, got %q", c.Interface)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case formatCLI, formatJSON:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q", formatCLI, formatJSON, c.LogFormat)
	}
	switch c.Output {
	case formatText, formatJSON:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", formatText, formatJSON, c.Output)
	}
	return nil
}

func (c *config) interfaceIP() net.IP {
	if c.Interface == "" {
		return nil
	}
	return net.ParseIP(c.Interface).To4()
}

// newLogger builds the logger described by c. It assumes c is valid.
func (c *config) newLogger(w io.Writer) *log.Logger {
	var h log.Handler = cli.New(w)
	if c.LogFormat == formatJSON {
		h = json.New(w)
	}
	return &log.Logger{
		Handler: h,
		Level:   log.MustParseLevel(c.LogLevel),
	}
}
