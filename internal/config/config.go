package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/naming"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "huddle.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// preferred over ConfigFileName when both exist.
	YAMLConfigFileName = "huddle.yaml"

	// DefaultServer is the default rendezvous host.
	DefaultServer = "localhost"

	// DefaultSession is the default session name.
	DefaultSession = "HuddleSession"
)

// Config represents the complete huddle.json / huddle.yaml configuration.
type Config struct {
	// Server is the rendezvous host clients connect to.
	Server string `json:"server,omitempty" yaml:"server,omitempty"`

	// Port is the rendezvous port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Type is the session transport type. Only "socket" is supported.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Session is the session name used when a command names none.
	Session string `json:"session,omitempty" yaml:"session,omitempty"`

	// Name is the client name. Empty means derive one from the host name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Registry contains rendezvous endpoint settings.
	Registry RegistryConfig `json:"registry,omitempty" yaml:"registry,omitempty"`

	// Client contains remote client settings.
	Client ClientConfig `json:"client,omitempty" yaml:"client,omitempty"`

	// Auth contains token authorization settings.
	Auth AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`

	// Log contains logger settings.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Stocks contains stock server settings.
	Stocks StocksConfig `json:"stocks,omitempty" yaml:"stocks,omitempty"`

	// App contains display options shared by the bundled applications.
	App AppConfig `json:"app,omitempty" yaml:"app,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RegistryConfig contains rendezvous endpoint settings.
type RegistryConfig struct {
	// Address is the address the endpoint binds to. Default ":<port>".
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// AdvertiseHost is the host recorded in the directory.
	AdvertiseHost string `json:"advertiseHost,omitempty" yaml:"advertiseHost,omitempty"`

	// RedisURL selects a Redis directory shared between processes.
	// Empty uses the in-process directory.
	RedisURL string `json:"redisUrl,omitempty" yaml:"redisUrl,omitempty"`

	// TTL is how long a directory entry outlives its registry (e.g., "30s").
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// UnreliableQueueLimit bounds consumer queues on unreliable channels.
	UnreliableQueueLimit int `json:"unreliableQueueLimit,omitempty" yaml:"unreliableQueueLimit,omitempty"`

	// Metrics enables per-request Prometheus metrics.
	Metrics bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Tracing enables per-request OpenTelemetry spans.
	Tracing bool `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// ClientConfig contains remote client settings.
type ClientConfig struct {
	// ConnectTimeout bounds dialing and the handshake (e.g., "10s").
	ConnectTimeout string `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"`

	// MaxNameAttempts caps the retry loop that appends '+' on name in use.
	MaxNameAttempts int `json:"maxNameAttempts,omitempty" yaml:"maxNameAttempts,omitempty"`
}

// AuthConfig contains token authorization settings.
type AuthConfig struct {
	// Secret is the HMAC secret for session tokens. Empty disables
	// authorization.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`

	// TokenTTL is the lifetime of issued tokens (e.g., "1h").
	TokenTTL string `json:"tokenTtl,omitempty" yaml:"tokenTtl,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// StocksConfig contains stock server settings.
type StocksConfig struct {
	// Symbols are published even before any client asks for them.
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`

	// Interval is the refresh period (e.g., "15s").
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Channel carries ticker requests from clients to the stock server.
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// AppConfig contains display options for the bundled applications.
type AppConfig struct {
	Width    int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height   int    `json:"height,omitempty" yaml:"height,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server:  DefaultServer,
		Port:    naming.DefaultPort,
		Type:    naming.DefaultType,
		Session: DefaultSession,
		Registry: RegistryConfig{
			AdvertiseHost:        DefaultServer,
			TTL:                  "30s",
			UnreliableQueueLimit: 256,
		},
		Client: ClientConfig{
			ConnectTimeout:  "10s",
			MaxNameAttempts: 16,
		},
		Auth: AuthConfig{
			TokenTTL: "1h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Stocks: StocksConfig{
			Interval: "15s",
			Channel:  "StockRequests",
		},
		App: AppConfig{
			Width:  400,
			Height: 300,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// huddle.yaml, then huddle.json.
func Load(dir string) (*Config, error) {
	for _, name := range []string{YAMLConfigFileName, ConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("H100").
		WithDetail("No " + YAMLConfigFileName + " or " + ConfigFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("H100").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("H101").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("H101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// SaveTo writes the configuration to the specified path, as YAML or JSON by
// extension.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("H101").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("H101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()
	if c.Server == "" {
		c.Server = d.Server
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.Session == "" {
		c.Session = d.Session
	}

	// Registry
	if c.Registry.AdvertiseHost == "" {
		c.Registry.AdvertiseHost = c.Server
	}
	if c.Registry.TTL == "" {
		c.Registry.TTL = d.Registry.TTL
	}
	if c.Registry.UnreliableQueueLimit == 0 {
		c.Registry.UnreliableQueueLimit = d.Registry.UnreliableQueueLimit
	}

	// Client
	if c.Client.ConnectTimeout == "" {
		c.Client.ConnectTimeout = d.Client.ConnectTimeout
	}
	if c.Client.MaxNameAttempts == 0 {
		c.Client.MaxNameAttempts = d.Client.MaxNameAttempts
	}

	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = d.Auth.TokenTTL
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	// Stocks
	if c.Stocks.Interval == "" {
		c.Stocks.Interval = d.Stocks.Interval
	}
	if c.Stocks.Channel == "" {
		c.Stocks.Channel = d.Stocks.Channel
	}

	if c.App.Width == 0 {
		c.App.Width = d.App.Width
	}
	if c.App.Height == 0 {
		c.App.Height = d.App.Height
	}
}

// Environment variables read by ApplyEnv.
const (
	EnvServer   = "HUDDLE_SERVER"
	EnvPort     = "HUDDLE_PORT"
	EnvType     = "HUDDLE_TYPE"
	EnvRedisURL = "HUDDLE_REDIS_URL"
	EnvLogLevel = "HUDDLE_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServer); ok && v != "" {
		c.Server = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("H102").
				WithDetail(fmt.Sprintf("%s=%q is not a port number", EnvPort, v))
		}
		c.Port = port
	}
	if v, ok := lookup(EnvType); ok && v != "" {
		c.Type = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Registry.RedisURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("H102").WithDetail(fmt.Sprintf(format, args...))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return invalid("Port must be between 1 and 65535, got %d", c.Port)
	}
	if err := naming.CheckType(c.Type); err != nil {
		return errors.New("H102").
			WithDetail(fmt.Sprintf("Type %q is not supported", c.Type)).
			WithSuggestion("Use type \"socket\"").
			Wrap(err)
	}
	if c.Session == "" {
		return invalid("Session must not be empty")
	}
	for _, d := range []struct {
		field, value string
	}{
		{"registry.ttl", c.Registry.TTL},
		{"client.connectTimeout", c.Client.ConnectTimeout},
		{"auth.tokenTtl", c.Auth.TokenTTL},
		{"stocks.interval", c.Stocks.Interval},
	} {
		if v, err := time.ParseDuration(d.value); err != nil || v <= 0 {
			return invalid("%s must be a positive duration, got %q", d.field, d.value)
		}
	}
	if c.Client.MaxNameAttempts < 1 {
		return invalid("client.maxNameAttempts must be at least 1")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Address returns the rendezvous host:port.
func (c *Config) Address() string {
	return c.URL("").Addr()
}

// BindAddress returns the address the registry endpoint binds to.
func (c *Config) BindAddress() string {
	if c.Registry.Address != "" {
		return c.Registry.Address
	}
	return ":" + strconv.Itoa(c.Port)
}

// URL returns the session URL for name, or for the configured session when
// name is empty.
func (c *Config) URL(name string) naming.URL {
	if name == "" {
		name = c.Session
	}
	return naming.New(c.Server, c.Port, c.Type, name)
}

// RegistryTTL returns the parsed registry TTL.
func (c *Config) RegistryTTL() time.Duration {
	return parseDuration(c.Registry.TTL, 30*time.Second)
}

// ConnectTimeout returns the parsed client connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return parseDuration(c.Client.ConnectTimeout, 10*time.Second)
}

// TokenTTL returns the parsed token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.Auth.TokenTTL, time.Hour)
}

// StockInterval returns the parsed stock refresh period.
func (c *Config) StockInterval() time.Duration {
	return parseDuration(c.Stocks.Interval, 15*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{YAMLConfigFileName, ConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// LoadOrDefault loads configuration from dir, or returns defaults when dir
// holds no config file. Environment overrides are applied either way.
func LoadOrDefault(dir string) (*Config, error) {
	cfg := New()
	if Exists(dir) {
		loaded, err := Load(dir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
