package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/naming"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Port != naming.DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, naming.DefaultPort)
	}
	if cfg.Type != "socket" {
		t.Errorf("Type = %q, want socket", cfg.Type)
	}
	if cfg.Server != DefaultServer {
		t.Errorf("Server = %q, want %q", cfg.Server, DefaultServer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); !hasCode(err, "H100") {
		t.Errorf("Load(empty dir) error = %v, want H100", err)
	}

	configJSON := `{
  "server": "rendezvous.local",
  "port": 4466,
  "session": "StockSession",
  "registry": {"redisUrl": "redis://localhost:6379/1", "metrics": true},
  "log": {"level": "debug"},
  "stocks": {"symbols": ["AAPL", "IBM"]}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server != "rendezvous.local" || cfg.Port != 4466 {
		t.Errorf("address = %s, want rendezvous.local:4466", cfg.Address())
	}
	if got := cfg.URL("").String(); got != "huddle://rendezvous.local:4466/socket/Session/StockSession" {
		t.Errorf("URL() = %s", got)
	}
	if !cfg.Registry.Metrics || cfg.Registry.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("Registry = %+v", cfg.Registry)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want debug/text", cfg.Log)
	}
	if len(cfg.Stocks.Symbols) != 2 {
		t.Errorf("Stocks.Symbols = %v", cfg.Stocks.Symbols)
	}
	// Unset fields take defaults.
	if cfg.Registry.AdvertiseHost != "rendezvous.local" {
		t.Errorf("AdvertiseHost = %q, want the server host", cfg.Registry.AdvertiseHost)
	}
	if cfg.ConnectTimeout() != 10*time.Second {
		t.Errorf("ConnectTimeout() = %v", cfg.ConnectTimeout())
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadPrefersYAML(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{"port": 1111}`), 0644)
	configYAML := `
port: 2222
stocks:
  symbols: [MSFT]
  interval: 5s
app:
  width: 640
  location: http://example.com
`
	os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte(configYAML), 0644)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 2222 {
		t.Errorf("Port = %d, want 2222 from YAML", cfg.Port)
	}
	if cfg.StockInterval() != 5*time.Second {
		t.Errorf("StockInterval() = %v", cfg.StockInterval())
	}
	if cfg.App.Width != 640 || cfg.App.Height != 300 || cfg.App.Location != "http://example.com" {
		t.Errorf("App = %+v", cfg.App)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	tests := []struct {
		name, file, content string
	}{
		{"json", "bad.json", "not valid json"},
		{"yaml", "bad.yaml", "port: [1, 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			os.WriteFile(path, []byte(tt.content), 0644)
			_, err := LoadFile(path)
			if !hasCode(err, "H101") {
				t.Errorf("LoadFile error = %v, want H101", err)
			}
		})
	}
}

func TestSaveTo(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := New()
			cfg.Port = 9000
			cfg.Stocks.Symbols = []string{"AAPL"}

			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}
			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			if loaded.Port != 9000 || len(loaded.Stocks.Symbols) != 1 {
				t.Errorf("reloaded = %+v", loaded)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvServer:   "10.0.0.5",
		EnvPort:     "4470",
		EnvRedisURL: "redis://cache:6379/0",
		EnvLogLevel: "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := New()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv error: %v", err)
	}
	if cfg.Address() != "10.0.0.5:4470" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Registry.RedisURL != "redis://cache:6379/0" || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Type != "socket" {
		t.Errorf("unset %s changed Type to %q", EnvType, cfg.Type)
	}

	env[EnvPort] = "nope"
	if err := New().ApplyEnv(lookup); !hasCode(err, "H102") {
		t.Errorf("bad port error = %v, want H102", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "Port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "Port"},
		{"type", func(c *Config) { c.Type = "http" }, "not supported"},
		{"session", func(c *Config) { c.Session = "" }, "Session"},
		{"ttl", func(c *Config) { c.Registry.TTL = "soon" }, "registry.ttl"},
		{"timeout", func(c *Config) { c.Client.ConnectTimeout = "-1s" }, "client.connectTimeout"},
		{"attempts", func(c *Config) { c.Client.MaxNameAttempts = 0 }, "maxNameAttempts"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if !hasCode(err, "H102") {
				t.Fatalf("Validate() error = %v, want H102", err)
			}
			var he *errors.HuddleError
			stderrors.As(err, &he)
			if !strings.Contains(he.Detail, tt.want) {
				t.Errorf("Detail = %q, want mention of %q", he.Detail, tt.want)
			}
		})
	}

	cfg := New()
	cfg.Type = "http"
	if err := cfg.Validate(); !stderrors.Is(err, naming.ErrUnsupportedType) {
		t.Errorf("type error = %v, want ErrUnsupportedType", err)
	}
}

func TestBindAddress(t *testing.T) {
	cfg := New()
	cfg.Port = 4466
	if cfg.BindAddress() != ":4466" {
		t.Errorf("BindAddress() = %q", cfg.BindAddress())
	}
	cfg.Registry.Address = "127.0.0.1:5000"
	if cfg.BindAddress() != "127.0.0.1:5000" {
		t.Errorf("BindAddress() = %q", cfg.BindAddress())
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(EnvType, "socket")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault error: %v", err)
	}
	if cfg.Port != naming.DefaultPort || cfg.Log.Level != "error" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func hasCode(err error, code string) bool {
	var he *errors.HuddleError
	return stderrors.As(err, &he) && he.Code == code
}
