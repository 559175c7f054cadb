// ABOUTME: Configuration loading for the rpcd server binary
// ABOUTME: Supports YAML files, defaults and RPCD_ environment variable overrides

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harper/rpc-engine/internal/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. RPCD_SERVER_HTTP_PORT.
const EnvPrefix = "RPCD"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

type ServerConfig struct {
	HTTPHost      string `mapstructure:"http_host"`
	HTTPPort      int    `mapstructure:"http_port"`
	HTTPPath      string `mapstructure:"http_path"`
	WebSocketPath string `mapstructure:"websocket_path"`
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)
}

type PipelineConfig struct {
	IdleTimeoutMS int `mapstructure:"idle_timeout_ms"`
}

// IdleTimeout is the quiescence window of pipeline workers.
func (p PipelineConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMS) * time.Millisecond
}

// DatabaseConfig locates the sqlite message journal. An empty path disables it.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// DispatcherConfig exposes registered methods under extra names.
type DispatcherConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_host", "127.0.0.1")
	v.SetDefault("server.http_port", 8090)
	v.SetDefault("server.http_path", "/rpc")
	v.SetDefault("server.websocket_path", "/ws")
	v.SetDefault("pipeline.idle_timeout_ms", 5000)
	v.SetDefault("database.path", "$XDG_DATA_HOME/"+xdg.AppName+"/journal.sqlite")
	v.SetDefault("logging.verbose", false)
}

// Load reads the config at path. An empty path yields the defaults, still
// subject to environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// RPCD_DATABASE_PATH= disables the journal
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Viper lowercases map keys, but method names are case-sensitive.
	// Parse YAML directly to preserve the original case of dispatcher.aliases.
	if path != "" {
		aliases, err := readAliases(path)
		if err != nil {
			return nil, err
		}
		if len(aliases) > 0 {
			cfg.Dispatcher.Aliases = aliases
		}
	}

	cfg.Database.Path = xdg.ExpandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readAliases(path string) (map[string]string, error) {
	//nolint:gosec // config file path from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw struct {
		Dispatcher struct {
			Aliases map[string]string `yaml:"aliases"`
		} `yaml:"dispatcher"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return raw.Dispatcher.Aliases, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d (must be 1-65535)", c.Server.HTTPPort)
	}
	for key, p := range map[string]string{
		"server.http_path":      c.Server.HTTPPath,
		"server.websocket_path": c.Server.WebSocketPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("invalid %s: %q (must start with '/')", key, p)
		}
	}
	if c.Server.HTTPPath == c.Server.WebSocketPath {
		return fmt.Errorf("server.http_path and server.websocket_path must differ (both %q)", c.Server.HTTPPath)
	}
	if c.Pipeline.IdleTimeoutMS <= 0 {
		return fmt.Errorf("invalid pipeline.idle_timeout_ms: %d (must be positive)", c.Pipeline.IdleTimeoutMS)
	}
	for alias, target := range c.Dispatcher.Aliases {
		if alias == "" || target == "" {
			return fmt.Errorf("invalid dispatcher alias %q -> %q", alias, target)
		}
	}
	return nil
}
