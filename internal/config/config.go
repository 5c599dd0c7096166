// Package config provides configuration management for blockedit using
// Viper for loading from files, environment variables and command-line
// flags.
//
// The configuration is read from .blockedit.yml, overridden by BLOCKEDIT_
// environment variables (optionally seeded from a .env file) and by flags
// bound in the cmd package. It covers the editing root, schema files,
// plugins and Lua scripts, asset bundles, the editing server, the file
// watcher and logging.
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/conneroisu/blockedit/internal/assets"
	"github.com/conneroisu/blockedit/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. BLOCKEDIT_SERVER_PORT.
const EnvPrefix = "BLOCKEDIT"

// ConfigName is the default config file name, without extension.
const ConfigName = ".blockedit"

type Config struct {
	Editor  EditorConfig  `yaml:"editor" mapstructure:"editor"`
	Schema  SchemaConfig  `yaml:"schema" mapstructure:"schema"`
	Plugins PluginsConfig `yaml:"plugins" mapstructure:"plugins"`
	Assets  AssetsConfig  `yaml:"assets" mapstructure:"assets"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type EditorConfig struct {
	RootTag     string `yaml:"root_tag" mapstructure:"root_tag"`
	Placeholder string `yaml:"placeholder" mapstructure:"placeholder"`
}

type SchemaConfig struct {
	// Files are YAML or TOML rule files loaded after the default blocks.
	Files         []string `yaml:"files" mapstructure:"files"`
	DefaultBlocks bool     `yaml:"default_blocks" mapstructure:"default_blocks"`
}

type PluginsConfig struct {
	Disabled   []string      `yaml:"disabled" mapstructure:"disabled"`
	Scripts    []string      `yaml:"scripts" mapstructure:"scripts"`
	LuaTimeout time.Duration `yaml:"lua_timeout" mapstructure:"lua_timeout"`
}

type AssetsConfig struct {
	Core      bool            `yaml:"core" mapstructure:"core"`
	IdleDelay time.Duration   `yaml:"idle_delay" mapstructure:"idle_delay"`
	Bundles   []assets.Bundle `yaml:"bundles" mapstructure:"bundles"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Suffix   string        `yaml:"suffix" mapstructure:"suffix"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads the configuration from the global viper instance, fills in
// defaults and validates the result.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Flags bound to these keys are registered as slices; viper returns
	// them through GetStringSlice, not Unmarshal.
	if v.IsSet("plugins.disabled") && len(config.Plugins.Disabled) == 0 {
		config.Plugins.Disabled = v.GetStringSlice("plugins.disabled")
	}
	if v.IsSet("schema.files") && len(config.Schema.Files) == 0 {
		config.Schema.Files = v.GetStringSlice("schema.files")
	}

	if !v.IsSet("schema.default_blocks") {
		config.Schema.DefaultBlocks = true
	}
	if !v.IsSet("assets.core") {
		config.Assets.Core = true
	}
	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	config := &Config{
		Schema: SchemaConfig{DefaultBlocks: true},
		Assets: AssetsConfig{Core: true},
	}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Editor.RootTag == "" {
		config.Editor.RootTag = "div"
	}
	if config.Editor.Placeholder == "" {
		config.Editor.Placeholder = "Type '/' for commands"
	}
	if config.Plugins.LuaTimeout == 0 {
		config.Plugins.LuaTimeout = time.Second
	}
	if config.Assets.IdleDelay == 0 {
		config.Assets.IdleDelay = assets.DefaultIdleDelay
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 7331
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}
	if config.Watch.Suffix == "" {
		config.Watch.Suffix = ".normalized.html"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// LoadDotEnv loads environment files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return err
		}
	}
	return nil
}

// LoggerConfig builds the logger configuration for out.
func (c LogConfig) LoggerConfig(out io.Writer) (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return &logging.LoggerConfig{Level: level, Format: c.Format, Output: out}, nil
}
