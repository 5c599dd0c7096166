package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}

// Validate checks the configuration for correctness. The returned error is
// an EditorError of type config naming the offending section.
func (c *Config) Validate() error {
	sections := []struct {
		name  string
		check func() error
	}{
		{"editor", c.Editor.validate},
		{"schema", c.Schema.validate},
		{"plugins", c.Plugins.validate},
		{"assets", c.Assets.validate},
		{"server", c.Server.validate},
		{"watch", c.Watch.validate},
		{"log", c.Log.validate},
	}
	for _, s := range sections {
		if err := s.check(); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid configuration: %s: %v", s.name, err)).
				WithContext("section", s.name)
		}
	}
	return nil
}

func (c *EditorConfig) validate() error {
	if c.RootTag == "" {
		return fmt.Errorf("root_tag is empty")
	}
	for _, r := range c.RootTag {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return fmt.Errorf("root_tag %q is not a lowercase tag name", c.RootTag)
		}
	}
	return nil
}

func (c *SchemaConfig) validate() error {
	for _, path := range c.Files {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid schema file '%s': %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml", ".toml":
		default:
			return fmt.Errorf("schema file %s must be .yaml, .yml or .toml", path)
		}
	}
	return nil
}

func (c *PluginsConfig) validate() error {
	for _, name := range c.Disabled {
		if name == "" {
			return fmt.Errorf("plugin name cannot be empty")
		}
		for _, char := range name {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9') ||
				char == '-' || char == '_') {
				return fmt.Errorf("plugin name contains invalid character: %s", name)
			}
		}
	}
	for _, path := range c.Scripts {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid script path '%s': %w", path, err)
		}
	}
	if c.LuaTimeout < 0 {
		return fmt.Errorf("lua_timeout must not be negative")
	}
	return nil
}

func (c *AssetsConfig) validate() error {
	if c.IdleDelay < 0 {
		return fmt.Errorf("idle_delay must not be negative")
	}
	seen := make(map[string]bool, len(c.Bundles))
	for i, b := range c.Bundles {
		if b.Feature == "" {
			return fmt.Errorf("bundle #%d has no feature name", i)
		}
		if seen[b.Feature] {
			return fmt.Errorf("bundle %s defined twice", b.Feature)
		}
		seen[b.Feature] = true
		switch b.Schedule {
		case "", "startup", "idle":
		default:
			return fmt.Errorf("bundle %s has unknown schedule %q", b.Feature, b.Schedule)
		}
	}
	return nil
}

func (c *ServerConfig) validate() error {
	// 0 lets the system pick a port, which tests rely on.
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", c.Port)
	}
	for _, char := range append(dangerousChars, "\\") {
		if strings.Contains(c.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}
	return nil
}

func (c *WatchConfig) validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if !strings.HasSuffix(c.Suffix, ".html") || strings.ContainsRune(c.Suffix, filepath.Separator) {
		return fmt.Errorf("suffix %q must end in .html and contain no path separator", c.Suffix)
	}
	return nil
}

func (c *LogConfig) validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("format %q must be text or json", c.Format)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
