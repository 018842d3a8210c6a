package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/vmlog/internal/levels"
	"github.com/five82/vmlog/internal/pattern"
)

// Config holds the daemon and CLI settings.
type Config struct {
	Listen     string
	BufferSize int
	Pattern    string
	NoColor    bool
	LevelsPath string
	LevelsPID  string
	LogLevel   string
	LogFormat  string
	Theme      string
	Colors     map[string]string
}

const (
	defaultConfigPath = "~/.config/vmlog/config.toml"
	defaultLevelsPath = "~/.config/vmlog/levels.toml"
	defaultListen     = "127.0.0.1:8181"
	defaultBufferSize = 500
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	defaultTheme      = "Dracula"
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:     defaultListen,
		BufferSize: defaultBufferSize,
		Pattern:    pattern.DefaultPattern,
		LevelsPath: mustExpand(defaultLevelsPath),
		LevelsPID:  levels.DefaultPID,
		LogLevel:   defaultLogLevel,
		LogFormat:  defaultLogFormat,
		Theme:      defaultTheme,
		Colors:     map[string]string{},
	}
}

// Load locates and parses the vmlog config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Listen     string            `toml:"listen"`
		BufferSize *int              `toml:"buffer_size"`
		Pattern    string            `toml:"pattern"`
		NoColor    bool              `toml:"no_color"`
		LevelsPath string            `toml:"levels_path"`
		LevelsPID  string            `toml:"levels_pid"`
		LogLevel   string            `toml:"log_level"`
		LogFormat  string            `toml:"log_format"`
		Theme      string            `toml:"theme"`
		Colors     map[string]string `toml:"colors"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.Listen); v != "" {
		cfg.Listen = v
	}
	if raw.BufferSize != nil {
		cfg.BufferSize = *raw.BufferSize
	}
	// The pattern keeps its surrounding spaces; only an all-blank value is ignored.
	if strings.TrimSpace(raw.Pattern) != "" {
		cfg.Pattern = raw.Pattern
	}
	cfg.NoColor = raw.NoColor
	if v := strings.TrimSpace(raw.LevelsPath); v != "" {
		cfg.LevelsPath = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LevelsPID); v != "" {
		cfg.LevelsPID = v
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.Theme); v != "" {
		cfg.Theme = v
	}
	for name, value := range raw.Colors {
		cfg.Colors[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return cfg, nil
}

// Validate reports settings the daemon can not start with.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	if _, err := c.CompilePattern(""); err != nil {
		return err
	}
	return nil
}

// CompilePattern compiles override, or the configured pattern when override
// is empty, with the configured colors applied.
func (c Config) CompilePattern(override string) (*pattern.Pattern, error) {
	source := c.Pattern
	if strings.TrimSpace(override) != "" {
		source = override
	}
	p, err := pattern.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	colors, err := pattern.ParseColors(c.Colors)
	if err != nil {
		return nil, err
	}
	return p.WithColors(colors), nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
