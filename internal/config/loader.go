package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment overrides, e.g.
// ZSNAPPER_SUDO_PASSWORD or ZSNAPPER_COMMAND_TIMEOUT.
const DefaultEnvPrefix = "ZSNAPPER_"

// Loader loads configuration with priority: env > file > defaults.
type Loader struct {
	envPrefix string
	filePath  string
	// required is set when the file was named explicitly; a missing
	// default file is not an error.
	required bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path. An empty path keeps
// the default file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		if path != "" {
			l.filePath = path
			l.required = true
		}
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envPrefix: DefaultEnvPrefix,
		filePath:  DefaultFile(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the configuration file the loader reads.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads all sources, unmarshals them and verifies the result.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadFile(k); err != nil {
		return nil, err
	}

	if err := l.loadEnv(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", l.filePath, err)
	}

	return cfg, nil
}

func (l *Loader) loadFile(k *koanf.Koanf) error {
	if _, err := os.Stat(l.filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !l.required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(file.Provider(l.filePath), parserFor(l.filePath)); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", l.filePath, err)
	}
	return nil
}

// loadEnv maps PREFIX_SECTION_KEY onto section.key. Keys that themselves
// contain underscores (command_timeout) are matched against the known keys
// first.
func (l *Loader) loadEnv(k *koanf.Koanf) error {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, "_", ".")] = key
	}

	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		dotted := strings.ReplaceAll(s, "_", ".")
		if key, ok := known[dotted]; ok {
			return key
		}
		return dotted
	}

	if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	return nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser()
	default:
		return yaml.Parser()
	}
}

// Load reads the configuration from path (or the default file when empty).
func Load(path string) (*Config, error) {
	return NewLoader(WithConfigFile(path)).Load()
}
