// Package config loads patchkit settings from defaults, a YAML file, the
// environment, and finally command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is read when no --config flag is given and the file exists.
	DefaultFile = ".patchkit.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PATCHKIT_"
)

// Config holds the knobs shared by the parse and apply commands.
type Config struct {
	// Strip removes leading path components from header names, like patch -p.
	Strip int `yaml:"strip" validate:"gte=0"`
	// Strict verifies hunk context against the target before applying.
	Strict bool `yaml:"strict"`
	// Lenient tolerates disagreeing context lines in context-format hunks.
	Lenient    bool   `yaml:"lenient"`
	Workers    int    `yaml:"workers" validate:"gte=0,lte=256"`
	WorkingDir string `yaml:"workingDir,omitempty"`
	DryRun     bool   `yaml:"dryRun"`
	LogLevel   string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg := &Config{Strict: true}
	cfg.setDefaults()
	return cfg
}

// setDefaults fills in values left empty by the user.
func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate reports invalid settings.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Load builds the configuration. path names the YAML file; when required is
// false a missing file is skipped. Environment overrides are applied last.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path, required); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is fine, but other errors are surfaced.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{"STRIP": &c.Strip, "WORKERS": &c.Workers}
	for key, dst := range ints {
		if raw, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(raw) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{"STRICT": &c.Strict, "LENIENT": &c.Lenient, "DRY_RUN": &c.DryRun}
	for key, dst := range bools {
		if raw, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(raw) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	if raw, ok := lookup(EnvPrefix + "WORKDIR"); ok && strings.TrimSpace(raw) != "" {
		c.WorkingDir = strings.TrimSpace(raw)
	}
	if raw, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && strings.TrimSpace(raw) != "" {
		c.LogLevel = raw
	}
	return nil
}
