package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Patrick2402/image-version-analyzer/pkg/ignore"
	"github.com/Patrick2402/image-version-analyzer/pkg/registry"
	"github.com/Patrick2402/image-version-analyzer/pkg/rules"
	"github.com/Patrick2402/image-version-analyzer/pkg/version"
)

// FileName is the configuration file looked up by FindAndLoadConfig.
const FileName = ".imgcheck.yaml"

// Config represents the configuration for the image analyzer
type Config struct {
	// Maximum gap before an image is reported as OUTDATED
	Threshold int `yaml:"threshold"`

	// Forced comparison level (major, minor or patch); detected when empty
	Level string `yaml:"level"`

	// Path to the JSON rules file
	Rules string `yaml:"rules"`

	// Ignore patterns (wildcards or "regex:" prefixed)
	Ignore []string `yaml:"ignore"`

	// File with one ignore pattern per line
	IgnoreFile string `yaml:"ignoreFile"`

	// Registry prefixes stripped before lookup, e.g. "registry.example.com/"
	PrivateRegistries []string `yaml:"privateRegistries"`

	// File with one private registry prefix per line
	PrivateRegistriesFile string `yaml:"privateRegistriesFile"`

	// Parallel tag fetches
	Concurrency int `yaml:"concurrency"`

	// Output configuration
	Output struct {
		Format      string `yaml:"format"` // text, json, yaml, csv, markdown, html, sarif
		File        string `yaml:"file"`   // Output file path (stdout if empty)
		NoTimestamp bool   `yaml:"noTimestamp"`
	} `yaml:"output"`

	// Slack notification settings
	Slack struct {
		Webhook   string `yaml:"webhook"`
		ReportURL string `yaml:"reportURL"`
	} `yaml:"slack"`

	// Docker Hub client settings
	Hub struct {
		URL      string  `yaml:"url"`
		MaxPages int     `yaml:"maxPages"`
		RPS      float64 `yaml:"rps"`
	} `yaml:"hub"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	config := &Config{
		Threshold:   3,
		Concurrency: 4,
	}

	// Set default output format
	config.Output.Format = "text"

	// Docker Hub defaults
	config.Hub.URL = "https://hub.docker.com"
	config.Hub.MaxPages = 10
	config.Hub.RPS = 5

	return config
}

// LoadConfig loads the configuration from the specified file path
// If no path is provided, it looks for .imgcheck.yaml in the current directory
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// If no config path provided, look in current directory
	if configPath == "" {
		configPath = FileName
	}

	// Check if the file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, return default config
		return config, nil
	}

	if err := config.readFile(configPath); err != nil {
		return nil, err
	}
	return config, nil
}

// FindAndLoadConfig searches for a config file in the given directory and its parents
func FindAndLoadConfig(dir string) (*Config, error) {
	config := DefaultConfig()

	// Start from the directory and work up to the root
	currentDir := dir
	for {
		configPath := filepath.Join(currentDir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			if err := config.readFile(configPath); err != nil {
				return nil, err
			}
			return config, nil
		}

		// Move up to the parent directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached the root directory, no config file found
			break
		}
		currentDir = parentDir
	}

	// No config file found, return default config
	return config, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	// Relative file references resolve against the config file's directory.
	base := filepath.Dir(path)
	c.Rules = resolve(base, c.Rules)
	c.IgnoreFile = resolve(base, c.IgnoreFile)
	c.PrivateRegistriesFile = resolve(base, c.PrivateRegistriesFile)

	return c.Validate()
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks value ranges and the level name.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %d", c.Threshold)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := c.ComparisonLevel(); err != nil {
		return err
	}
	return nil
}

// ComparisonLevel returns the configured level, or the zero Level when
// detection should decide.
func (c *Config) ComparisonLevel() (version.Level, error) {
	if c.Level == "" {
		return 0, nil
	}
	return version.ParseLevel(c.Level)
}

// IgnoreMatcher compiles the inline patterns and the ignore file, if any.
func (c *Config) IgnoreMatcher() (*ignore.Matcher, error) {
	m, err := ignore.New(c.Ignore...)
	if err != nil {
		return nil, err
	}
	if c.IgnoreFile != "" {
		if err := m.LoadFile(c.IgnoreFile); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registries returns the inline private registries followed by those of
// the private registries file, if any.
func (c *Config) Registries() ([]string, error) {
	regs := append([]string(nil), c.PrivateRegistries...)
	if c.PrivateRegistriesFile == "" {
		return regs, nil
	}
	fromFile, err := registry.LoadRegistries(c.PrivateRegistriesFile)
	if err != nil {
		return nil, err
	}
	return append(regs, fromFile...), nil
}

// RuleSet loads the rules file, or returns an empty set when none is
// configured.
func (c *Config) RuleSet() (rules.Set, error) {
	if c.Rules == "" {
		return rules.Set{}, nil
	}
	return rules.Load(c.Rules)
}
