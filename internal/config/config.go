// Package config handles the global configuration file, the .env file, and
// the ADS token file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dwillcox/pybib/internal/bibtex"
	"github.com/dwillcox/pybib/internal/pdf"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents configuration stored in ~/.config/pybib/config.yml.
type Config struct {
	ADSToken   string `yaml:"ads_token,omitempty"`
	ADSURL     string `yaml:"ads_url,omitempty"`
	Extractor  string `yaml:"extractor,omitempty"`   // native or pdfgrep
	KeyField   string `yaml:"key_field,omitempty"`   // citation_code or identifier
	SearchMode string `yaml:"search_mode,omitempty"` // full or first_line
	CachePath  string `yaml:"cache_path,omitempty"`
	LogLevel   string `yaml:"log_level,omitempty"`
}

const (
	// AppDir is the directory name under XDG_CONFIG_HOME and XDG_CACHE_HOME.
	AppDir = "pybib"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// CacheFile is the lookup cache database name.
	CacheFile = "ads.db"
	// EnvFile is loaded from the working directory if present.
	EnvFile = ".env"
)

// Dir returns the configuration directory.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/pybib.
func Dir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppDir)
}

// Path returns the path to the config file.
func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ConfigFile)
}

// DefaultCachePath returns the default lookup cache location.
// Respects XDG_CACHE_HOME, defaults to ~/.cache/pybib/ads.db.
func DefaultCachePath() string {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, AppDir, CacheFile)
}

// Load reads the config file at Path().
// Returns an empty config (not an error) if the file doesn't exist.
func Load() (*Config, error) {
	path := Path()
	if path == "" {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CachePath != "" {
		cfg.CachePath = ExpandPath(cfg.CachePath)
	}

	return &cfg, cfg.Validate()
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := bibtex.ParseKeyField(c.KeyField); err != nil {
		return fmt.Errorf("key_field: %w", err)
	}
	if _, err := bibtex.ParseSearchMode(c.SearchMode); err != nil {
		return fmt.Errorf("search_mode: %w", err)
	}
	if _, err := pdf.New(c.Extractor); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	return nil
}

// CacheFilePath returns the configured cache path or the default.
func (c *Config) CacheFilePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return DefaultCachePath()
}

// LoadEnv loads variables from a .env file without overriding ones already
// set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = EnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
