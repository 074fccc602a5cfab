package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := Path(), "/custom/config/pybib/config.yml"; got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := Path(), filepath.Join(home, ".config", "pybib", "config.yml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestDefaultCachePath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	if got, want := DefaultCachePath(), "/custom/cache/pybib/ads.db"; got != want {
		t.Errorf("DefaultCachePath() = %q, want %q", got, want)
	}
}

func TestLoad_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg == nil || cfg.ADSToken != "" {
		t.Errorf("Load() = %+v, want empty config", cfg)
	}
}

func TestLoad_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "pybib")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := yaml.Marshal(Config{
		ADSToken:   "tok",
		Extractor:  "pdfgrep",
		KeyField:   "identifier",
		SearchMode: "first_line",
		CachePath:  "~/cache/ads.db",
		LogLevel:   "debug",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yml"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ADSToken != "tok" || cfg.Extractor != "pdfgrep" || cfg.KeyField != "identifier" {
		t.Errorf("Load() = %+v", cfg)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "cache", "ads.db"); cfg.CachePath != want {
		t.Errorf("CachePath = %q, want %q (tilde expanded)", cfg.CachePath, want)
	}
	if cfg.CacheFilePath() != cfg.CachePath {
		t.Errorf("CacheFilePath() = %q, want configured path", cfg.CacheFilePath())
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "ads_token: [unclosed"},
		{"bad key field", "key_field: bibcode\n"},
		{"bad search mode", "search_mode: sometimes\n"},
		{"bad extractor", "extractor: ocr\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("LoadFile() should fail")
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ADS_API_TOKEN=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(TokenEnv, "")
	os.Unsetenv(TokenEnv)
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv(TokenEnv); got != "from-dotenv" {
		t.Errorf("%s = %q, want from-dotenv", TokenEnv, got)
	}

	if err := LoadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("LoadEnv() with missing file error = %v, want nil", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~/refs", filepath.Join(home, "refs")},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
