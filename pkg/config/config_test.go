package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/tstromberg/tagsync/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Threshold != 0.35 {
		t.Errorf("threshold = %v, want 0.35", cfg.Threshold)
	}
	if cfg.Workers < 1 {
		t.Errorf("workers = %d", cfg.Workers)
	}
	if cfg.Tagger.Backend != config.BackendWD14 {
		t.Errorf("backend = %q", cfg.Tagger.Backend)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "root") {
		t.Errorf("Validate without root = %v, want root error", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "secret")
	custom := config.Default()
	custom.Root = "/photos"
	custom.Workers = 3
	custom.BackupDir = "/backup"
	custom.Tagger.Backend = config.BackendGemini

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tagsync.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/photos" || cfg.Workers != 3 || cfg.BackupDir != "/backup" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Tagger.GeminiAPIKey != "secret" {
		t.Errorf("api key not taken from env")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("api key serialized into config file")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.toml")
	if err := os.WriteFile(unknown, []byte("colour = \"blue\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(unknown); err == nil {
		t.Errorf("unknown key accepted")
	}
	if _, err := config.Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("missing file accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"workers", func(c *config.Config) { c.Workers = 0 }, "workers"},
		{"threshold", func(c *config.Config) { c.Threshold = 1.5 }, "threshold"},
		{"backend", func(c *config.Config) { c.Tagger.Backend = "clip" }, "unknown tagger backend"},
		{"gemini key", func(c *config.Config) { c.Tagger.Backend = config.BackendGemini }, config.APIKeyEnv},
		{"wd14 paths", func(c *config.Config) { c.Tagger.ModelPath = "" }, "model_path"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := config.Default()
			c.Root = "/photos"
			tc.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate = %v, want error containing %q", err, tc.want)
			}
		})
	}
}
