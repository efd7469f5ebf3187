// Package config loads tagsync settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Backends supported by the tagger.
const (
	BackendWD14   = "wd14"
	BackendGemini = "gemini"
)

// APIKeyEnv holds the Gemini API key.
const APIKeyEnv = "GOOGLE_AI_API_KEY"

// Tagger selects and locates the inference backend.
type Tagger struct {
	Backend         string `toml:"backend"`
	ModelPath       string `toml:"model_path"`
	LabelsPath      string `toml:"labels_path"`
	ONNXRuntimePath string `toml:"onnxruntime_path"`
	GeminiModel     string `toml:"gemini_model"`
	GeminiAPIKey    string `toml:"-"`
}

// Config holds configuration for tagsync.
type Config struct {
	Root                  string  `toml:"root"`
	Workers               int     `toml:"workers"`
	Threshold             float64 `toml:"threshold"`
	DryRun                bool    `toml:"dry_run"`
	BackupDir             string  `toml:"backup_dir"`
	Watch                 bool    `toml:"watch"`
	ReportIntervalSeconds int     `toml:"report_interval_seconds"`
	ExiftoolPath          string  `toml:"exiftool_path"`
	Tagger                Tagger  `toml:"tagger"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workers:               runtime.NumCPU(),
		Threshold:             0.35,
		ReportIntervalSeconds: 10,
		Tagger: Tagger{
			Backend:     BackendWD14,
			ModelPath:   "model.onnx",
			LabelsPath:  "selected_tags.csv",
			GeminiModel: "gemini-2.5-flash",
		},
	}
}

// ReportInterval is the progress logging interval.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalSeconds) * time.Second
}

// Load reads path over the defaults. An empty path returns the defaults.
// The Gemini API key is always taken from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := toml.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Tagger.GeminiAPIKey = os.Getenv(APIKeyEnv)
	return &cfg, nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Root == "" {
		errs = append(errs, errors.New("root directory is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold must be in (0, 1], got %v", c.Threshold))
	}
	if c.ReportIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("report_interval_seconds must not be negative"))
	}
	switch c.Tagger.Backend {
	case BackendWD14:
		if c.Tagger.ModelPath == "" || c.Tagger.LabelsPath == "" {
			errs = append(errs, errors.New("wd14 backend needs model_path and labels_path"))
		}
	case BackendGemini:
		if c.Tagger.GeminiAPIKey == "" {
			errs = append(errs, fmt.Errorf("gemini backend needs %s", APIKeyEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown tagger backend %q", c.Tagger.Backend))
	}
	return errors.Join(errs...)
}
