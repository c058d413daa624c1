package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Store contains configuration for the work item store.
// An empty Path keeps all state in an in-memory database.
type Store struct {
	Path string `toml:"path"`
}

// Gemini contains connection settings for the generative-AI capability.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains configuration for the batch pipeline.
type Workflow struct {
	FeedLines int `toml:"feed_lines"`
}

// Scout contains configuration for the acquisition workflow, including the
// simulated narration script used in fast mode.
type Scout struct {
	FeedLines      int      `toml:"feed_lines"`
	NarrationSteps []string `toml:"narration_steps"`
	StepDelayMS    int      `toml:"step_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Nexus Ops.
//
// Configuration sections by subsystem:
//   - Paths: log directory and API bind address
//   - Store: work item store backing database
//   - Gemini: generative-AI connection settings for prediction and discovery
//   - Workflow: batch pipeline feed retention
//   - Scout: acquisition workflow feed retention and fast-mode narration
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Store    Store    `toml:"store"`
	Gemini   Gemini   `toml:"gemini"`
	Workflow Workflow `toml:"workflow"`
	Scout    Scout    `toml:"scout"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  "~/.local/share/nexusops",
			APIBind: "127.0.0.1:7640",
		},
		Gemini: Gemini{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: 30,
		},
		Workflow: Workflow{FeedLines: 50},
		Scout: Scout{
			FeedLines: 20,
			NarrationSteps: []string{
				"Navigating to marketplace...",
				"Login successful",
				"Scanning open contracts...",
				"Found matching contract",
				"Auto-accepting terms...",
				"Downloading payload...",
			},
			StepDelayMS: 800,
		},
		Logging: Logging{Format: "console", Level: "info"},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nexusops/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration file.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("nexusops.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir

	if strings.TrimSpace(c.Store.Path) != "" {
		storePath, err := expandPath(c.Store.Path)
		if err != nil {
			return err
		}
		c.Store.Path = storePath
	}

	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate reports configuration values that would break daemon startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("config: paths.api_bind must not be empty")
	}
	if strings.TrimSpace(c.Gemini.BaseURL) == "" {
		return errors.New("config: gemini.base_url must not be empty")
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("config: gemini.model must not be empty")
	}
	if c.Gemini.TimeoutSeconds < 0 {
		return errors.New("config: gemini.timeout_seconds must not be negative")
	}
	if c.Workflow.FeedLines <= 0 {
		return errors.New("config: workflow.feed_lines must be positive")
	}
	if c.Scout.FeedLines <= 0 {
		return errors.New("config: scout.feed_lines must be positive")
	}
	if c.Scout.StepDelayMS < 0 {
		return errors.New("config: scout.step_delay_ms must not be negative")
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if c.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Store.Path), 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
