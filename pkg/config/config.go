package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by every environment variable the tool reads
const EnvPrefix = "GEMIMG_"

// Config holds all configuration options for gemimg
type Config struct {
	// Browser profile and launch settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Target application and interaction timings
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// External watermark removal tool
	Watermark WatermarkConfig `yaml:"watermark" json:"watermark"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Batch generation pacing
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig describes the persistent browser session
type BrowserConfig struct {
	ProfileDir     string   `yaml:"profile_dir" json:"profile_dir"`
	Headless       bool     `yaml:"headless" json:"headless"`
	ViewportWidth  int      `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height" json:"viewport_height"`
	Args           []string `yaml:"args" json:"args"`
	// Install downloads the playwright driver and Chromium before launching
	Install bool `yaml:"install" json:"install"`
}

// GeminiConfig holds the target page locations and the timings used while driving it
type GeminiConfig struct {
	AppURL                 string        `yaml:"app_url" json:"app_url"`
	ConsentHost            string        `yaml:"consent_host" json:"consent_host"`
	AuthHost               string        `yaml:"auth_host" json:"auth_host"`
	InstructionPrefix      string        `yaml:"instruction_prefix" json:"instruction_prefix"`
	SettleDelay            time.Duration `yaml:"settle_delay" json:"settle_delay"`
	LoginPollInterval      time.Duration `yaml:"login_poll_interval" json:"login_poll_interval"`
	LoginMaxAttempts       int           `yaml:"login_max_attempts" json:"login_max_attempts"`
	GenerationPollInterval time.Duration `yaml:"generation_poll_interval" json:"generation_poll_interval"`
	GenerationTimeout      time.Duration `yaml:"generation_timeout" json:"generation_timeout"`
	DownloadTimeout        time.Duration `yaml:"download_timeout" json:"download_timeout"`
	DownloadAttempts       int           `yaml:"download_attempts" json:"download_attempts"`
	DownloadRetryDelay     time.Duration `yaml:"download_retry_delay" json:"download_retry_delay"`
}

// WatermarkConfig locates the external removal tool.
// Interpreter and EntryScript are resolved against ToolDir when relative.
type WatermarkConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	ToolDir     string        `yaml:"tool_dir" json:"tool_dir"`
	Interpreter string        `yaml:"interpreter" json:"interpreter"`
	EntryScript string        `yaml:"entry_script" json:"entry_script"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds output settings
type OutputConfig struct {
	Directory     string `yaml:"directory" json:"directory"`
	WriteMetadata bool   `yaml:"write_metadata" json:"write_metadata"`
}

// BatchConfig paces consecutive generations that share one session
type BatchConfig struct {
	GenerationsPerMinute int `yaml:"generations_per_minute" json:"generations_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultArgs are the Chromium flags used to launch the persistent context
var DefaultArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--no-first-run",
	"--no-default-browser-check",
}

// DefaultConfig returns a Config with defaults rooted at the current user's home directory
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return DefaultConfigFor(home)
}

// DefaultConfigFor returns a Config whose home-relative paths are rooted at home
func DefaultConfigFor(home string) *Config {
	base := filepath.Join(home, ".gemimg")

	return &Config{
		Browser: BrowserConfig{
			ProfileDir:     filepath.Join(base, "profile"),
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 900,
			Args:           append([]string(nil), DefaultArgs...),
			Install:        false,
		},
		Gemini: GeminiConfig{
			AppURL:                 "https://gemini.google.com/app",
			ConsentHost:            "consent.google.com",
			AuthHost:               "accounts.google.com",
			InstructionPrefix:      "Generate an image based on the following description. Respond with the image only: ",
			SettleDelay:            3 * time.Second,
			LoginPollInterval:      5 * time.Second,
			LoginMaxAttempts:       60,
			GenerationPollInterval: 3 * time.Second,
			GenerationTimeout:      120 * time.Second,
			DownloadTimeout:        30 * time.Second,
			DownloadAttempts:       2,
			DownloadRetryDelay:     2 * time.Second,
		},
		Watermark: WatermarkConfig{
			Enabled:     true,
			ToolDir:     filepath.Join(base, "tools", "synthid-remover"),
			Interpreter: filepath.Join(".venv", "bin", "python"),
			EntryScript: "remove_watermark.py",
			Timeout:     120 * time.Second,
		},
		Output: OutputConfig{
			Directory:     ".",
			WriteMetadata: false,
		},
		Batch: BatchConfig{
			GenerationsPerMinute: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "PROFILE_DIR"); v != "" {
		c.Browser.ProfileDir = v
	}
	if v := os.Getenv(EnvPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv(EnvPrefix + "APP_URL"); v != "" {
		c.Gemini.AppURL = v
	}
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Gemini.GenerationTimeout = d
		}
	}
	if v := os.Getenv(EnvPrefix + "WATERMARK_ENABLED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWATERMARK_ENABLED: %w", EnvPrefix, err))
		} else {
			c.Watermark.Enabled = b
		}
	}
	if v := os.Getenv(EnvPrefix + "WATERMARK_TOOL_DIR"); v != "" {
		c.Watermark.ToolDir = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("90s") and bare milliseconds ("90000")
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".gemimg.yaml",
		".gemimg.yml",
		filepath.Join(home, ".config", "gemimg", "config.yaml"),
		filepath.Join(home, ".gemimg", "config.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.ProfileDir == "" {
		errs = append(errs, errors.New("browser profile directory is required"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("viewport dimensions must be positive"))
	}

	if u, err := url.Parse(c.Gemini.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid app URL %q", c.Gemini.AppURL))
	}
	if c.Gemini.LoginPollInterval <= 0 {
		errs = append(errs, errors.New("login poll interval must be positive"))
	}
	if c.Gemini.LoginMaxAttempts <= 0 {
		errs = append(errs, errors.New("login max attempts must be positive"))
	}
	if c.Gemini.GenerationPollInterval <= 0 {
		errs = append(errs, errors.New("generation poll interval must be positive"))
	}
	if c.Gemini.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("generation timeout must be positive"))
	}
	if c.Gemini.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Gemini.DownloadAttempts <= 0 {
		errs = append(errs, errors.New("download attempts must be positive"))
	}
	if c.Gemini.SettleDelay < 0 || c.Gemini.DownloadRetryDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}

	if c.Watermark.Enabled {
		if c.Watermark.ToolDir == "" || c.Watermark.EntryScript == "" || c.Watermark.Interpreter == "" {
			errs = append(errs, errors.New("watermark tool dir, interpreter and entry script are required when removal is enabled"))
		}
		if c.Watermark.Timeout <= 0 {
			errs = append(errs, errors.New("watermark timeout must be positive"))
		}
	}

	if c.Batch.GenerationsPerMinute <= 0 {
		errs = append(errs, errors.New("generations per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["profile-dir"].(string); ok && v != "" {
		c.Browser.ProfileDir = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["install"].(bool); ok {
		c.Browser.Install = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Gemini.GenerationTimeout = v
	}
	if v, ok := flags["watermark"].(bool); ok {
		c.Watermark.Enabled = v
	}
	if v, ok := flags["output-dir"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["metadata"].(bool); ok {
		c.Output.WriteMetadata = v
	}
	if v, ok := flags["per-minute"].(int); ok && v > 0 {
		c.Batch.GenerationsPerMinute = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// InterpreterPath returns the interpreter resolved against the tool directory
func (w WatermarkConfig) InterpreterPath() string {
	return resolveIn(w.ToolDir, w.Interpreter)
}

// EntryScriptPath returns the entry script resolved against the tool directory
func (w WatermarkConfig) EntryScriptPath() string {
	return resolveIn(w.ToolDir, w.EntryScript)
}

func resolveIn(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".gemimg.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
