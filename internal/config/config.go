package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/menta2k/image-assistant/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Session    SessionConfig    `yaml:"session"`
	Vision     VisionConfig     `yaml:"vision"`
	Completion CompletionConfig `yaml:"completion"`
	Upload     UploadConfig     `yaml:"upload"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects the user store
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// SessionConfig holds cookie and per-session settings
type SessionConfig struct {
	Secret          string        `yaml:"secret"`
	HistoryCapacity int           `yaml:"history_capacity"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	CookieMaxAge    int           `yaml:"cookie_max_age"`
	Secure          bool          `yaml:"secure"`
}

// VisionConfig holds Google Cloud Vision settings
type VisionConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	APIKey          string        `yaml:"api_key"`
	MaxDimension    int           `yaml:"max_dimension"`
	JPEGQuality     int           `yaml:"jpeg_quality"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CompletionConfig selects the description backend and models
type CompletionConfig struct {
	Backend      string        `yaml:"backend"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	PremiumModel string        `yaml:"premium_model"`
	FreeModel    string        `yaml:"free_model"`
	PremiumName  string        `yaml:"premium_name"`
	FreeName     string        `yaml:"free_name"`
	Timeout      time.Duration `yaml:"timeout"`
}

// UploadConfig limits accepted uploads
type UploadConfig struct {
	MaxBytes         int64    `yaml:"max_bytes"`
	SupportedFormats []string `yaml:"supported_formats"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8501",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 150 * time.Second,
		},
		Store: StoreConfig{
			Driver: "json",
			DSN:    "users.json",
		},
		Session: SessionConfig{
			HistoryCapacity: 50,
			IdleTimeout:     12 * time.Hour,
		},
		Vision: VisionConfig{
			MaxDimension: 2048,
			JPEGQuality:  90,
			Timeout:      60 * time.Second,
		},
		Completion: CompletionConfig{
			Backend:      "openai",
			PremiumModel: "gpt-4o",
			FreeModel:    "gpt-3.5-turbo",
			PremiumName:  "GPT-4o",
			FreeName:     "GPT-3.5",
			Timeout:      60 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes:         10 << 20,
			SupportedFormats: []string{"jpg", "jpeg", "png", "webp", "bmp"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads an optional .env file, the YAML file at path (defaults when
// path is empty), then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	if utils.FileExists(".env") {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	config := Default()
	if path != "" {
		var err error
		config, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides secrets and the listen port from the environment
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Completion.BaseURL = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.Vision.CredentialsFile = v
	}
	if v := os.Getenv("GOOGLE_CLOUD_VISION_API_KEY"); v != "" {
		c.Vision.APIKey = v
	}
	if v := os.Getenv("IMAGE_ASSISTANT_SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Addr = ":" + v
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	switch c.Store.Driver {
	case "json", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("store.driver must be json or sqlite3, got %q", c.Store.Driver)
	}

	if c.Store.BcryptCost != 0 && (c.Store.BcryptCost < 4 || c.Store.BcryptCost > 31) {
		return fmt.Errorf("store.bcrypt_cost must be between 4 and 31")
	}

	if c.Session.HistoryCapacity < 1 {
		return fmt.Errorf("session.history_capacity must be positive")
	}

	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		return fmt.Errorf("vision.jpeg_quality must be between 1 and 100")
	}

	if c.Vision.MaxDimension < 0 {
		return fmt.Errorf("vision.max_dimension cannot be negative")
	}

	switch c.Completion.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("completion.backend must be openai or ollama, got %q", c.Completion.Backend)
	}

	if c.Completion.PremiumModel == "" || c.Completion.FreeModel == "" {
		return fmt.Errorf("completion models cannot be empty")
	}

	if c.Upload.MaxBytes < 1 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}

	if len(c.Upload.SupportedFormats) == 0 {
		return fmt.Errorf("upload.supported_formats cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "image-assistant", "config.yaml")
}
