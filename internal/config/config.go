// Package config loads the lingolens YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/lingolens/internal/geometry"
)

// APIKeyEnv overrides gemini.api_key when set.
const APIKeyEnv = "GEMINI_API_KEY"

// Config represents the complete lingolens configuration
type Config struct {
	DataDir        string          `yaml:"data_dir"`
	Mode           string          `yaml:"mode"` // object, text
	TargetLanguage string          `yaml:"target_language"`
	SourceLanguage string          `yaml:"source_language"` // fallback when identification fails
	Camera         CameraConfig    `yaml:"camera"`
	Pipeline       PipelineConfig  `yaml:"pipeline"`
	Screen         ScreenConfig    `yaml:"screen"`
	Detection      DetectionConfig `yaml:"detection"`
	Gemini         GeminiConfig    `yaml:"gemini"`
	Server         ServerConfig    `yaml:"server"`
	Tray           bool            `yaml:"tray"`
}

// CameraConfig contains camera settings
type CameraConfig struct {
	Device   int `yaml:"device"`
	FPS      int `yaml:"fps"`
	Rotation int `yaml:"rotation"` // clockwise degrees to upright: 0, 90, 180, 270
}

// PipelineConfig contains frame pipeline settings
type PipelineConfig struct {
	MinInterval    time.Duration `yaml:"min_interval"`    // minimum time between admitted frames
	ShakeThreshold float64       `yaml:"shake_threshold"` // percent of changed pixels; 0 disables
	CycleTimeout   time.Duration `yaml:"cycle_timeout"`   // upper bound for one detection+translation cycle
}

// ScreenConfig describes the preview surface in screen coordinates
type ScreenConfig struct {
	View  geometry.View `yaml:"view"`
	Guide geometry.Rect `yaml:"guide"`
}

// DetectionConfig contains detector settings
type DetectionConfig struct {
	MinConfidence float64       `yaml:"min_confidence"`
	MaxResults    int           `yaml:"max_results"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	UseMock       bool          `yaml:"use_mock"`
}

// GeminiConfig contains translation backend settings
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultDataDir returns ~/.lingolens.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lingolens"
	}
	return filepath.Join(home, ".lingolens")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:        DefaultDataDir(),
		Mode:           "object",
		TargetLanguage: "es",
		SourceLanguage: "en",
		Camera: CameraConfig{
			Device: 0,
			FPS:    10,
		},
		Pipeline: PipelineConfig{
			MinInterval:    1500 * time.Millisecond,
			ShakeThreshold: 0,
			CycleTimeout:   10 * time.Second,
		},
		Screen: ScreenConfig{
			View:  geometry.View{Width: 640, Height: 480},
			Guide: geometry.NewRect(160, 120, 320, 240),
		},
		Detection: DetectionConfig{
			MinConfidence: 0.6,
			MaxResults:    10,
			IdleTimeout:   30 * time.Second,
		},
		Gemini: GeminiConfig{
			Model: "gemini-1.5-flash",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Tray: true,
	}
}

// Load reads and parses a YAML configuration file over the defaults. A
// missing file yields the defaults. The API key environment variable
// always wins over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Gemini.APIKey = key
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// DatabasePath returns the SQLite database path inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "lingolens.db")
}
