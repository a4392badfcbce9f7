package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ayusman/lingolens/internal/mode"
)

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// Validate checks if the configuration is valid and fills derived defaults.
func Validate(cfg *Config) error {
	if _, err := mode.Parse(cfg.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}

	cfg.TargetLanguage = strings.TrimSpace(cfg.TargetLanguage)
	if !ValidLanguage(cfg.TargetLanguage) {
		return fmt.Errorf("target_language %q is not a language code", cfg.TargetLanguage)
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = "en"
	}
	if !ValidLanguage(cfg.SourceLanguage) {
		return fmt.Errorf("source_language %q is not a language code", cfg.SourceLanguage)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	// Validate camera config
	if cfg.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0")
	}
	switch cfg.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera.rotation must be 0, 90, 180 or 270")
	}

	// Validate pipeline config
	if cfg.Pipeline.MinInterval < 0 {
		return fmt.Errorf("pipeline.min_interval must be >= 0")
	}
	if cfg.Pipeline.ShakeThreshold < 0 || cfg.Pipeline.ShakeThreshold > 100 {
		return fmt.Errorf("pipeline.shake_threshold must be within [0, 100]")
	}
	if cfg.Pipeline.CycleTimeout <= 0 {
		return fmt.Errorf("pipeline.cycle_timeout must be > 0")
	}

	// Validate screen config
	if cfg.Screen.View.Width <= 0 || cfg.Screen.View.Height <= 0 {
		return fmt.Errorf("screen.view must have a positive size")
	}
	if cfg.Screen.Guide.Empty() {
		return fmt.Errorf("screen.guide must not be empty")
	}
	if !cfg.Screen.Guide.Intersects(cfg.Screen.View.Rect()) {
		return fmt.Errorf("screen.guide must overlap screen.view")
	}

	// Validate detection config
	if cfg.Detection.MinConfidence < 0 || cfg.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be within [0, 1]")
	}
	if cfg.Detection.MaxResults < 0 {
		return fmt.Errorf("detection.max_results must be >= 0")
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	return nil
}

// ValidLanguage reports whether code looks like a BCP-47 language code.
func ValidLanguage(code string) bool {
	return languagePattern.MatchString(code)
}
