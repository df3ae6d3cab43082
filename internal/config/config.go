package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Brownie44l1/dogbreed-api/internal/core"

	"github.com/joho/godotenv"
)

// Config server configuration
type Config struct {
	Port            string
	GinMode         string
	ModelsDir       string
	LabelsPath      string
	OnnxRuntimeLib  string
	InputLayout     string
	CORSAllowOrigin string
	FetchTimeout    time.Duration
	MaxUploadBytes  int64
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:            core.DefaultPort,
		GinMode:         core.DefaultGinMode,
		ModelsDir:       core.DefaultModelsDir,
		LabelsPath:      core.DefaultLabelsPath,
		InputLayout:     core.DefaultInputLayout,
		CORSAllowOrigin: "*",
		FetchTimeout:    core.DefaultFetchTimeout,
		MaxUploadBytes:  core.DefaultMaxUploadBytes,
	}
}

// LoadDotEnv loads a .env file from the working directory if present.
// It returns false when no file was loaded.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// LoadFromEnv builds the configuration from environment variables.
func LoadFromEnv(logger core.Logger) (Config, error) {
	cfg := Default()

	cfg.Port = getEnvWithDefault("PORT", cfg.Port)
	cfg.GinMode = getEnvWithDefault("GIN_MODE", cfg.GinMode)
	cfg.ModelsDir = getEnvWithDefault("MODELS_DIR", cfg.ModelsDir)
	cfg.LabelsPath = getEnvWithDefault("LABELS_PATH", cfg.LabelsPath)
	cfg.OnnxRuntimeLib = os.Getenv("ONNXRUNTIME_LIB")
	cfg.InputLayout = strings.ToUpper(getEnvWithDefault("INPUT_LAYOUT", cfg.InputLayout))
	cfg.CORSAllowOrigin = getEnvWithDefault("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", v, err)
		}
		cfg.FetchTimeout = d
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		cfg.MaxUploadBytes = n
	}

	if cfg.OnnxRuntimeLib == "" {
		logger.Debug("ONNXRUNTIME_LIB not set, using the platform default library")
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models directory is required")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported GIN_MODE %q", c.GinMode)
	}
	if c.InputLayout != core.LayoutNHWC && c.InputLayout != core.LayoutNCHW {
		return fmt.Errorf("unsupported input layout %q (want %s or %s)", c.InputLayout, core.LayoutNHWC, core.LayoutNCHW)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
