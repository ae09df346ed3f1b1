package infra

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// DefaultConfigFile is consulted when no --config flag is given. A missing
// default file is not an error; a missing explicit file is.
const DefaultConfigFile = "veogen.yaml"

// fileOverrides mirrors the YAML config file. Pointer fields keep absent
// keys distinguishable from zero values so they fall through to env/default.
type fileOverrides struct {
	APIKey           *string `yaml:"api_key"`
	Model            *string `yaml:"model"`
	BaseURL          *string `yaml:"base_url"`
	AspectRatio      *string `yaml:"aspect_ratio"`
	DurationSeconds  *int    `yaml:"duration_seconds"`
	NumberOfVideos   *int    `yaml:"number_of_videos"`
	PersonGeneration *string `yaml:"person_generation"`
	MaxConcurrent    *int    `yaml:"max_concurrent"`
	RetryAttempts    *int    `yaml:"retry_attempts"`
	RetryDelay       *int    `yaml:"retry_delay_seconds"`
	PollInterval     *int    `yaml:"poll_interval_seconds"`
	OperationTimeout *int    `yaml:"operation_timeout_seconds"`
	OutputDir        *string `yaml:"output_dir"`
	PromptsDir       *string `yaml:"prompts_dir"`
	LogLevel         *string `yaml:"log_level"`
	AppEnv           *string `yaml:"app_env"`
	Port             *string `yaml:"port"`
}

func loadConfigFile(path string) (*fileOverrides, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewConfigError("config file", "%v", err)
	}
	var overrides fileOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, domain.NewConfigError("config file", "parse %s: %v", path, err)
	}
	return &overrides, nil
}

func (o *fileOverrides) apply(cfg *Config) {
	setString := func(key string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			cfg.origins[key] = OriginFile
		}
	}
	setInt := func(key string, dst *int, src *int) {
		if src != nil {
			*dst = *src
			cfg.origins[key] = OriginFile
		}
	}
	setSeconds := func(key string, dst *time.Duration, src *int) {
		if src != nil {
			*dst = time.Second * time.Duration(*src)
			cfg.origins[key] = OriginFile
		}
	}

	setString("GOOGLE_API_KEY", &cfg.APIKey, o.APIKey)
	setString("VEO_MODEL", &cfg.Model, o.Model)
	setString("VEO_BASE_URL", &cfg.BaseURL, o.BaseURL)
	if o.AspectRatio != nil {
		cfg.AspectRatio = domain.AspectRatio(*o.AspectRatio)
		cfg.origins["DEFAULT_ASPECT_RATIO"] = OriginFile
	}
	setInt("DEFAULT_DURATION", &cfg.DurationSeconds, o.DurationSeconds)
	setInt("DEFAULT_NUMBER_OF_VIDEOS", &cfg.NumberOfVideos, o.NumberOfVideos)
	if o.PersonGeneration != nil {
		cfg.PersonGeneration = domain.PersonGeneration(*o.PersonGeneration)
		cfg.origins["DEFAULT_PERSON_GENERATION"] = OriginFile
	}
	setInt("MAX_CONCURRENT_OPERATIONS", &cfg.MaxConcurrent, o.MaxConcurrent)
	setInt("RETRY_ATTEMPTS", &cfg.RetryAttempts, o.RetryAttempts)
	setSeconds("RETRY_DELAY", &cfg.RetryDelay, o.RetryDelay)
	setSeconds("POLL_INTERVAL", &cfg.PollInterval, o.PollInterval)
	setSeconds("OPERATION_TIMEOUT", &cfg.OperationTimeout, o.OperationTimeout)
	setString("OUTPUT_DIR", &cfg.OutputDir, o.OutputDir)
	setString("PROMPTS_DIR", &cfg.PromptsDir, o.PromptsDir)
	setString("LOG_LEVEL", &cfg.LogLevel, o.LogLevel)
	setString("APP_ENV", &cfg.AppEnv, o.AppEnv)
	setString("PORT", &cfg.Port, o.Port)
}

// WriteExampleConfig writes a commented template config file. Used by
// `config --init`; refuses to clobber an existing file.
func WriteExampleConfig(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	return os.WriteFile(path, []byte(exampleConfig), 0o644)
}

const exampleConfig = `# veogen configuration. Every key is optional; unset keys fall back to the
# environment and then to built-in defaults.
#
# api_key: ""
# model: veo-3.0-generate-preview
# base_url: https://generativelanguage.googleapis.com
# aspect_ratio: "16:9"
# duration_seconds: 8
# number_of_videos: 1
# person_generation: allow_adult
# max_concurrent: 3
# retry_attempts: 3
# retry_delay_seconds: 30
# poll_interval_seconds: 10
# operation_timeout_seconds: 600
# output_dir: output/videos
# prompts_dir: prompts
# log_level: info
# app_env: development
# port: "8080"
`
