package infra

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// Setting origins reported by the config command.
const (
	OriginDefault = "default"
	OriginEnv     = "env"
	OriginFile    = "file"
)

// Config represents the resolved tool configuration. Precedence per setting
// is explicit config file, then environment, then built-in default.
type Config struct {
	AppEnv           string
	APIKey           string
	Model            string
	BaseURL          string
	AspectRatio      domain.AspectRatio
	DurationSeconds  int
	NumberOfVideos   int
	PersonGeneration domain.PersonGeneration
	MaxConcurrent    int
	RetryAttempts    int
	RetryDelay       time.Duration
	PollInterval     time.Duration
	OperationTimeout time.Duration
	OutputDir        string
	PromptsDir       string
	LogLevel         string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	origins map[string]string
}

// LoadConfig resolves configuration from the environment plus an optional
// YAML override file and validates every setting. filePath may be empty, in
// which case the default file is consulted only when it exists.
func LoadConfig(filePath string) (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		APIKey:           os.Getenv("GOOGLE_API_KEY"),
		Model:            getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		BaseURL:          getEnv("VEO_BASE_URL", "https://generativelanguage.googleapis.com"),
		AspectRatio:      domain.AspectRatio(getEnv("DEFAULT_ASPECT_RATIO", "16:9")),
		DurationSeconds:  getEnvInt("DEFAULT_DURATION", 8),
		NumberOfVideos:   getEnvInt("DEFAULT_NUMBER_OF_VIDEOS", 1),
		PersonGeneration: domain.PersonGeneration(getEnv("DEFAULT_PERSON_GENERATION", "allow_adult")),
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT_OPERATIONS", 3),
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 3),
		RetryDelay:       time.Second * time.Duration(getEnvInt("RETRY_DELAY", 30)),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL", 10)),
		OperationTimeout: time.Second * time.Duration(getEnvInt("OPERATION_TIMEOUT", 600)),
		OutputDir:        getEnv("OUTPUT_DIR", "output/videos"),
		PromptsDir:       getEnv("PROMPTS_DIR", "prompts"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnv("PORT", "8080"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		origins:          map[string]string{},
	}
	for _, key := range settingKeys {
		cfg.origins[key] = OriginDefault
		if _, ok := os.LookupEnv(key); ok && os.Getenv(key) != "" {
			cfg.origins[key] = OriginEnv
		}
	}

	overrides, err := loadConfigFile(filePath)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides.apply(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireAPIKey reports an error when the provider credential is absent.
// Only commands that talk to the provider call it.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY: %w", domain.ErrMissingAPIKey)
	}
	return nil
}

// SetOperationTimeout applies a command-line override of the operation wait
// ceiling, held to the same range validate enforces.
func (c *Config) SetOperationTimeout(seconds int) error {
	if seconds < 60 || seconds > 3600 {
		return domain.NewConfigError("OPERATION_TIMEOUT", "%d is outside 60..3600 seconds", seconds)
	}
	c.OperationTimeout = time.Duration(seconds) * time.Second
	return nil
}

// SetMaxConcurrent applies a command-line override of the batch concurrency
// ceiling, held to the same range validate enforces.
func (c *Config) SetMaxConcurrent(n int) error {
	if n < 1 || n > 10 {
		return domain.NewConfigError("MAX_CONCURRENT_OPERATIONS", "%d is outside 1..10", n)
	}
	c.MaxConcurrent = n
	return nil
}

// validate checks every constrained setting and joins all violations into
// one error rather than stopping at the first.
func (c *Config) validate() error {
	var violations []error
	fail := func(setting, format string, args ...any) {
		violations = append(violations, domain.NewConfigError(setting, format, args...))
	}
	if c.Model == "" {
		fail("VEO_MODEL", "must not be empty")
	}
	if c.BaseURL == "" {
		fail("VEO_BASE_URL", "must not be empty")
	}
	if !c.AspectRatio.Valid() {
		fail("DEFAULT_ASPECT_RATIO", "%q is not one of 16:9, 9:16, 1:1", string(c.AspectRatio))
	}
	if c.DurationSeconds < 5 || c.DurationSeconds > 8 {
		fail("DEFAULT_DURATION", "%d is outside 5..8", c.DurationSeconds)
	}
	if c.NumberOfVideos < 1 || c.NumberOfVideos > 4 {
		fail("DEFAULT_NUMBER_OF_VIDEOS", "%d is outside 1..4", c.NumberOfVideos)
	}
	if !c.PersonGeneration.Valid() {
		fail("DEFAULT_PERSON_GENERATION", "%q is not one of allow_adult, dont_allow", string(c.PersonGeneration))
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 10 {
		fail("MAX_CONCURRENT_OPERATIONS", "%d is outside 1..10", c.MaxConcurrent)
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		fail("RETRY_ATTEMPTS", "%d is outside 1..10", c.RetryAttempts)
	}
	if secs := int(c.RetryDelay / time.Second); secs < 5 || secs > 300 {
		fail("RETRY_DELAY", "%d is outside 5..300 seconds", secs)
	}
	if secs := int(c.PollInterval / time.Second); secs < 1 || secs > 60 {
		fail("POLL_INTERVAL", "%d is outside 1..60 seconds", secs)
	}
	if secs := int(c.OperationTimeout / time.Second); secs < 60 || secs > 3600 {
		fail("OPERATION_TIMEOUT", "%d is outside 60..3600 seconds", secs)
	}
	if c.OutputDir == "" {
		fail("OUTPUT_DIR", "must not be empty")
	}
	if c.PromptsDir == "" {
		fail("PROMPTS_DIR", "must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		fail("LOG_LEVEL", "%q is not one of debug, info, warn, error", c.LogLevel)
	}
	return errors.Join(violations...)
}

// Setting is one resolved configuration entry for display.
type Setting struct {
	Key    string
	Value  string
	Origin string
}

var settingKeys = []string{
	"APP_ENV",
	"GOOGLE_API_KEY",
	"VEO_MODEL",
	"VEO_BASE_URL",
	"DEFAULT_ASPECT_RATIO",
	"DEFAULT_DURATION",
	"DEFAULT_NUMBER_OF_VIDEOS",
	"DEFAULT_PERSON_GENERATION",
	"MAX_CONCURRENT_OPERATIONS",
	"RETRY_ATTEMPTS",
	"RETRY_DELAY",
	"POLL_INTERVAL",
	"OPERATION_TIMEOUT",
	"OUTPUT_DIR",
	"PROMPTS_DIR",
	"LOG_LEVEL",
	"PORT",
}

// Settings lists every setting with its effective value and origin, the API
// key masked down to its tail.
func (c *Config) Settings() []Setting {
	values := map[string]string{
		"APP_ENV":                   c.AppEnv,
		"GOOGLE_API_KEY":            maskSecret(c.APIKey),
		"VEO_MODEL":                 c.Model,
		"VEO_BASE_URL":              c.BaseURL,
		"DEFAULT_ASPECT_RATIO":      string(c.AspectRatio),
		"DEFAULT_DURATION":          strconv.Itoa(c.DurationSeconds),
		"DEFAULT_NUMBER_OF_VIDEOS":  strconv.Itoa(c.NumberOfVideos),
		"DEFAULT_PERSON_GENERATION": string(c.PersonGeneration),
		"MAX_CONCURRENT_OPERATIONS": strconv.Itoa(c.MaxConcurrent),
		"RETRY_ATTEMPTS":            strconv.Itoa(c.RetryAttempts),
		"RETRY_DELAY":               strconv.Itoa(int(c.RetryDelay / time.Second)),
		"POLL_INTERVAL":             strconv.Itoa(int(c.PollInterval / time.Second)),
		"OPERATION_TIMEOUT":         strconv.Itoa(int(c.OperationTimeout / time.Second)),
		"OUTPUT_DIR":                c.OutputDir,
		"PROMPTS_DIR":               c.PromptsDir,
		"LOG_LEVEL":                 c.LogLevel,
		"PORT":                      c.Port,
	}
	settings := make([]Setting, 0, len(settingKeys))
	for _, key := range settingKeys {
		settings = append(settings, Setting{Key: key, Value: values[key], Origin: c.origins[key]})
	}
	sort.SliceStable(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
