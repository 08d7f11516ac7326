package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"workbench/internal/captcha"
	"workbench/internal/poll"
	"workbench/internal/validate"
)

const (
	defaultPort              = 8080
	defaultDataDir           = "data"
	defaultMaxConcurrentJobs = 2
	defaultRatePerMinute     = 30
	defaultRateBurst         = 5
	defaultJobTimeout        = 30 * time.Minute
	defaultPassTTL           = 5 * time.Minute
	defaultVerifyURL         = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	defaultBackendURL        = "http://localhost:8080"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Environment variables that override the YAML file.
const (
	EnvPort          = "PORT"
	EnvBackendURL    = "WORKBENCH_BACKEND_URL"
	EnvSiteKey       = "WORKBENCH_CAPTCHA_SITE_KEY"
	EnvCaptchaSecret = "WORKBENCH_CAPTCHA_SECRET"
	EnvDataDir       = "WORKBENCH_DATA_DIR"
)

// Config describes runtime configuration for the job server and the workbench.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Captcha CaptchaConfig `yaml:"captcha"`
	Tool    ToolConfig    `yaml:"tool"`
}

// ServerConfig configures the reference job backend.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	DataDir           string        `yaml:"data_dir"`
	Store             string        `yaml:"store"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	// RatePerMinute is the sustained POST rate allowed per client IP.
	RatePerMinute  float64     `yaml:"rate_per_minute"`
	RateBurst      int         `yaml:"rate_burst"`
	AllowedOrigins []string    `yaml:"allowed_origins"`
	YtDlp          YtDlpConfig `yaml:"ytdlp"`
}

// YtDlpConfig selects the yt-dlp binary and format.
type YtDlpConfig struct {
	// Binary is an explicit yt-dlp path; empty means resolve from PATH.
	Binary string `yaml:"binary"`
	Format string `yaml:"format"`
}

// CaptchaConfig holds both the public and the server-side captcha settings.
type CaptchaConfig struct {
	SiteKey   string `yaml:"site_key"`
	Secret    string `yaml:"secret"`
	VerifyURL string `yaml:"verify_url"`
	// InsecureSkipVerify accepts every token without calling the provider.
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	PassTTL            time.Duration `yaml:"pass_ttl"`
}

// ToolConfig is the download tool's mount configuration.
type ToolConfig struct {
	BackendURL         string        `yaml:"backend_url"`
	CaptchaEnabled     bool          `yaml:"captcha_enabled"`
	CaptchaLoadTimeout time.Duration `yaml:"captcha_load_timeout"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollMaxAttempts    int           `yaml:"poll_max_attempts"`
	MaxURLLength       int           `yaml:"max_url_length"`
	MinDisplay         time.Duration `yaml:"min_display"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              defaultPort,
			DataDir:           defaultDataDir,
			Store:             StoreFile,
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			JobTimeout:        defaultJobTimeout,
			RatePerMinute:     defaultRatePerMinute,
			RateBurst:         defaultRateBurst,
			YtDlp:             YtDlpConfig{Format: "mp4"},
		},
		Captcha: CaptchaConfig{
			VerifyURL: defaultVerifyURL,
			PassTTL:   defaultPassTTL,
		},
		Tool: ToolConfig{
			BackendURL:         defaultBackendURL,
			CaptchaEnabled:     true,
			CaptchaLoadTimeout: captcha.DefaultLoadTimeout,
			PollInterval:       poll.JobInterval,
			PollMaxAttempts:    poll.JobMaxAttempts,
			MaxURLLength:       validate.DefaultMaxURLLength,
			MinDisplay:         220 * time.Millisecond,
			TokenTTL:           captcha.DefaultTokenTTL,
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads YAML config from the provided path and applies environment
// overrides. If the file does not exist or is empty, defaults are used.
// Tool settings are not validated here: a bad tool configuration disables
// the tool at mount time instead of failing startup.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	normalize(&cfg)

	// validate concurrency explicitly: values < 1 are not allowed
	if cfg.Server.MaxConcurrentJobs < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_jobs: %d (must be >= 1)", cfg.Server.MaxConcurrentJobs)
	}
	if cfg.Server.Store != StoreFile && cfg.Server.Store != StoreSQLite {
		return cfg, fmt.Errorf("invalid store: %q (want %q or %q)", cfg.Server.Store, StoreFile, StoreSQLite)
	}
	if cfg.Server.RatePerMinute < 0 || cfg.Server.RateBurst < 0 {
		return cfg, errors.New("rate limits must not be negative")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Tool.BackendURL = v
	}
	if v := os.Getenv(EnvSiteKey); v != "" {
		cfg.Captcha.SiteKey = v
	}
	if v := os.Getenv(EnvCaptchaSecret); v != "" {
		cfg.Captcha.Secret = v
	}
	return nil
}

// basic normalization
func normalize(cfg *Config) {
	d := Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = d.Server.DataDir
	}
	cfg.Server.Store = strings.ToLower(strings.TrimSpace(cfg.Server.Store))
	if cfg.Server.Store == "" {
		cfg.Server.Store = d.Server.Store
	}
	if cfg.Server.JobTimeout <= 0 {
		cfg.Server.JobTimeout = d.Server.JobTimeout
	}
	if cfg.Server.YtDlp.Format == "" {
		cfg.Server.YtDlp.Format = d.Server.YtDlp.Format
	}
	cfg.Server.AllowedOrigins = normalizeOrigins(cfg.Server.AllowedOrigins)

	if cfg.Captcha.VerifyURL == "" {
		cfg.Captcha.VerifyURL = d.Captcha.VerifyURL
	}
	if cfg.Captcha.PassTTL <= 0 {
		cfg.Captcha.PassTTL = d.Captcha.PassTTL
	}

	if cfg.Tool.CaptchaLoadTimeout <= 0 {
		cfg.Tool.CaptchaLoadTimeout = d.Tool.CaptchaLoadTimeout
	}
	if cfg.Tool.PollInterval <= 0 {
		cfg.Tool.PollInterval = d.Tool.PollInterval
	}
	if cfg.Tool.PollMaxAttempts <= 0 {
		cfg.Tool.PollMaxAttempts = d.Tool.PollMaxAttempts
	}
	if cfg.Tool.MaxURLLength <= 0 {
		cfg.Tool.MaxURLLength = d.Tool.MaxURLLength
	}
	if cfg.Tool.MinDisplay < 0 {
		cfg.Tool.MinDisplay = d.Tool.MinDisplay
	}
	if cfg.Tool.TokenTTL <= 0 {
		cfg.Tool.TokenTTL = d.Tool.TokenTTL
	}
}

func normalizeOrigins(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, origin := range in {
		o := strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		normalized = append(normalized, o)
	}
	return normalized
}

// PollOptions converts the tool settings into a job poll policy.
func (t ToolConfig) PollOptions() poll.Options {
	return poll.Options{Interval: t.PollInterval, MaxAttempts: t.PollMaxAttempts}
}
