// Package config handles loading and validating the farmline configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the farmline daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Call       CallConfig       `mapstructure:"call"`
	Answer     AnswerConfig     `mapstructure:"answer"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each listener.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC health listener.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the webhook listener.
type HTTPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`       // webhook route, e.g. "/api/call"
	PublicURL string `mapstructure:"public_url"` // absolute webhook URL as the provider sees it; derived from the request if empty
}

// CallConfig controls the phone conversation.
type CallConfig struct {
	DefaultLanguage     string        `mapstructure:"default_language"`     // display name used when the locale is absent or unknown
	DefaultLocale       string        `mapstructure:"default_locale"`       // recognition locale when the provider sends none
	Greeting            string        `mapstructure:"greeting"`             // spoken on the initial GET
	GreetingPlaceholder string        `mapstructure:"greeting_placeholder"` // caller utterance used when no speech was recognized
	Apology             string        `mapstructure:"apology"`              // spoken before hanging up on internal errors
	AnswerTimeout       time.Duration `mapstructure:"answer_timeout"`
	SummaryTimeout      time.Duration `mapstructure:"summary_timeout"`
	SMSTimeout          time.Duration `mapstructure:"sms_timeout"`
	SessionTTL          time.Duration `mapstructure:"session_ttl"`    // idle sessions older than this are dropped
	SweepInterval       time.Duration `mapstructure:"sweep_interval"` // how often idle sessions are swept
}

// drainSlack covers request parsing and document writing around the
// upstream calls.
const drainSlack = 5 * time.Second

// DrainTimeout is the longest a single webhook request can take: either one
// answered turn or a hang-up's summary followed by its SMS.
func (c CallConfig) DrainTimeout() time.Duration {
	return max(c.AnswerTimeout, c.SummaryTimeout+c.SMSTimeout) + drainSlack
}

// AnswerConfig selects the chat model that answers callers.
type AnswerConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"` // OpenAI-compatible endpoint; empty means api.openai.com
	Model         string `mapstructure:"model"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Backend string          `mapstructure:"backend"` // "openai" or "piper"
	Piper   PiperConfig     `mapstructure:"piper"`
	OpenAI  OpenAITTSConfig `mapstructure:"openai"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. Endpoints takes precedence.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`
}

// OpenAITTSConfig holds settings for the OpenAI speech endpoint. The API key
// and base URL are shared with AnswerConfig.
type OpenAITTSConfig struct {
	Model string `mapstructure:"model"`
	Voice string `mapstructure:"voice"`
}

// NotifyConfig configures post-call SMS delivery.
type NotifyConfig struct {
	Exotel ExotelConfig `mapstructure:"exotel"`
}

// ExotelConfig holds Exotel SMS credentials. All four of APIKey, APIToken,
// AccountSID and Sender are required for SMS to be sent.
type ExotelConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	APIToken      string  `mapstructure:"api_token"`
	AccountSID    string  `mapstructure:"account_sid"`
	Sender        string  `mapstructure:"sender"`
	Subdomain     string  `mapstructure:"subdomain"` // e.g. "api.exotel.com" or "api.in.exotel.com"
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// Complete reports whether every credential needed to send SMS is set.
func (c ExotelConfig) Complete() bool {
	return c.APIKey != "" && c.APIToken != "" && c.AccountSID != "" && c.Sender != ""
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint     string  `mapstructure:"endpoint"` // OTLP/gRPC collector; empty disables export
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./farmline.yaml, ./configs/farmline.yaml, /etc/farmline/farmline.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.path", "/api/call")
	v.SetDefault("transports.http.public_url", "")
	v.SetDefault("call.default_language", "English")
	v.SetDefault("call.default_locale", "en-IN")
	v.SetDefault("call.greeting", "Welcome to the farmer helpline. Please ask your question after the beep.")
	v.SetDefault("call.greeting_placeholder", "Hello")
	v.SetDefault("call.apology", "Sorry, we are facing a technical problem. Please call again later.")
	v.SetDefault("call.answer_timeout", "12s")
	v.SetDefault("call.summary_timeout", "20s")
	v.SetDefault("call.sms_timeout", "10s")
	v.SetDefault("call.session_ttl", "2h")
	v.SetDefault("call.sweep_interval", "1m")
	v.SetDefault("answer.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("answer.base_url", "")
	v.SetDefault("answer.model", "gpt-4o-mini")
	v.SetDefault("answer.max_concurrent", 16)
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "openai")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.voice", "alloy")
	v.SetDefault("notify.exotel.api_key", "${EXOTEL_API_KEY}")
	v.SetDefault("notify.exotel.api_token", "${EXOTEL_API_TOKEN}")
	v.SetDefault("notify.exotel.account_sid", "${EXOTEL_SID}")
	v.SetDefault("notify.exotel.sender", "${EXOTEL_SENDER_NUMBER}")
	v.SetDefault("notify.exotel.subdomain", "api.exotel.com")
	v.SetDefault("notify.exotel.rate_per_second", 5.0)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("farmline")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/farmline")
	}

	// Environment variables: FARMLINE_SERVER_HEALTH_PORT, FARMLINE_ANSWER_MODEL, etc.
	v.SetEnvPrefix("FARMLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; env vars and defaults are sufficient.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${EXOTEL_API_KEY}").
	cfg.Answer.APIKey = resolveEnvRef(cfg.Answer.APIKey)
	cfg.Notify.Exotel.APIKey = resolveEnvRef(cfg.Notify.Exotel.APIKey)
	cfg.Notify.Exotel.APIToken = resolveEnvRef(cfg.Notify.Exotel.APIToken)
	cfg.Notify.Exotel.AccountSID = resolveEnvRef(cfg.Notify.Exotel.AccountSID)
	cfg.Notify.Exotel.Sender = resolveEnvRef(cfg.Notify.Exotel.Sender)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Transports.HTTP.Enabled && !strings.HasPrefix(c.Transports.HTTP.Path, "/") {
		return fmt.Errorf("transports.http.path must start with '/': %q", c.Transports.HTTP.Path)
	}
	if c.Call.AnswerTimeout <= 0 || c.Call.SummaryTimeout <= 0 || c.Call.SMSTimeout <= 0 {
		return fmt.Errorf("call timeouts must be positive")
	}
	if c.Call.SessionTTL <= 0 || c.Call.SweepInterval <= 0 {
		return fmt.Errorf("call.session_ttl and call.sweep_interval must be positive")
	}
	switch c.TTS.Backend {
	case "openai", "piper":
	default:
		return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var
// value. An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
