// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// GatewayConfig configures the single rate-limited channel to the
// external multimodal model endpoint.
type GatewayConfig struct {
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RetryAfterDefault is used when a 429 response carries no Retry-After header.
	RetryAfterDefault time.Duration `mapstructure:"retry_after_default" yaml:"retry_after_default"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens   int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
}

// MinInterval derives the hard pacing interval from the configured
// requests-per-minute budget.
func (g GatewayConfig) MinInterval() time.Duration {
	if g.RequestsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(g.RequestsPerMinute)
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// TypeCharDelay paces typed input one character at a time to emulate
	// human input cadence.
	TypeCharDelay time.Duration `mapstructure:"type_char_delay" yaml:"type_char_delay"`
}

// AgentConfig holds settings for the step loop driving a single task.
type AgentConfig struct {
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// StepDelay is the human-like pause between steps, distinct from the
	// gateway's own request pacing.
	StepDelay      time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	ActionLogLimit int           `mapstructure:"action_log_limit" yaml:"action_log_limit"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// ExtractionConfig tunes the contact scoring pipeline. The multipliers
// and threshold are deliberately configuration, not constants.
type ExtractionConfig struct {
	VisionWeight  float64 `mapstructure:"vision_weight" yaml:"vision_weight"`
	BothBoost     float64 `mapstructure:"both_boost" yaml:"both_boost"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	MaxContacts   int     `mapstructure:"max_contacts" yaml:"max_contacts"`
	// Location, when set, enables the location_match validation flag.
	Location string `mapstructure:"location" yaml:"location"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "prospector")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Gateway --
	v.SetDefault("gateway.endpoint", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("gateway.model", "gemini-2.5-flash")
	v.SetDefault("gateway.requests_per_minute", 15)
	v.SetDefault("gateway.request_timeout", "30s")
	v.SetDefault("gateway.retry_after_default", "60s")
	v.SetDefault("gateway.temperature", 0.2)
	v.SetDefault("gateway.max_output_tokens", 1024)
	v.SetDefault("gateway.top_k", 40)
	v.SetDefault("gateway.top_p", 0.95)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.type_char_delay", "45ms")

	// -- Agent --
	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.step_delay", "1500ms")
	v.SetDefault("agent.action_log_limit", 100)
	v.SetDefault("agent.concurrency", 1)

	// -- Extraction --
	v.SetDefault("extraction.vision_weight", 0.9)
	v.SetDefault("extraction.both_boost", 1.1)
	v.SetDefault("extraction.min_confidence", 0.6)
	v.SetDefault("extraction.max_contacts", 10)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("gateway.api_key", "PROSPECTOR_GATEWAY_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway configuration invalid: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.Extraction.Validate(); err != nil {
		return fmt.Errorf("extraction configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the gateway settings.
func (g *GatewayConfig) Validate() error {
	if g.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be a positive integer")
	}
	if g.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be a positive duration")
	}
	if g.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be a positive integer")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	if b.TypeCharDelay < 0 {
		return fmt.Errorf("type_char_delay must not be negative")
	}
	return nil
}

// Validate checks the agent loop settings.
func (a *AgentConfig) Validate() error {
	if a.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be greater than 0")
	}
	if a.ActionLogLimit <= 0 {
		return fmt.Errorf("action_log_limit must be greater than 0")
	}
	if a.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the extraction pipeline settings.
func (e *ExtractionConfig) Validate() error {
	if e.MinConfidence < 0.0 || e.MinConfidence > 1.0 {
		return fmt.Errorf("min_confidence must be between 0.0 and 1.0")
	}
	if e.VisionWeight <= 0 || e.BothBoost <= 0 {
		return fmt.Errorf("vision_weight and both_boost must be positive")
	}
	if e.MaxContacts <= 0 {
		return fmt.Errorf("max_contacts must be greater than 0")
	}
	return nil
}
