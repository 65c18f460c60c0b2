// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Env     EnvConfig     `mapstructure:"env" yaml:"env"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
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

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	Timeouts        TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
}

// TimeoutConfig tunes the waits applied around page loads and element
// lookups. PageLoadIdle bounds the whole idle wait; CustomNetworkIdle is the
// quiet window that must elapse before the page counts as idle.
type TimeoutConfig struct {
	Default           time.Duration `mapstructure:"default" yaml:"default"`
	PageLoadDOM       time.Duration `mapstructure:"page_load_dom" yaml:"page_load_dom"`
	PageLoadIdle      time.Duration `mapstructure:"page_load_idle" yaml:"page_load_idle"`
	CustomNetworkIdle time.Duration `mapstructure:"custom_network_idle" yaml:"custom_network_idle"`
	ElementWait       time.Duration `mapstructure:"element_wait" yaml:"element_wait"`
}

// EnvConfig configures the interactive environment loop.
type EnvConfig struct {
	SleepAfterAction time.Duration `mapstructure:"sleep_after_action" yaml:"sleep_after_action"`
	MaxTabs          int           `mapstructure:"max_tabs" yaml:"max_tabs"`
	TaskFile         string        `mapstructure:"task_file" yaml:"task_file"`
}

// AgentConfig holds settings related to the LLM agent.
type AgentConfig struct {
	MaxSteps int       `mapstructure:"max_steps" yaml:"max_steps"`
	LLM      LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig defines the configuration for the model backing the agent.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// RequestsPerMinute caps the API call rate. Zero disables throttling.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webenv")
	v.SetDefault("logger.log_file", "webenv.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})
	v.SetDefault("browser.timeouts.default", "30s")
	v.SetDefault("browser.timeouts.page_load_dom", "5s")
	v.SetDefault("browser.timeouts.page_load_idle", "10s")
	v.SetDefault("browser.timeouts.custom_network_idle", "500ms")
	v.SetDefault("browser.timeouts.element_wait", "5s")

	// -- Env --
	v.SetDefault("env.sleep_after_action", "500ms")
	v.SetDefault("env.max_tabs", 10)

	// -- Agent --
	v.SetDefault("agent.max_steps", 30)
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.api_timeout", "60s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 4096)
	v.SetDefault("agent.llm.requests_per_minute", 30)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("agent.llm.api_key", "WEBENV_LLM_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.Agent.LLM.APIKey == "" {
		cfg.Agent.LLM.APIKey = os.Getenv("WEBENV_LLM_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Env.MaxTabs <= 0 {
		return fmt.Errorf("env.max_tabs must be a positive integer")
	}
	if c.Env.SleepAfterAction < 0 {
		return fmt.Errorf("env.sleep_after_action must not be negative")
	}
	if err := c.Browser.Timeouts.Validate(); err != nil {
		return fmt.Errorf("browser.timeouts configuration invalid: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the timeout settings.
func (t *TimeoutConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"default":             t.Default,
		"page_load_dom":       t.PageLoadDOM,
		"page_load_idle":      t.PageLoadIdle,
		"custom_network_idle": t.CustomNetworkIdle,
		"element_wait":        t.ElementWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	return nil
}

// Validate checks the agent settings.
func (a *AgentConfig) Validate() error {
	if a.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be greater than 0")
	}
	if a.LLM.Provider != ProviderGemini {
		return fmt.Errorf("unsupported llm provider %q", a.LLM.Provider)
	}
	if a.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if a.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute cannot be negative")
	}
	return nil
}
