// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.Browser.Timeouts.PageLoadDOM)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.Timeouts.CustomNetworkIdle)
	assert.Equal(t, 500*time.Millisecond, cfg.Env.SleepAfterAction)
	assert.Equal(t, 10, cfg.Env.MaxTabs)
	assert.Equal(t, ProviderGemini, cfg.Agent.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent.LLM.Model)
	assert.Equal(t, 30, cfg.Agent.MaxSteps)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		err := cfg.Validate()
		assert.NoError(t, err, "A valid config should not produce a validation error")

		cfgInvalidTabs := *cfg
		cfgInvalidTabs.Env.MaxTabs = 0
		err = cfgInvalidTabs.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "env.max_tabs must be a positive integer")

		cfgInvalidSleep := *cfg
		cfgInvalidSleep.Env.SleepAfterAction = -time.Second
		err = cfgInvalidSleep.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "env.sleep_after_action must not be negative")
	})

	t.Run("Timeout Validation", func(t *testing.T) {
		valid := TimeoutConfig{
			Default:           30 * time.Second,
			PageLoadDOM:       5 * time.Second,
			PageLoadIdle:      10 * time.Second,
			CustomNetworkIdle: 10 * time.Second,
			ElementWait:       5 * time.Second,
		}
		assert.NoError(t, valid.Validate())

		zeroed := valid
		zeroed.ElementWait = 0
		err := zeroed.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be a positive duration")
	})

	t.Run("Agent Validation", func(t *testing.T) {
		valid := AgentConfig{
			MaxSteps: 30,
			LLM:      LLMConfig{Provider: ProviderGemini, Model: "gemini-2.5-flash"},
		}
		assert.NoError(t, valid.Validate())

		invalidSteps := valid
		invalidSteps.MaxSteps = 0
		err := invalidSteps.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps must be greater than 0")

		invalidProvider := valid
		invalidProvider.LLM.Provider = "openai"
		err = invalidProvider.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported llm provider")

		missingModel := valid
		missingModel.LLM.Model = ""
		err = missingModel.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "llm.model is required")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  headless: false
  timeouts:
    element_wait: 2s
env:
  max_tabs: 3
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.False(t, cfg.Browser.Headless)
		assert.Equal(t, 2*time.Second, cfg.Browser.Timeouts.ElementWait)
		assert.Equal(t, 3, cfg.Env.MaxTabs)
		// Check a default value was also loaded
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("env.max_tabs", 0) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "env.max_tabs must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		testKey := "test-api-key-456"
		t.Setenv("WEBENV_LLM_API_KEY", testKey)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, testKey, cfg.Agent.LLM.APIKey)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/app.log
browser:
  args: ["--disable-gpu", "--no-sandbox"]
  viewport:
    width: 1920
    height: 1080
agent:
  llm:
    model: gemini-2.5-pro
    api_timeout: 90s
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/app.log", cfg.Logger.LogFile)
	assert.Equal(t, []string{"--disable-gpu", "--no-sandbox"}, cfg.Browser.Args)
	assert.Equal(t, 1920, cfg.Browser.Viewport["width"])
	assert.Equal(t, "gemini-2.5-pro", cfg.Agent.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.Agent.LLM.APITimeout)
}
