// internal/agent/agent.go

// Package agent runs the decision loop: it shows the current observation to
// the model, extracts the next action from the reply, and feeds the action
// back into the environment until the model terminates or the step limit is
// reached.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/config"
	"github.com/shihanfu/rl-web-env/internal/env"
	"github.com/shihanfu/rl-web-env/internal/llmclient"
)

// Environment is the surface the agent drives. *env.Environment satisfies it.
type Environment interface {
	Step(ctx context.Context, raw string) *env.Observation
	Terminated() (string, bool)
	Task() *env.Task
}

// stepRecord is one completed step kept for prompt context.
type stepRecord struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// Agent drives one environment with one model.
type Agent struct {
	cfg    config.AgentConfig
	logger *zap.Logger
	client llmclient.Client
	env    Environment

	// contextLookbackSteps bounds how many past steps appear in the prompt.
	contextLookbackSteps int
}

// New creates an agent bound to an environment and a model client.
func New(cfg config.AgentConfig, client llmclient.Client, environment Environment, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:                  cfg,
		logger:               logger.Named("agent"),
		client:               client,
		env:                  environment,
		contextLookbackSteps: 10,
	}
}

// Run executes the decision loop starting from the given observation and
// returns the model's final answer. It fails if the step limit is exhausted
// before the model terminates.
func (a *Agent) Run(ctx context.Context, obs *env.Observation) (string, error) {
	task := a.env.Task()
	if task == nil {
		return "", fmt.Errorf("environment has no task")
	}
	if obs == nil {
		return "", fmt.Errorf("initial observation is required")
	}

	a.logger.Info("Starting decision loop", zap.String("intent", task.Intent), zap.Int("max_steps", a.cfg.MaxSteps))

	var history []stepRecord
	for step := 1; step <= a.cfg.MaxSteps; step++ {
		raw, err := a.decide(ctx, task, obs, history)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", step, err)
		}

		a.logger.Info("Agent decided", zap.Int("step", step), zap.String("action", raw))
		obs = a.env.Step(ctx, raw)

		record := stepRecord{Step: step, Action: raw}
		if obs.Error != nil {
			record.Error = *obs.Error
			a.logger.Warn("Step reported error", zap.Int("step", step), zap.String("error", *obs.Error))
		}
		history = append(history, record)
		if len(history) > a.contextLookbackSteps {
			history = history[len(history)-a.contextLookbackSteps:]
		}

		if answer, done := a.env.Terminated(); done {
			a.logger.Info("Agent terminated", zap.Int("steps", step), zap.String("answer", answer))
			return answer, nil
		}
	}

	return "", fmt.Errorf("step limit of %d reached without termination", a.cfg.MaxSteps)
}

// decide queries the model for the next action and extracts its JSON body.
func (a *Agent) decide(ctx context.Context, task *env.Task, obs *env.Observation, history []stepRecord) (string, error) {
	userPrompt, err := buildUserPrompt(task, obs, history)
	if err != nil {
		return "", err
	}

	timeout := a.cfg.LLM.APITimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := a.client.GenerateResponse(apiCtx, llmclient.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		ForceJSON:    true,
	})
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}

	raw, err := ExtractActionJSON(response)
	if err != nil {
		a.logger.Warn("Failed to extract action from model reply", zap.String("raw_response", response), zap.Error(err))
		return "", fmt.Errorf("failed to parse llm response: %w", err)
	}
	return raw, nil
}
