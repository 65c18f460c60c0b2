// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/agent"
	"github.com/shihanfu/rl-web-env/internal/config"
	"github.com/shihanfu/rl-web-env/internal/env"
	"github.com/shihanfu/rl-web-env/internal/llmclient"
	"github.com/shihanfu/rl-web-env/internal/observability"
)

// newRunCmd creates the `run` command, which drives one task end to end with
// the configured model.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the agent against a task until it terminates or hits the step limit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind only flags the user actually set, so unchanged flag
			// defaults do not shadow config file values.
			if cmd.Flags().Changed("task") {
				if err := viper.BindPFlag("env.task_file", cmd.Flags().Lookup("task")); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("max-steps") {
				if err := viper.BindPFlag("agent.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve the config so flag overrides bound in PreRunE take
			// effect with the right precedence.
			loaded, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			cfg = loaded

			task, err := resolveTask(cmd)
			if err != nil {
				return err
			}

			client, err := llmclient.New(cfg.Agent.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to create LLM client: %w", err)
			}

			environment := env.New(cfg, logger)
			obs, err := environment.Setup(ctx, task)
			if err != nil {
				return fmt.Errorf("failed to set up environment: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := environment.Close(closeCtx); err != nil {
					logger.Warn("Environment shutdown reported an error", zap.Error(err))
				}
			}()

			a := agent.New(cfg.Agent, client, environment, logger)
			answer, err := a.Run(ctx, obs)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	runCmd.Flags().StringP("task", "t", "", "path to the task JSON file")
	runCmd.Flags().String("url", "", "start URL (overrides the task file)")
	runCmd.Flags().String("intent", "", "task intent (used with --url)")
	runCmd.Flags().Int("max-steps", 0, "maximum number of agent steps")

	return runCmd
}

// resolveTask builds the task from --url/--intent or loads the configured
// task file.
func resolveTask(cmd *cobra.Command) (*env.Task, error) {
	url, _ := cmd.Flags().GetString("url")
	intent, _ := cmd.Flags().GetString("intent")
	if url != "" {
		return &env.Task{StartURL: url, Intent: intent}, nil
	}

	taskFile, _ := cmd.Flags().GetString("task")
	if taskFile == "" {
		taskFile = cfg.Env.TaskFile
	}
	if taskFile == "" {
		return nil, fmt.Errorf("either --task or --url is required")
	}
	return env.LoadTask(taskFile)
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
