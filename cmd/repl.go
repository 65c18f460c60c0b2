// -- cmd/repl.go --
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/env"
	"github.com/shihanfu/rl-web-env/internal/observability"
)

// newReplCmd creates the `repl` command: an interactive session where each
// line of input is one JSON action and each response is the resulting
// observation. Handy for driving the environment by hand.
func newReplCmd() *cobra.Command {
	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Starts an interactive session that executes JSON actions from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			task, err := resolveTask(cmd)
			if err != nil {
				return err
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

			out := cmd.OutOrStdout()
			printObservation(out, obs)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			fmt.Fprint(out, "> ")
			for scanner.Scan() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					fmt.Fprint(out, "> ")
					continue
				case "quit", "exit":
					return nil
				case "reset":
					obs, err = environment.Reset(ctx)
					if err != nil {
						return fmt.Errorf("reset failed: %w", err)
					}
				default:
					obs = environment.Step(ctx, line)
				}
				printObservation(out, obs)
				if obs.Terminated {
					return nil
				}
				fmt.Fprint(out, "> ")
			}
			return scanner.Err()
		},
	}

	replCmd.Flags().StringP("task", "t", "", "path to the task JSON file")
	replCmd.Flags().String("url", "", "start URL (overrides the task file)")
	replCmd.Flags().String("intent", "", "task intent (used with --url)")

	return replCmd
}

func printObservation(out io.Writer, obs *env.Observation) {
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal observation: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(data))
}

func init() {
	rootCmd.AddCommand(newReplCmd())
}
