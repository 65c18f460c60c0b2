// -- cmd/reduce.go --
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/shihanfu/rl-web-env/internal/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newReduceCmd creates the `reduce` command. It runs the DOM reduction on a
// static HTML file without a browser, which is useful for inspecting the
// observation a page would produce.
func newReduceCmd() *cobra.Command {
	var showStamps bool

	reduceCmd := &cobra.Command{
		Use:   "reduce [html-file]",
		Short: "Reduces a static HTML file and prints the resulting observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			root, err := dom.FromHTML(f)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			obs, stamps := dom.Reduce(root)

			var payload any = obs
			if showStamps {
				payload = struct {
					*dom.Observation
					Stamps []dom.Stamp `json:"stamps"`
				}{obs, stamps}
			}

			out, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal observation: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	reduceCmd.Flags().BoolVar(&showStamps, "stamps", false, "include the identifier write-back records in the output")
	return reduceCmd
}

func init() {
	rootCmd.AddCommand(newReduceCmd())
}
