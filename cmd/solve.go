package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cottand/tyinfer/frontend/fixture"
	"github.com/cottand/tyinfer/frontend/infer"
	"github.com/spf13/cobra"
)

var SolveCmd = &cobra.Command{
	Use:          "solve fixture.yaml...",
	Short:        "Infer the type arguments of the calls described by YAML fixtures",
	RunE:         runSolve,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var solveOpts options

func init() {
	solveOpts = registerFlags(SolveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	settings := solveOpts.apply()
	colour, err := solveOpts.useColor(os.Stdout)
	if err != nil {
		return err
	}

	failures := 0
	for _, path := range args {
		n, err := solveFile(cmd.Context(), cmd.OutOrStdout(), path, settings, colour)
		if err != nil {
			return err
		}
		failures += n
	}
	if failures > 0 {
		return fmt.Errorf("%d calls did not meet their expectations", failures)
	}
	return nil
}

// solveFile infers every call of the fixture at path and reports the results to w
func solveFile(ctx context.Context, w io.Writer, path string, settings infer.Settings, colour bool) (int, error) {
	fx, err := fixture.Load(path)
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := infer.NewContainer(fx.Table, settings)
	results, err := c.InferAll(ctx, fx.Exprs())
	if err != nil {
		return 0, fmt.Errorf("could not infer %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(w, "%s\n", path)
	return report(w, fx, results, colour), nil
}
