package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
)

// stepCommand creates the step command.
func (c *CLI) stepCommand() *cobra.Command {
	var (
		flags  solverFlags
		sweeps int
	)

	cmd := &cobra.Command{
		Use:   "step [file]",
		Short: "Step through the relaxation one sweep at a time",
		Long: `Load a document and step through the relaxation interactively.

Each sweep visits every distance constraint once in document order. The
table shows the positions after the last sweep and the status line its
summed residual.

With --sweeps N the TUI is skipped and the residual of each of N sweeps is
printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.baseOptions()
			flags.apply(&opts)

			doc, err := document.ReadFile(args[0])
			if err != nil {
				return err
			}
			sys, err := document.Build(doc, opts.SolverOptions())
			if err != nil {
				return err
			}
			defer sys.Close()

			if dangling := sys.Dangling(); len(dangling) > 0 {
				printWarning("constraints %v reference unknown entities and are skipped", dangling)
			}

			if sweeps > 0 {
				return runSweeps(cmd.Context(), NewStepModel(sys), sweeps)
			}
			p := tea.NewProgram(NewStepModel(sys), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().IntVar(&sweeps, "sweeps", 0, "print N sweeps without the interactive view")
	flags.register(cmd)

	return cmd
}

// runSweeps prints one line per sweep and stops early on convergence.
func runSweeps(ctx context.Context, m StepModel, n int) error {
	for range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		m = m.step()
		fmt.Fprintf(stdout, "%d\t%g\n", m.Iteration, m.Residual)
		if m.Converged || m.Exhausted() {
			break
		}
	}
	printInfo("%s", m.statusLine())
	return nil
}
