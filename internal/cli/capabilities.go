package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/pipeline"
)

// capabilitiesCommand prints what this build accepts and produces as JSON.
func (c *CLI) capabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Print supported formats, views and solver defaults as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pipeline.Describe(c.baseOptions()))
		},
	}
}
