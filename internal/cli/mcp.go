package cli

import (
	stdlog "log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/internal/mcp"
)

// mcpCommand creates the mcp command.
func (c *CLI) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  solve_layout     solve a document and return positions with diagnostics
  validate_layout  check a document without solving
  render_layout    solve and render as svg, dot or json
  capabilities     supported formats, views and solver defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := c.newRunner(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := mcp.NewServer(runner, c.baseOptions(), componentLogger(c.Logger, "mcp"))
			errLogger := stdlog.New(os.Stderr, "mcp: ", stdlog.LstdFlags)

			c.Logger.Info("MCP server starting", "transport", "stdio")
			return mcpserver.ServeStdio(srv.MCPServer(), mcpserver.WithErrorLogger(errLogger))
		},
	}
}
