package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	tlmcp "github.com/valter-silva-au/taskledger/internal/mcp"
)

var mcpToolsJSON bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the task lifecycle over MCP",
	Long: `Run tledger as an MCP (Model Context Protocol) server so agents can
claim tasks, move them between states and report progress as tool calls.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lifecycle tools on stdio",
	Long: `Serve the lifecycle tools on the stdio transport until the client
disconnects or the process receives SIGINT or SIGTERM.

Run 'tledger mcp tools' to see what the server offers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newMCPServer()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("running MCP server: %w", err)
		}
		return nil
	},
}

var mcpToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the MCP server registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newMCPServer()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tools := srv.Tools()
		if mcpToolsJSON {
			return writeJSON(out, tools)
		}
		for _, t := range tools {
			fmt.Fprintf(out, "%-24s %s\n", t.Name, t.Description)
		}
		return nil
	},
}

func newMCPServer() (*tlmcp.Server, error) {
	if err := requireLifecycle(); err != nil {
		return nil, err
	}
	return tlmcp.NewServer(Lifecycle, MetricsCalc, AlertEngine, appVersion), nil
}

func init() {
	mcpToolsCmd.Flags().BoolVar(&mcpToolsJSON, "json", false, "Output tools as JSON")
	mcpCmd.AddCommand(mcpServeCmd, mcpToolsCmd)
	rootCmd.AddCommand(mcpCmd)
}

