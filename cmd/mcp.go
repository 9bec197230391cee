package cmd

import (
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/forge/internal/mcp"
	"github.com/joescharf/forge/internal/runner"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP-capable assistant start pipeline runs and read run
history. Configure it with:

  {
    "mcpServers": {
      "forge": { "command": "forge", "args": ["mcp"] }
    }
  }

Available tools: forge_run, forge_list_runs, forge_get_run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(ctxOrBackground(cmd.Context()), shutdownSignals()...)
		defer stop()

		// stdout carries the protocol, so diagnostics go to stderr only.
		var r *runner.Runner
		if r, err = newRunner(ctx, s); err != nil {
			ui.Warning("forge_run disabled: %v", err)
		}
		logger.Info("mcp server starting", "version", buildVersion)

		if err := mcp.NewServer(s, r, buildVersion).ServeStdio(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

