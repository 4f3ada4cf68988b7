package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/gradle-model-mcp/internal/tools"
	"github.com/DeusData/gradle-model-mcp/internal/watcher"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the build model over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

// serve runs the MCP server on stdio with the watcher reindexing changed
// builds in the background.
func (a *app) serve(cmd *cobra.Command) error {
	s, err := a.openStore()
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer s.Close()

	srv, err := tools.NewServer(s, a.fs, tools.Options{
		Version:     version,
		MaxContexts: a.v.GetInt("max_contexts"),
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watcher.New(s, a.fs, srv.Reindex)
	go w.Run(ctx)

	slog.Info("server.start", "version", version, "db", s.Path())
	if err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
