package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"graphreap/internal/mcp"
	"graphreap/internal/reap"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// stdout carries the protocol, logs go to stderr.
	p, err := loadProject(os.Stderr)
	if err != nil {
		return err
	}
	db, err := openDB(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer closeDB(ctx, db, p.logger)

	svc := reap.NewService(db, p.registry, p.cfg.Delete.Concurrency, p.logger)
	server := mcp.NewServer(p.registry, db, svc, version, p.logger)
	return server.Run(ctx, &sdk.StdioTransport{})
}
