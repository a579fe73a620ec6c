// Business-model MCP server: exposes the plan store as MCP tools for LLMs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/config"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/logging"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/mcpserver"
	"github.com/kamalcharan/contractnest-ui-sub011/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.TenantID == "" {
		fmt.Fprintln(os.Stderr, "BM_TENANT_ID is required")
		os.Exit(1)
	}

	// stdout carries the MCP protocol; logs go to stderr
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	sess, err := session.Open(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	s := mcpserver.NewMCPServer(sess.Store, sess.Scope)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
