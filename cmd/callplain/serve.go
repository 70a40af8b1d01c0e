package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/txplain/callplain/internal/api"
	"github.com/txplain/callplain/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, with --mcp, the MCP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	callAgent, err := newAgent(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}
	defer callAgent.Close()

	logger.Info().Str("config", cfg.String()).Msg("starting callplain")

	errChan := make(chan error, 2)

	httpServer := api.NewServer(cfg.HTTP.Address(), callAgent, Version, logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var mcpServer *mcp.Server
	if cfg.MCP.Enabled {
		mcpServer = mcp.NewServer(cfg.MCP.Address(), callAgent, Version, logger)
		go func() {
			if err := mcpServer.Start(); err != nil {
				errChan <- fmt.Errorf("MCP server error: %w", err)
			}
		}()
	}

	logger.Info().
		Int("supported_calls", len(callAgent.SupportedCalls())).
		Bool("llm", callAgent.HasLLM()).
		Str("knowledge_version", callAgent.KnowledgeVersion()).
		Msg("callplain service started")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	var serveErr error
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case serveErr = <-errChan:
		logger.Error().Err(serveErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down HTTP server")
	}
	if mcpServer != nil {
		if err := mcpServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("error shutting down MCP server")
		}
	}

	logger.Info().Msg("shutdown completed")
	return serveErr
}
