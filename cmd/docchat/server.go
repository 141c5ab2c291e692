package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/docchat/internal/api"
	"github.com/kalambet/docchat/internal/chat"
	"github.com/kalambet/docchat/internal/config"
	"github.com/kalambet/docchat/internal/embedding"
	"github.com/kalambet/docchat/internal/extract"
	"github.com/kalambet/docchat/internal/ingest"
	"github.com/kalambet/docchat/internal/llm"
	"github.com/kalambet/docchat/internal/retrieval"
	"github.com/kalambet/docchat/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docchat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcpStdio)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose an MCP server on stdio")
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "docchat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Backend clients. The Ollama client is always constructed; whether it is
	// used for embedding depends on the credential-driven selection below.
	ollamaClient := llm.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel)
	var geminiClient *llm.Gemini
	if cfg.Gemini.APIKey != "" {
		geminiClient = llm.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.ChatModel, cfg.Gemini.EmbedModel)
	}

	var embedBackend llm.Embedder
	switch cfg.EmbeddingProvider() {
	case config.ProviderGemini:
		embedBackend = geminiClient
		slog.Info("embedding via Gemini", "model", cfg.Gemini.EmbedModel)
	default:
		embedBackend = ollamaClient
		if !ollamaClient.IsRunning(ctx) {
			slog.Warn("Ollama is not reachable; ingestion and retrieval will fail until it is running",
				"base_url", cfg.Ollama.BaseURL)
		}
		slog.Info("embedding via Ollama", "model", cfg.Ollama.EmbedModel)
	}

	st := store.New()
	embedder := embedding.New(embedBackend)
	retriever := retrieval.New(embedder, st)
	pipeline := ingest.New(st, embedder, extract.Text, cfg.Chunking.Size, cfg.Chunking.Overlap)
	orchestrator := chat.New(retriever, cfg.Retrieval.TopK, cfg.Retrieval.MinSimilarity)

	generatorFor := func(provider string) llm.Generator {
		if cfg.GenerationProvider(provider) == config.ProviderOllama {
			return ollamaClient
		}
		return geminiClient
	}

	handler := api.NewHandler(api.Deps{
		Store:        st,
		Pipeline:     pipeline,
		Orchestrator: orchestrator,
		Generator:    generatorFor,
	})

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: st, Retriever: retriever})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docchat listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
