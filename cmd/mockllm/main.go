// mockllm — a mock LLM gateway mimicking the OpenAI chat-completions API,
// dispatching replies through static, scripted, or human-in-the-loop
// back-ends.
//
// Usage:
//
//	mockllm serve
//	mockllm serve --config-dir ./config
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/llm-lab/mockllm/internal/admin"
	"github.com/llm-lab/mockllm/internal/config"
	"github.com/llm-lab/mockllm/internal/handler"
	"github.com/llm-lab/mockllm/internal/interactive"
	"github.com/llm-lab/mockllm/internal/kernel"
	"github.com/llm-lab/mockllm/internal/logging"
)

func main() {
	var configDir string
	var logLevel string

	root := &cobra.Command{
		Use:   "mockllm",
		Short: "mockllm — a mock LLM gateway for tests and demos",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configDir, logLevel)
		},
	}

	serve.Flags().StringVar(&configDir, "config-dir", "./config", "Path to the config directory")
	serve.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(serve)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(configDir, logLevel string) error {
	if err := logging.Initialize(logging.Config{Level: logLevel, Format: "console"}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()
	logger := logging.Get()

	if err := config.Scaffold(configDir); err != nil {
		return fmt.Errorf("scaffold config dir: %w", err)
	}

	k, err := kernel.New(configDir, logger)
	if err != nil {
		return fmt.Errorf("load kernel: %w", err)
	}

	watcher, err := kernel.StartWatch(k, configDir, logger)
	if err != nil {
		logger.Warn("hot reload unavailable", zap.Error(err))
	}
	defer watcher.Close()

	hub := interactive.New()

	adminAuth := func() config.AuthConfig { return k.Current().Global.Admin }

	mux := chi.NewRouter()
	mux.Mount("/", handler.New(k, hub, logger).Router())
	mux.Mount("/admin", admin.New(hub, adminAuth, logger).Router())

	addr := k.Current().Global.Listen
	logger.Info("mockllm listening", zap.String("addr", addr), zap.String("config_dir", configDir))
	return http.ListenAndServe(addr, mux)
}
