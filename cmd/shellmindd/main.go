// Command shellmindd runs the server half of shellmind: it assembles a
// prompt from a history of sandbox command results, asks a
// schema-constrained generator for the next batch of commands, and
// relays them over the wire to a connected shellmind-agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pikaro/shellmind"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shellmindd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := shellmind.LoadServerConfig()
	if err != nil {
		return err
	}
	log := shellmind.NewLogger(cfg.LogLevel)

	systemPrompt, err := os.ReadFile(cfg.SystemPromptPath)
	if err != nil {
		log.WithError(err).Warn("no static system prompt found, starting with an empty one")
		systemPrompt = nil
	}

	tokenizer := shellmind.NewWordCountTokenizer()
	generator := shellmind.NewHTTPGenerator(cfg.GeneratorURL)

	compactor, err := shellmind.NewCompactor(log, string(systemPrompt), cfg.DefaultGoal, cfg.NCtx, tokenizer, generator)
	if err != nil {
		return fmt.Errorf("build compactor: %w", err)
	}

	var renderer shellmind.Renderer
	if cfg.StreamOutput {
		renderer = shellmind.NewColorRenderer(os.Stdout)
	} else {
		renderer = shellmind.NewNoopRenderer()
	}

	server, err := shellmind.NewServer(log, cfg, compactor, renderer)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer server.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
