// Command shellmind-agent runs inside the sandbox container: it holds
// a persistent bash shell open and executes whatever Commands a
// connected shellmindd server sends it, reconnecting automatically if
// the connection drops.
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
		fmt.Fprintln(os.Stderr, "shellmind-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := shellmind.LoadClientConfig()
	if err != nil {
		return err
	}
	log := shellmind.NewLogger(cfg.LogLevel)

	shell, err := shellmind.NewShell(log, cfg.PS1, cfg.ExitTimeout, cfg.KillTimeout)
	if err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	defer shell.Close()

	renderer := shellmind.NewColorRenderer(os.Stdout)
	agent := shellmind.NewAgent(log, cfg, shell, renderer)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return agent.Run(ctx)
}
