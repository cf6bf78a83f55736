package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// main wires the command tree and cancels its context on SIGINT or SIGTERM.
// Business logic lives in internal services packages.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error(fmt.Sprintf("stride: %v", err))
		os.Exit(1)
	}
}
