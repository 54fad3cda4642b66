// Package main は gavin-gui コマンドの実装です
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gavin/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewGUICommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gavin-gui: %v\n", err)
		stop()
		os.Exit(1)
	}
}
