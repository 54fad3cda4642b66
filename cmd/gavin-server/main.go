// Package main は gavin-server コマンドの実装です
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
	// 割り込みはコンテキストのキャンセルとして扱う
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewServerCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gavin-server: %v\n", err)
		stop()
		os.Exit(1)
	}
}
