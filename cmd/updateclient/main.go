package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"updateclient/internal/debug"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(defaultDeps).ExecuteContext(ctx)
	stop()
	debug.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeFor(err))
	}
}
