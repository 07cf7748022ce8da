// Preparator converts a block-file chain into a signed atom stream.
//
// Usage:
//
//	preparator <blocks-dir> [<work-dir>] [options]   Run the pipeline
//	preparator --help                                Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/radixdlt/mtps/config"
	"github.com/radixdlt/mtps/internal/node"
)

func main() {
	cfg, _, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	res, err := n.Run(ctx)
	stop()
	n.Stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if res.Walked && !res.Drained {
		fmt.Fprintln(os.Stderr, "Warning: atom queue not drained, the last block is re-emitted on the next start")
	}
}
