package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/whisperwall/whisperwall/cmd/whisperwall/serve"
)

func main() {
	app := &cli.App{
		Name:  "whisperwall",
		Usage: "Anonymous secret sharing with local and federated login",
		Commands: []*cli.Command{
			serve.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
