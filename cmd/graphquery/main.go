package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pg-graphquery/internal/cli"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand(cli.Options{Version: fmt.Sprintf("%s (%s)", Version, Commit)})
	err := cmd.ExecuteContext(ctx)
	if err != nil && !cli.Reported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.GetExitCode(err)
}
