// Command server runs the leaguesim scheduler, presenter, and event
// bus as a long-lived process (spec.md §6 "serve").
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hoopsguild/leaguesim/internal/cmd/server"
	"github.com/hoopsguild/leaguesim/internal/platform/config"
)

func main() {
	cfg, err := server.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		config.Exitf("Error: %v", err)
	}
}
