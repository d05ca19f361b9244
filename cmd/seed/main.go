// Command seed creates a new league from a structured YAML config
// (spec.md §6 "seed").
package main

import (
	"context"
	"flag"
	"os"

	seedcmd "github.com/hoopsguild/leaguesim/internal/cmd/seed"
	"github.com/hoopsguild/leaguesim/internal/platform/config"
)

func main() {
	cfg, err := seedcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := seedcmd.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
