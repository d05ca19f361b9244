// Command ask answers a natural-language stats question about a
// season (spec.md §6 "ask").
package main

import (
	"context"
	"flag"
	"os"

	"github.com/hoopsguild/leaguesim/internal/cmd/ask"
	"github.com/hoopsguild/leaguesim/internal/platform/config"
)

func main() {
	cfg, err := ask.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := ask.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
