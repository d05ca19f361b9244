// Command step advances a season by N rounds synchronously, with no
// scheduler involved (spec.md §6 "step N").
package main

import (
	"context"
	"flag"
	"os"

	"github.com/hoopsguild/leaguesim/internal/cmd/step"
	"github.com/hoopsguild/leaguesim/internal/platform/config"
)

func main() {
	cfg, err := step.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := step.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
