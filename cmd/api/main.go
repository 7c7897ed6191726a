// Command api serves the reconciliation passes over HTTP and runs them on a
// schedule for every user in the ledger.
package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/ledgerwatch/internal/cli"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/config"
)

func main() {
	flags := cli.ParseServeFlags()

	cfg, err := loadConfig(flags.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := cli.RunServe(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the named file when given, otherwise config.yaml or the
// environment.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
