// Command ledgerwatch runs one reconciliation pass for one user and prints a
// summary.
//
//	ledgerwatch -pass transfers -user 1
//	ledgerwatch -pass import -user 1 -account 2 -file statement.csv -confirm
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/ledgerwatch/internal/application/service"
	"github.com/eshaffer321/ledgerwatch/internal/cli"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/config"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/logging"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

func main() {
	flags, err := cli.ParsePassFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(flags *cli.PassFlags) error {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, flags.Pass)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logging.NewLoggerWithSystem(loggingCfg, "storage")))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := service.NewReconcileService(cfg, store, logger)
	defer func() { _ = svc.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.RunPass(ctx, svc, flags, os.Stdout)
}
