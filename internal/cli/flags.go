package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Passes accepted by -pass.
var Passes = []string{"transfers", "subscriptions", "statuses", "insights", "upcoming", "alerts", "import"}

// PassFlags are the flags of the one-shot pass command.
type PassFlags struct {
	ConfigFile string
	Pass       string
	UserID     int64
	AccountID  int64
	File       string
	Confirm    bool
	Days       int
	Verbose    bool
}

// ParsePassFlags parses args (without the program name).
func ParsePassFlags(args []string, output io.Writer) (*PassFlags, error) {
	flags := &PassFlags{}
	fs := flag.NewFlagSet("ledgerwatch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (default: config.yaml, then environment)")
	fs.StringVar(&flags.Pass, "pass", "", "Pass to run: "+strings.Join(Passes, "|"))
	fs.Int64Var(&flags.UserID, "user", 0, "User to run the pass for")
	fs.Int64Var(&flags.AccountID, "account", 0, "Account receiving an import")
	fs.StringVar(&flags.File, "file", "", "CSV statement for -pass import")
	fs.BoolVar(&flags.Confirm, "confirm", false, "Write the selected import rows to the ledger")
	fs.IntVar(&flags.Days, "days", 30, "Horizon for -pass upcoming")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	return flags, nil
}

// Validate checks flag combinations.
func (f *PassFlags) Validate() error {
	if !slices.Contains(Passes, f.Pass) {
		return fmt.Errorf("-pass must be one of %s, got %q", strings.Join(Passes, "|"), f.Pass)
	}
	if f.UserID <= 0 {
		return errors.New("-user is required")
	}
	if f.Pass == "import" {
		if f.AccountID <= 0 {
			return errors.New("-account is required for import")
		}
		if f.File == "" {
			return errors.New("-file is required for import")
		}
	} else if f.Confirm {
		return errors.New("-confirm only applies to import")
	}
	if f.Days < 0 {
		return errors.New("-days must not be negative")
	}
	return nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigFile string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
// A zero port keeps the configured one.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides config)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}
