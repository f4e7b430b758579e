// Package cli holds the cobra commands of the cartsync binary.
package cli

import (
	"fmt"
	"os"
	"slices"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	ConfigPathEnvKey  = "CARTSYNC_CONFIG"
	DefaultConfigPath = "cartsync.yaml"
	LogLevelEnvKey    = "LOG_LEVEL"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	Shopper string
	Query   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the cartsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartsync",
		Short: "cartsync - storefront cart synchronization",
		Long: `Keeps one active cart per shopper in sync with a versioned remote commerce platform.

Run the storefront API with "serve", a local platform with "emulate", drive a cart from the
shell with the "cart" commands, or find products with "catalog search".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setLogLevel(opts.Verbose)
			return nil
		},
	}

	configPath := os.Getenv(ConfigPathEnvKey)
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", configPath, "store configuration file")
	cmd.PersistentFlags().StringVar(&opts.Shopper, "shopper", "default", "shopper id the cached session and cart belong to")
	cmd.PersistentFlags().StringVar(&opts.Query, "query", "", "JMESPath expression applied to JSON output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewEmulateCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))

	return cmd
}

// setLogLevel applies LOG_LEVEL, overridden to debug by --verbose. Logs go to stderr so they never
// mix with command output.
func setLogLevel(verbose bool) {
	log.SetOutput(os.Stderr)
	level := log.WarnLevel
	if v := os.Getenv(LogLevelEnvKey); v != "" {
		if l, err := log.ParseLevel(v); err == nil {
			level = l
		}
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}
