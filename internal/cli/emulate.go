package cli

import (
	"cartsync/internal/backends"
	"cartsync/internal/emulator"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type EmulateOptions struct {
	*RootOptions
	Port    int
	Catalog string
	Latency time.Duration
}

func NewEmulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EmulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run a local commerce platform",
		Long: `Serve a local commerce platform: the cart API with version-checked writes and the token
endpoints, selling the products of a YAML catalog. Carts are stored in the backend chosen by
CART_BACKEND (memory, redis, ddb).

Example:
  cartsync emulate --port 9090 --catalog catalog.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmulate(opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 9090, "listen port")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog YAML file (a demo catalog when empty)")
	cmd.Flags().DurationVar(&opts.Latency, "latency", 0, "delay every cart call by this long")

	return cmd
}

func runEmulate(opts *EmulateOptions) error {
	catalog, err := emulator.LoadCatalog(opts.Catalog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	repo, err := backends.CartBackendFromEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cart store", err)
	}
	p, err := emulator.NewPlatform(catalog, repo)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid catalog", err)
	}
	p.SetLatency(opts.Latency)
	log.WithFields(log.Fields{"products": len(catalog.Products), "codes": len(catalog.DiscountCodes)}).Info("catalog loaded")

	stop, done := emulator.RunServerInterruptible(opts.Port, p)
	return waitForSignal(stop, done)
}
