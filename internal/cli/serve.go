package cli

import (
	"cartsync/internal/api"
	"cartsync/internal/backends"
	"cartsync/internal/ctp"
	"cartsync/internal/flow"
	"cartsync/internal/pub"
	"cartsync/internal/types"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const DefaultDatabase = "cartsync.db"

type ServeOptions struct {
	*RootOptions
	Port      int
	Idle      time.Duration
	LogEvents bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront cart API",
		Long: `Serve the storefront cart API for the UI layer.

Every shopper (X-Shopper-ID header) gets its own engine and cached session. The KV backend is
chosen by KV_BACKEND (sqlite, memory, redis, ddb).

Example:
  cartsync serve --port 8080 --config cartsync.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 8080, "listen port")
	cmd.Flags().DurationVar(&opts.Idle, "idle", 30*time.Minute, "drop a shopper's engine after this long without requests")
	cmd.Flags().BoolVar(&opts.LogEvents, "log-events", false, "log cart events when no events topic is configured")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, deps, closeFn, err := newDeps(ctx, opts.RootOptions, opts.LogEvents)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeFn()
	}()

	h := api.NewHandler(func(shopper string) *flow.Engine {
		return flow.NewEngine(shopper, cfg, deps)
	}, opts.Idle)
	stop, done := api.RunServerInterruptible(opts.Port, h)
	return waitForSignal(stop, done)
}

// newDeps loads the store configuration and builds the collaborators every engine shares.
func newDeps(ctx context.Context, opts *RootOptions, logEvents bool) (types.StoreConfig, flow.Deps, func() error, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return cfg, flow.Deps{}, nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	kv, closeFn, err := backends.KVBackendFromEnv(DefaultDatabase)
	if err != nil {
		return cfg, flow.Deps{}, nil, WrapExitError(ExitCommandError, "failed to open key-value store", err)
	}
	client := ctp.NewClient(cfg, nil)
	deps := flow.Deps{KV: kv, Carts: client, Issuer: client, Catalog: client, Customers: client}

	switch {
	case cfg.EventsTopicArn != "":
		sns, err := pub.SNSFromEnv(ctx)
		if err != nil {
			_ = closeFn()
			return cfg, flow.Deps{}, nil, WrapExitError(ExitCommandError, "failed to set up SNS", err)
		}
		deps.Events = pub.NewEvents(sns, cfg.EventsTopicArn, cfg.RemoteTimeout())
	case logEvents:
		deps.Events = pub.NewEvents(pub.LogPublisher{}, "log", cfg.RemoteTimeout())
	}
	return cfg, deps, closeFn, nil
}

// waitForSignal blocks until SIGINT/SIGTERM or the server exits, then stops the server.
func waitForSignal(stop chan<- struct{}, done <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		close(stop)
		return <-done
	case err := <-done:
		return err
	}
}
