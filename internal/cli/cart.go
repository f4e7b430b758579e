package cli

import (
	"cartsync/internal/flow"
	"cartsync/internal/types"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cartRunner runs one engine operation for the shopper of the root options.
type cartRunner func(ctx context.Context, e *flow.Engine) (flow.Result, error)

// NewCartCommand groups the commands that drive the shopper's cart from the shell. The session and
// cart ref are cached in the KV backend between runs, like a browser's local storage.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the shopper's cart",
	}
	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartAddCommand(rootOpts))
	cmd.AddCommand(newCartRemoveCommand(rootOpts))
	cmd.AddCommand(newCartPromoCommand(rootOpts))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	cmd.AddCommand(newCartLoginCommand(rootOpts))
	cmd.AddCommand(newCartSignUpCommand(rootOpts))
	return cmd
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.View(ctx)
			})
		},
	}
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	var variant, quantity int
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the active cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := types.AddLine{ProductID: args[0], VariantID: variant, Quantity: quantity}
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.Apply(ctx, "", m)
			})
		},
	}
	cmd.Flags().IntVar(&variant, "variant", types.DefaultVariantID, "product variant")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "units to add")
	return cmd
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	var quantity int
	var product string
	cmd := &cobra.Command{
		Use:   "remove [line-id]",
		Short: "Remove a line, or some of its units, from the active cart",
		Long: `Remove a line from the active cart. Without --quantity, or with a quantity at or above the
line's, the whole line goes; otherwise the line is decremented.

Example:
  cartsync cart remove 5f0c... --quantity 1
  cartsync cart remove --product espresso-beans`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (product == "") {
				return WrapExitError(ExitCommandError, "give either a line id or --product", nil)
			}
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				lineID := ""
				if len(args) == 1 {
					lineID = args[0]
				} else {
					li, ok, err := e.LineForProduct(ctx, product)
					if err != nil {
						return flow.Result{}, err
					}
					if !ok {
						return flow.Result{}, types.Err(types.ErrInvalidMutation, nil, "product %s is not in the cart", product)
					}
					lineID = li.ID
				}
				return e.Apply(ctx, "", types.RemoveLine{LineID: lineID, Quantity: quantity})
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 0, "units to remove (0 removes the line)")
	cmd.Flags().StringVar(&product, "product", "", "remove the line holding this product")
	return cmd
}

func newCartPromoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promo <code>",
		Short: "Apply a discount code to the active cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.Apply(ctx, "", types.ApplyPromo{Code: args[0]})
			})
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Replace the active cart with a new empty one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.Apply(ctx, "", types.ClearCart{})
			})
		},
	}
}

func newCartLoginCommand(opts *RootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign the shopper in and switch to the customer's cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.Login(ctx, args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "customer password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newCartSignUpCommand(opts *RootOptions) *cobra.Command {
	var draft types.CustomerDraft
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a customer account and switch to its cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Email = args[0]
			return runCart(cmd, opts, func(ctx context.Context, e *flow.Engine) (flow.Result, error) {
				return e.SignUp(ctx, draft)
			})
		},
	}
	cmd.Flags().StringVarP(&draft.Password, "password", "p", "", "customer password")
	cmd.Flags().StringVar(&draft.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&draft.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runCart(cmd *cobra.Command, opts *RootOptions, run cartRunner) error {
	return withEngine(cmd, opts, func(ctx context.Context, e *flow.Engine, out *OutputFormatter) error {
		res, err := run(ctx, e)
		if err != nil {
			return out.Error(fmt.Errorf("%s: %w", cmd.Name(), err))
		}
		return out.Cart(res.View)
	})
}

// withEngine builds the shopper's engine for one command and closes it once run returns.
func withEngine(cmd *cobra.Command, opts *RootOptions, run func(ctx context.Context, e *flow.Engine, out *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, deps, closeFn, err := newDeps(ctx, opts, false)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeFn()
	}()

	e := flow.NewEngine(opts.Shopper, cfg, deps)
	defer e.Close()

	return run(ctx, e, &OutputFormatter{Format: opts.Format, Query: opts.Query, Writer: cmd.OutOrStdout()})
}
