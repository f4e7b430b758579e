package cli

import (
	"cartsync/internal/flow"
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCatalogCommand groups the commands that browse the platform's products.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the platform's products",
	}
	cmd.AddCommand(newCatalogSearchCommand(rootOpts))
	return cmd
}

func newCatalogSearchCommand(opts *RootOptions) *cobra.Command {
	var name string
	var onSale bool
	cmd := &cobra.Command{
		Use:   "search [filter...]",
		Short: "Search products by filter query",
		Long: `List the products matching every filter. Filters use the platform's filter.query syntax.

Example:
  cartsync catalog search --name kettle
  cartsync catalog search --on-sale
  cartsync catalog search 'variants.price.centAmount:range (0 to 2500)'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := append([]string{}, args...)
			if name != "" {
				filters = append(filters, "name:"+strconv.Quote(name))
			}
			if onSale {
				filters = append(filters, "variants.scopedPriceDiscounted:true")
			}
			return withEngine(cmd, opts, func(ctx context.Context, e *flow.Engine, out *OutputFormatter) error {
				page, err := e.Search(ctx, filters)
				if err != nil {
					return out.Error(fmt.Errorf("%s: %w", cmd.Name(), err))
				}
				return out.Products(page)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "match products whose name contains this text")
	cmd.Flags().BoolVar(&onSale, "on-sale", false, "only products with a discounted variant")
	return cmd
}
