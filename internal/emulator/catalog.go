package emulator

import (
	"cartsync/internal/types"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadCatalog reads a YAML catalog file. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (types.Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Catalog{}, types.Err(types.ErrInvalidConfig, err, "read catalog %s", path)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (types.Catalog, error) {
	var c types.Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return types.Catalog{}, types.Err(types.ErrInvalidConfig, err, "parse catalog")
	}
	if c.Currency == "" {
		c.Currency = types.DefaultCurrency
	}
	if err := c.Validate(); err != nil {
		return types.Catalog{}, types.Err(types.ErrInvalidConfig, err, "")
	}
	return c, nil
}

// DefaultCatalog is a small demo storefront.
func DefaultCatalog() types.Catalog {
	return types.Catalog{
		Currency: types.DefaultCurrency,
		Products: []types.Product{
			{ID: "espresso-beans", Name: "Espresso Beans 1kg", Variants: []types.Variant{{ID: 1, CentAmount: 2450}}},
			{ID: "pour-over-kettle", Name: "Pour-Over Kettle", Variants: []types.Variant{
				{ID: 1, CentAmount: 5900, DiscountedCentAmount: 4900},
				{ID: 2, CentAmount: 6900},
			}},
			{ID: "paper-filters", Name: "Paper Filters x100", Variants: []types.Variant{{ID: 1, CentAmount: 699}}},
		},
		DiscountCodes: []types.DiscountCode{
			{Code: "WELCOME10", PercentOff: 10},
			{Code: "HALFOFF", PercentOff: 50},
		},
		Customers: []types.Customer{
			{ID: "customer-1", Email: "shopper@example.com", Password: "secret"},
		},
	}
}
