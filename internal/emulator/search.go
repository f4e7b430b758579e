package emulator

import (
	"cartsync/internal/types"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// productFilter is one parsed filter.query expression.
type productFilter func(types.ProductProjection) bool

// SearchProducts lists the catalog products that match every filter, in catalog order. Supported
// filter.query expressions:
//
//	id:"espresso-beans","paper-filters"
//	name:"kettle"                              case-insensitive substring of the name
//	variants.scopedPriceDiscounted:true        a variant is on sale (alias discounted)
//	variants.price.centAmount:range (0 to 2500) an effective variant price in range, * is open (alias price)
func (p *Platform) SearchProducts(ctx context.Context, token string, filters []string) (types.ProductPage, error) {
	if _, err := p.enter(ctx, token, &p.stats.Searches); err != nil {
		return types.ProductPage{}, err
	}
	match := make([]productFilter, 0, len(filters))
	for _, f := range filters {
		fn, err := parseFilter(f)
		if err != nil {
			return types.ProductPage{}, types.Err(types.ErrInvalidInput, err, "")
		}
		match = append(match, fn)
	}

	page := types.ProductPage{Limit: pageLimit, Results: []types.ProductProjection{}}
	for _, pr := range p.catalog.Products {
		proj := p.project(pr)
		if !matchesAll(match, proj) {
			continue
		}
		page.Total++
		if len(page.Results) < pageLimit {
			page.Results = append(page.Results, proj)
		}
	}
	page.Count = len(page.Results)
	return page, nil
}

func (p *Platform) project(pr types.Product) types.ProductProjection {
	out := types.ProductProjection{ID: pr.ID, Name: pr.Name, Variants: make([]types.ProductVariant, 0, len(pr.Variants))}
	for _, v := range pr.Variants {
		price := types.Price{Value: types.Money{CentAmount: v.CentAmount, CurrencyCode: p.catalog.Currency}}
		if v.DiscountedCentAmount > 0 {
			price.Discounted = &types.DiscountedPrice{Value: types.Money{CentAmount: v.DiscountedCentAmount, CurrencyCode: p.catalog.Currency}}
		}
		out.Variants = append(out.Variants, types.ProductVariant{ID: v.ID, Price: price})
	}
	return out
}

func matchesAll(filters []productFilter, pr types.ProductProjection) bool {
	for _, f := range filters {
		if !f(pr) {
			return false
		}
	}
	return true
}

func parseFilter(expr string) (productFilter, error) {
	field, value, ok := strings.Cut(expr, ":")
	if !ok {
		return nil, fmt.Errorf("filter %q has no field", expr)
	}
	field, value = strings.TrimSpace(field), strings.TrimSpace(value)

	switch field {
	case "id":
		ids, err := quotedList(value)
		if err != nil {
			return nil, err
		}
		return func(pr types.ProductProjection) bool {
			for _, id := range ids {
				if pr.ID == id {
					return true
				}
			}
			return false
		}, nil
	case "name":
		terms, err := quotedList(value)
		if err != nil {
			return nil, err
		}
		return func(pr types.ProductProjection) bool {
			name := strings.ToLower(pr.Name)
			for _, t := range terms {
				if strings.Contains(name, strings.ToLower(t)) {
					return true
				}
			}
			return false
		}, nil
	case "discounted", "variants.scopedPriceDiscounted":
		want, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("filter %s wants true or false, got %q", field, value)
		}
		return func(pr types.ProductProjection) bool {
			return pr.Discounted() == want
		}, nil
	case "price", "variants.price.centAmount":
		lo, hi, err := parseRange(value)
		if err != nil {
			return nil, err
		}
		return func(pr types.ProductProjection) bool {
			for _, v := range pr.Variants {
				if c := v.Price.Effective().CentAmount; c >= lo && c <= hi {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, fmt.Errorf("unknown filter field %q", field)
	}
}

// quotedList parses `"a","b"`.
func quotedList(value string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(value, ",") {
		s, err := strconv.Unquote(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("filter value %q must be a list of quoted strings", value)
		}
		out = append(out, s)
	}
	return out, nil
}

// parseRange parses `range (lo to hi)`.
func parseRange(value string) (int64, int64, error) {
	rest, ok := strings.CutPrefix(value, "range")
	rest = strings.TrimSpace(rest)
	if !ok || !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return 0, 0, fmt.Errorf("filter value %q must be range (lo to hi)", value)
	}
	from, to, ok := strings.Cut(rest[1:len(rest)-1], " to ")
	if !ok {
		return 0, 0, fmt.Errorf("filter value %q must be range (lo to hi)", value)
	}
	lo, err := rangeBound(from, math.MinInt64)
	if err != nil {
		return 0, 0, err
	}
	hi, err := rangeBound(to, math.MaxInt64)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func rangeBound(s string, open int64) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return open, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("range bound %q is not an amount", s)
	}
	return n, nil
}
