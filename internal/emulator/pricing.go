package emulator

import (
	"cartsync/internal/types"

	"github.com/google/uuid"
)

// apply runs one update action against c. Lines are merged by product and variant.
func (p *Platform) apply(c *types.Cart, a types.UpdateAction) error {
	switch a.Action {
	case types.ActionAddLineItem:
		return p.addLineItem(c, a)
	case types.ActionRemoveLineItem:
		return removeLineItem(c, a)
	case types.ActionAddDiscountCode:
		return p.addDiscountCode(c, a)
	default:
		return types.Err(types.ErrInvalidMutation, nil, "unknown action %q", a.Action)
	}
}

func (p *Platform) addLineItem(c *types.Cart, a types.UpdateAction) error {
	product, ok := p.products[a.ProductID]
	if !ok {
		return types.Err(types.ErrInvalidMutation, nil, "product %q does not exist", a.ProductID)
	}
	variantID := a.VariantID
	if variantID == 0 {
		variantID = types.DefaultVariantID
	}
	variant, ok := findVariant(product, variantID)
	if !ok {
		return types.Err(types.ErrInvalidMutation, nil, "product %q has no variant %d", a.ProductID, variantID)
	}
	qty := 1
	if a.Quantity != nil {
		qty = *a.Quantity
	}
	if qty < 1 {
		return types.Err(types.ErrInvalidMutation, nil, "quantity must be positive, got %d", qty)
	}

	for i := range c.LineItems {
		if c.LineItems[i].ProductID == product.ID && c.LineItems[i].VariantID == variantID {
			c.LineItems[i].Quantity += qty
			return nil
		}
	}
	c.LineItems = append(c.LineItems, types.LineItem{
		ID:        uuid.NewString(),
		ProductID: product.ID,
		VariantID: variantID,
		Name:      product.Name,
		Quantity:  qty,
		Price: types.Price{
			Value: types.Money{CentAmount: variant.CentAmount, CurrencyCode: p.catalog.Currency},
		},
	})
	return nil
}

// removeLineItem drops the line when no quantity is given or the quantity covers the line, and
// decrements it otherwise.
func removeLineItem(c *types.Cart, a types.UpdateAction) error {
	idx := -1
	for i, li := range c.LineItems {
		if li.ID == a.LineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.Err(types.ErrInvalidMutation, nil, "line item %q does not exist", a.LineItemID)
	}
	if a.Quantity != nil && *a.Quantity < 1 {
		return types.Err(types.ErrInvalidMutation, nil, "quantity must be positive, got %d", *a.Quantity)
	}
	if a.Quantity == nil || *a.Quantity >= c.LineItems[idx].Quantity {
		c.LineItems = append(c.LineItems[:idx], c.LineItems[idx+1:]...)
		return nil
	}
	c.LineItems[idx].Quantity -= *a.Quantity
	return nil
}

func (p *Platform) addDiscountCode(c *types.Cart, a types.UpdateAction) error {
	if _, ok := p.codes[a.Code]; !ok {
		return types.Err(types.ErrInvalidMutation, nil, "discount code %q is not applicable", a.Code)
	}
	for _, dc := range c.DiscountCodes {
		if dc.Code == a.Code {
			return types.Err(types.ErrInvalidMutation, nil, "discount code %q is already applied", a.Code)
		}
	}
	c.DiscountCodes = append(c.DiscountCodes, types.DiscountCodeInfo{Code: a.Code, State: "MatchesCart"})
	return nil
}

// reprice recomputes line and cart totals. A variant sale price applies first, then every applied
// discount code in order, each rounding down to whole minor units.
func (p *Platform) reprice(c *types.Cart) {
	var total int64
	for i := range c.LineItems {
		li := &c.LineItems[i]
		unit := li.Price.Value.CentAmount
		if product, ok := p.products[li.ProductID]; ok {
			if v, ok := findVariant(product, li.VariantID); ok && v.DiscountedCentAmount > 0 {
				unit = v.DiscountedCentAmount
			}
		}
		for _, dc := range c.DiscountCodes {
			unit = unit * int64(100-p.codes[dc.Code].PercentOff) / 100
		}
		li.Price.Discounted = nil
		if unit != li.Price.Value.CentAmount {
			li.Price.Discounted = &types.DiscountedPrice{
				Value: types.Money{CentAmount: unit, CurrencyCode: li.Price.Value.CurrencyCode},
			}
		}
		li.TotalPrice = types.Money{CentAmount: unit * int64(li.Quantity), CurrencyCode: li.Price.Value.CurrencyCode}
		total += li.TotalPrice.CentAmount
	}
	c.TotalPrice = types.Money{CentAmount: total, CurrencyCode: p.catalog.Currency}
}

func findVariant(p types.Product, id int) (types.Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return types.Variant{}, false
}
