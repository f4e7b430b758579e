// Package view projects cart snapshots into the aggregates the UI renders. Projection is pure: no
// I/O, no clock, the same snapshot always gives the same view model.
package view

import (
	"cartsync/internal/types"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

// Line is one cart line as displayed. UnitPrice is the standard unit price and DisplayUnitPrice the
// one charged; DisplayPrice is DisplayUnitPrice times Quantity.
type Line struct {
	ID               string      `json:"id"`
	ProductID        string      `json:"productId"`
	VariantID        int         `json:"variantId"`
	Name             string      `json:"name,omitempty"`
	Quantity         int         `json:"quantity"`
	UnitPrice        types.Money `json:"unitPrice"`
	DisplayUnitPrice types.Money `json:"displayUnitPrice"`
	Discounted       bool        `json:"discounted"`
	DisplayPrice     types.Money `json:"displayPrice"`
	DisplayUnitText  string      `json:"displayUnitText"`
	DisplayPriceText string      `json:"displayPriceText"`
}

type ViewModel struct {
	CartID        string      `json:"cartId"`
	Version       int64       `json:"version"`
	Currency      string      `json:"currency"`
	Lines         []Line      `json:"lines"`
	ItemCount     int         `json:"itemCount"`
	TotalPrice    types.Money `json:"totalPrice"`
	TotalText     string      `json:"totalText"`
	DiscountCodes []string    `json:"discountCodes"`
	Empty         bool        `json:"empty"`
}

// Project derives the view model of c.
func Project(c types.Cart) ViewModel {
	cur := c.TotalPrice.CurrencyCode
	if cur == "" && len(c.LineItems) > 0 {
		cur = c.LineItems[0].Price.Value.CurrencyCode
	}
	vm := ViewModel{
		CartID:        c.ID,
		Version:       c.Version,
		Currency:      cur,
		Lines:         make([]Line, 0, len(c.LineItems)),
		TotalPrice:    types.Money{CentAmount: c.TotalPrice.CentAmount, CurrencyCode: cur},
		DiscountCodes: make([]string, 0, len(c.DiscountCodes)),
	}
	for _, li := range c.LineItems {
		unit := li.Price.Effective()
		total := types.Money{CentAmount: unit.CentAmount * int64(li.Quantity), CurrencyCode: unit.CurrencyCode}
		vm.Lines = append(vm.Lines, Line{
			ID:               li.ID,
			ProductID:        li.ProductID,
			VariantID:        li.VariantID,
			Name:             li.Name,
			Quantity:         li.Quantity,
			UnitPrice:        li.Price.Value,
			DisplayUnitPrice: unit,
			Discounted:       li.Price.Discounted != nil,
			DisplayPrice:     total,
			DisplayUnitText:  FormatMoney(unit),
			DisplayPriceText: FormatMoney(total),
		})
		vm.ItemCount += li.Quantity
	}
	for _, dc := range c.DiscountCodes {
		vm.DiscountCodes = append(vm.DiscountCodes, dc.Code)
	}
	vm.TotalText = FormatMoney(vm.TotalPrice)
	vm.Empty = len(vm.Lines) == 0
	return vm
}

// FormatMoney renders m as "USD 12.50", using the currency's standard number of minor digits. An
// unknown currency code is rendered with two.
func FormatMoney(m types.Money) string {
	scale := 2
	if unit, err := currency.ParseISO(m.CurrencyCode); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}

	amount := m.CentAmount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	if scale > 0 {
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if m.CurrencyCode == "" {
		return sign + digits
	}
	return m.CurrencyCode + " " + sign + digits
}
