package types

import "fmt"

// Mutation is a cart-changing intent from the UI: one of AddLine, RemoveLine, ApplyPromo or ClearCart.
type Mutation interface {
	// Kind is a short name used in logs and events.
	Kind() string
	// Actions translates the intent into cart update actions. ClearCart has none.
	Actions() ([]UpdateAction, error)
}

// AddLine adds Quantity units (1 when unset) of a product variant. Merging into an existing line is
// up to the platform.
type AddLine struct {
	ProductID string
	VariantID int
	Quantity  int
}

// RemoveLine removes Quantity units of a line. A zero Quantity removes the whole line, as does a
// Quantity at or above the line's current quantity.
type RemoveLine struct {
	LineID   string
	Quantity int
}

type ApplyPromo struct {
	Code string
}

// ClearCart deletes the active cart and replaces it with a fresh empty one.
type ClearCart struct{}

func (AddLine) Kind() string    { return "add_line" }
func (RemoveLine) Kind() string { return "remove_line" }
func (ApplyPromo) Kind() string { return "apply_promo" }
func (ClearCart) Kind() string  { return "clear_cart" }

func (m AddLine) Actions() ([]UpdateAction, error) {
	if m.ProductID == "" {
		return nil, Err(ErrInvalidMutation, nil, "add line: product id is required")
	}
	if m.Quantity < 0 {
		return nil, Err(ErrInvalidMutation, nil, "add line: quantity must be positive, got %d", m.Quantity)
	}
	qty := m.Quantity
	if qty == 0 {
		qty = 1
	}
	variant := m.VariantID
	if variant == 0 {
		variant = DefaultVariantID
	}
	return []UpdateAction{{
		Action:    ActionAddLineItem,
		ProductID: m.ProductID,
		VariantID: variant,
		Quantity:  &qty,
	}}, nil
}

func (m RemoveLine) Actions() ([]UpdateAction, error) {
	if m.LineID == "" {
		return nil, Err(ErrInvalidMutation, nil, "remove line: line id is required")
	}
	if m.Quantity < 0 {
		return nil, Err(ErrInvalidMutation, nil, "remove line: quantity must be positive, got %d", m.Quantity)
	}
	action := UpdateAction{Action: ActionRemoveLineItem, LineItemID: m.LineID}
	if m.Quantity > 0 {
		qty := m.Quantity
		action.Quantity = &qty
	}
	return []UpdateAction{action}, nil
}

func (m ApplyPromo) Actions() ([]UpdateAction, error) {
	if m.Code == "" {
		return nil, Err(ErrInvalidMutation, nil, "apply promo: code is required")
	}
	return []UpdateAction{{Action: ActionAddDiscountCode, Code: m.Code}}, nil
}

func (ClearCart) Actions() ([]UpdateAction, error) {
	return nil, nil
}

// DescribeMutation renders m for log fields.
func DescribeMutation(m Mutation) string {
	switch t := m.(type) {
	case AddLine:
		return fmt.Sprintf("add_line(product=%s variant=%d qty=%d)", t.ProductID, t.VariantID, t.Quantity)
	case RemoveLine:
		return fmt.Sprintf("remove_line(line=%s qty=%d)", t.LineID, t.Quantity)
	case ApplyPromo:
		return fmt.Sprintf("apply_promo(code=%s)", t.Code)
	case ClearCart:
		return "clear_cart"
	default:
		return fmt.Sprintf("%T", m)
	}
}
