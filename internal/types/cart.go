package types

import "time"

const (
	CartStateActive  = "Active"
	CartStateDeleted = "Deleted"

	// InitialCartVersion is the version the platform assigns to a freshly created cart.
	InitialCartVersion = 1

	DefaultVariantID = 1
)

// Money is an amount in the minor units of its currency (cents for USD).
type Money struct {
	CentAmount   int64  `json:"centAmount" dynamodbav:"cent_amount"`
	CurrencyCode string `json:"currencyCode" dynamodbav:"currency_code"`
}

// Price is the unit price of a line. Discounted is set once a discount code applies to the line.
type Price struct {
	Value      Money            `json:"value" dynamodbav:"value"`
	Discounted *DiscountedPrice `json:"discounted,omitempty" dynamodbav:"discounted"`
}

type DiscountedPrice struct {
	Value Money `json:"value" dynamodbav:"value"`
}

// Effective returns the discounted unit price when present, the standard one otherwise.
func (p Price) Effective() Money {
	if p.Discounted != nil {
		return p.Discounted.Value
	}
	return p.Value
}

// LineItem is one product-and-quantity entry of a cart. ID is assigned by the platform and is
// distinct from ProductID.
type LineItem struct {
	ID         string `json:"id" dynamodbav:"id"`
	ProductID  string `json:"productId" dynamodbav:"product_id"`
	VariantID  int    `json:"variantId" dynamodbav:"variant_id"`
	Name       string `json:"name,omitempty" dynamodbav:"name"`
	Quantity   int    `json:"quantity" dynamodbav:"quantity"`
	Price      Price  `json:"price" dynamodbav:"price"`
	TotalPrice Money  `json:"totalPrice" dynamodbav:"total_price"`
}

type DiscountCodeInfo struct {
	Code  string `json:"code" dynamodbav:"code"`
	State string `json:"state" dynamodbav:"state"`
}

// Cart is a full, consistent read of a remote cart (a snapshot).
type Cart struct {
	ID            string             `json:"id" dynamodbav:"id"`
	Version       int64              `json:"version" dynamodbav:"ver"`
	CartState     string             `json:"cartState" dynamodbav:"cart_state"`
	CustomerID    string             `json:"customerId,omitempty" dynamodbav:"customer_id"`
	AnonymousID   string             `json:"anonymousId,omitempty" dynamodbav:"anonymous_id"`
	LineItems     []LineItem         `json:"lineItems" dynamodbav:"line_items"`
	TotalPrice    Money              `json:"totalPrice" dynamodbav:"total_price"`
	DiscountCodes []DiscountCodeInfo `json:"discountCodes" dynamodbav:"discount_codes"`
	CreatedAt     time.Time          `json:"createdAt" dynamodbav:"created_at"`
}

// Ref returns the cache hint for c.
func (c Cart) Ref() CartRef {
	return CartRef{ID: c.ID, Version: c.Version}
}

// Line returns the line with the given id.
func (c Cart) Line(lineID string) (LineItem, bool) {
	for _, li := range c.LineItems {
		if li.ID == lineID {
			return li, true
		}
	}
	return LineItem{}, false
}

// LineForProduct returns the first line holding productID.
func (c Cart) LineForProduct(productID string) (LineItem, bool) {
	for _, li := range c.LineItems {
		if li.ProductID == productID {
			return li, true
		}
	}
	return LineItem{}, false
}

// Owner returns the identity that owns the cart on the platform.
func (c Cart) Owner() string {
	if c.CustomerID != "" {
		return c.CustomerID
	}
	return c.AnonymousID
}

// CartPage is the result of listing the session's active carts.
type CartPage struct {
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
	Results []Cart `json:"results"`
}

type CartDraft struct {
	Currency string `json:"currency"`
}

// CartRef is the locally cached hint of the active cart: its id and the version of the last
// acknowledged write.
type CartRef struct {
	ID      string
	Version int64
}

// UpdateAction is one action of a cart update request. Only the fields of the named action are set.
type UpdateAction struct {
	Action     string `json:"action"`
	ProductID  string `json:"productId,omitempty"`
	VariantID  int    `json:"variantId,omitempty"`
	LineItemID string `json:"lineItemId,omitempty"`
	Quantity   *int   `json:"quantity,omitempty"`
	Code       string `json:"code,omitempty"`
}

const (
	ActionAddLineItem     = "addLineItem"
	ActionRemoveLineItem  = "removeLineItem"
	ActionAddDiscountCode = "addDiscountCode"
)

// CartUpdate is the body of a version-checked cart update.
type CartUpdate struct {
	Version int64          `json:"version"`
	Actions []UpdateAction `json:"actions"`
}

// Clone returns a deep copy of c, so stores and callers never share line slices.
func (c Cart) Clone() Cart {
	out := c
	if c.LineItems != nil {
		out.LineItems = make([]LineItem, len(c.LineItems))
		for i, li := range c.LineItems {
			if li.Price.Discounted != nil {
				d := *li.Price.Discounted
				li.Price.Discounted = &d
			}
			out.LineItems[i] = li
		}
	}
	if c.DiscountCodes != nil {
		out.DiscountCodes = append([]DiscountCodeInfo(nil), c.DiscountCodes...)
	}
	return out
}
