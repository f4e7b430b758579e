package types

import (
	"fmt"
	"strings"
)

// ProductProjection is a product as the storefront lists it: its variants with their current prices.
type ProductProjection struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Variants []ProductVariant `json:"variants"`
}

type ProductVariant struct {
	ID    int   `json:"id"`
	Price Price `json:"price"`
}

// Discounted reports whether any variant is on sale.
func (p ProductProjection) Discounted() bool {
	for _, v := range p.Variants {
		if v.Price.Discounted != nil {
			return true
		}
	}
	return false
}

// ProductPage is one page of a product search.
type ProductPage struct {
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	Count   int                 `json:"count"`
	Total   int                 `json:"total"`
	Results []ProductProjection `json:"results"`
}

const MinPasswordLength = 6

// CustomerDraft is the sign-up form of a new customer.
type CustomerDraft struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func (d CustomerDraft) Validate() error {
	if d.Email == "" {
		return fmt.Errorf("email is required")
	}
	if at := strings.Index(d.Email, "@"); at < 1 || at == len(d.Email)-1 {
		return fmt.Errorf("email %q is not an address", d.Email)
	}
	if len(d.Password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// CustomerInfo is a registered customer as the platform returns it. The password never leaves the
// platform.
type CustomerInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// CustomerSignInResult is the platform's answer to a sign-up.
type CustomerSignInResult struct {
	Customer CustomerInfo `json:"customer"`
}

// CustomerPage is the result of a customer query.
type CustomerPage struct {
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Results []CustomerInfo `json:"results"`
}
