package ports

import (
	"cartsync/internal/types"
	"context"
)

// CatalogService searches the platform's product projections. Filters use the platform's
// filter.query syntax; every filter must match. A malformed filter is types.ErrInvalidInput.
type CatalogService interface {
	SearchProducts(ctx context.Context, token string, filters []string) (types.ProductPage, error)
}

// CustomerService registers customers. Emails are unique: a second sign-up with the same email is
// types.ErrCustomerExists.
type CustomerService interface {
	CreateCustomer(ctx context.Context, token string, draft types.CustomerDraft) (types.CustomerInfo, error)
	CustomerExists(ctx context.Context, token, email string) (bool, error)
}
