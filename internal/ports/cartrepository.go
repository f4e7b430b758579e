package ports

import (
	"cartsync/internal/types"
	"context"
)

// CartRepository persists the platform emulator's carts.
// Implementations MUST support compare-and-set (CAS) semantics on Cart.Version to avoid races.
type CartRepository interface {
	// Load returns the cart and its version. If no cart exists, (nil,0,nil) MUST be returned.
	Load(ctx context.Context, cartID string) (*types.Cart, int64, error)

	// ListByOwner returns the owner's carts in creation order.
	ListByOwner(ctx context.Context, owner string) ([]types.Cart, error)

	// UpsertCAS creates or updates the cart only if the stored version matches prevVersion.
	// If prevVersion==0, the cart MUST NOT already exist. The stored version becomes next.Version.
	// Returns true on success (committed), false if precondition failed, error for I/O.
	UpsertCAS(ctx context.Context, prevVersion int64, next types.Cart) (bool, error)

	// DeleteCAS removes the cart only if the stored version matches prevVersion.
	DeleteCAS(ctx context.Context, cartID string, prevVersion int64) (bool, error)

	// ClearAll purges every cart. Used in tests only.
	ClearAll(ctx context.Context) error
}
