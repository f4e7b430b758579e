package ports

import (
	"cartsync/internal/types"
	"context"
)

// CartService is the remote commerce platform's cart API. Every call carries the session's bearer
// token.
// Implementations MUST map a version mismatch to types.ErrVersionConflict, a missing cart to
// types.ErrNotFound, a rejected action to types.ErrInvalidMutation, a rejected token to
// types.ErrSessionUnavailable and transport failures to types.ErrRemoteUnavailable.
type CartService interface {
	CreateCart(ctx context.Context, token string, draft types.CartDraft) (types.Cart, error)

	// ListActiveCarts returns the session's active carts in the platform's default order.
	ListActiveCarts(ctx context.Context, token string) (types.CartPage, error)

	GetCart(ctx context.Context, token, cartID string) (types.Cart, error)

	// UpdateCart applies actions only if version equals the cart's current version.
	UpdateCart(ctx context.Context, token, cartID string, version int64, actions []types.UpdateAction) (types.Cart, error)

	// DeleteCart deletes the cart only if version equals the cart's current version.
	DeleteCart(ctx context.Context, token, cartID string, version int64) (types.Cart, error)
}
