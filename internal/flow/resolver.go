package flow

import (
	"cartsync/internal/cache"
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Resolver finds the session's active cart on the platform, creating an empty one when there is
// none, and records it as the cached cart ref.
type Resolver struct {
	carts    ports.CartService
	cache    *cache.Store
	currency string
	timeout  time.Duration
}

func NewResolver(carts ports.CartService, store *cache.Store, cfg types.StoreConfig) *Resolver {
	cfg = cfg.WithDefaults()
	return &Resolver{
		carts:    carts,
		cache:    store,
		currency: cfg.Currency,
		timeout:  cfg.RemoteTimeout(),
	}
}

// EnsureActiveCart returns the session's active cart. The first cart the platform lists is
// authoritative; with none listed an empty cart is created. On failure the cache is left as it was.
func (r *Resolver) EnsureActiveCart(ctx context.Context, token string) (types.Cart, error) {
	page, err := bounded(ctx, r.timeout, func(ctx context.Context) (types.CartPage, error) {
		return r.carts.ListActiveCarts(ctx, token)
	})
	if err != nil {
		return types.Cart{}, surface(err, "list active carts")
	}

	var c types.Cart
	if len(page.Results) > 0 {
		c = page.Results[0]
		if len(page.Results) > 1 {
			log.WithFields(log.Fields{"cartID": c.ID, "active": page.Total}).Warn("several active carts, using the first")
		}
	} else {
		if c, err = r.create(ctx, token); err != nil {
			return types.Cart{}, err
		}
	}

	if err := r.cache.SetCartRef(ctx, c.Ref()); err != nil {
		return types.Cart{}, err
	}
	log.WithFields(log.Fields{"cartID": c.ID, "version": c.Version}).Info("active cart resolved")
	return c, nil
}

// create makes a new empty cart in the store currency. It does not touch the cache.
func (r *Resolver) create(ctx context.Context, token string) (types.Cart, error) {
	c, err := bounded(ctx, r.timeout, func(ctx context.Context) (types.Cart, error) {
		return r.carts.CreateCart(ctx, token, types.CartDraft{Currency: r.currency})
	})
	if err != nil {
		return types.Cart{}, surface(err, "create cart")
	}
	log.WithFields(log.Fields{"cartID": c.ID, "currency": r.currency}).Info("cart created")
	return c, nil
}
