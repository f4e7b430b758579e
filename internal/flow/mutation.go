package flow

import (
	"cartsync/internal/types"
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// mutate runs the write protocol for m inside its lane: read the cached ref (resolving when there
// is none), write with the cached version, and on a version conflict refetch the cart and retry
// exactly once. The cached ref changes only after the platform acknowledged a write.
func (q *MutationQueue) mutate(ctx context.Context, cartID string, m types.Mutation) (types.Cart, error) {
	actions, err := m.Actions()
	if err != nil {
		return types.Cart{}, err
	}

	ref, ok, err := q.cache.CartRef(ctx)
	if err != nil {
		return types.Cart{}, err
	}
	if !ok {
		c, err := q.resolveActive(ctx)
		if err != nil {
			return types.Cart{}, err
		}
		ref = c.Ref()
	}
	if cartID != "" && cartID != ref.ID {
		return types.Cart{}, types.Err(types.ErrMutationConflict, types.ErrCartReplaced,
			"cart %s is no longer the active cart %s", cartID, ref.ID)
	}

	if _, isClear := m.(types.ClearCart); isClear {
		return q.clear(ctx, m, ref)
	}
	return q.update(ctx, m, ref, actions)
}

func (q *MutationQueue) update(ctx context.Context, m types.Mutation, ref types.CartRef, actions []types.UpdateAction) (types.Cart, error) {
	c, err := q.write(ctx, ref, actions)
	if errors.Is(err, types.ErrVersionConflict) {
		log.WithFields(log.Fields{"cartID": ref.ID, "version": ref.Version, "op": m.Kind()}).Warn("version conflict, refetching cart")
		fresh, ferr := q.refetch(ctx, ref.ID)
		if ferr != nil {
			return types.Cart{}, ferr
		}
		ref = fresh.Ref()
		c, err = q.write(ctx, ref, actions)
		if errors.Is(err, types.ErrVersionConflict) {
			return types.Cart{}, types.Err(types.ErrMutationConflict, err, "cart %s changed again during retry", ref.ID)
		}
	}
	if err != nil {
		return types.Cart{}, q.failed(ctx, err, ref.ID, "%s on cart %s", m.Kind(), ref.ID)
	}
	q.commit(ctx, m, ref, c)
	return c, nil
}

// clear deletes the active cart and replaces it with a new empty one. The cached ref is dropped as
// soon as the delete is acknowledged, so nothing can target the deleted id.
func (q *MutationQueue) clear(ctx context.Context, m types.Mutation, ref types.CartRef) (types.Cart, error) {
	_, err := q.remove(ctx, ref)
	if errors.Is(err, types.ErrVersionConflict) {
		log.WithFields(log.Fields{"cartID": ref.ID, "version": ref.Version}).Warn("version conflict on delete, refetching cart")
		fresh, ferr := q.refetch(ctx, ref.ID)
		if ferr != nil {
			return types.Cart{}, ferr
		}
		ref = fresh.Ref()
		_, err = q.remove(ctx, ref)
		if errors.Is(err, types.ErrVersionConflict) {
			return types.Cart{}, types.Err(types.ErrMutationConflict, err, "cart %s changed again during retry", ref.ID)
		}
	}
	switch {
	case errors.Is(err, types.ErrNotFound):
		log.WithField("cartID", ref.ID).Info("cart already gone, creating a new one")
	case err != nil:
		return types.Cart{}, surface(err, "delete cart %s", ref.ID)
	}
	if err := q.cache.ClearCartRef(ctx); err != nil {
		return types.Cart{}, err
	}

	c, err := authorized(ctx, q.tokens, q.timeout, q.resolver.create)
	if err != nil {
		// No cached ref: the next request resolves a cart afresh.
		return types.Cart{}, err
	}
	if err := q.cache.SetCartRef(ctx, c.Ref()); err != nil {
		return types.Cart{}, err
	}
	log.WithFields(log.Fields{"previous": ref.ID, "cartID": c.ID, "version": c.Version}).Info("cart cleared")
	q.notify(ctx, m, ref.ID, c)
	return c, nil
}

func (q *MutationQueue) write(ctx context.Context, ref types.CartRef, actions []types.UpdateAction) (types.Cart, error) {
	return authorized(ctx, q.tokens, q.timeout, func(ctx context.Context, token string) (types.Cart, error) {
		return q.carts.UpdateCart(ctx, token, ref.ID, ref.Version, actions)
	})
}

func (q *MutationQueue) remove(ctx context.Context, ref types.CartRef) (types.Cart, error) {
	return authorized(ctx, q.tokens, q.timeout, func(ctx context.Context, token string) (types.Cart, error) {
		return q.carts.DeleteCart(ctx, token, ref.ID, ref.Version)
	})
}

// refetch reads the authoritative cart after a conflict and caches its ref.
func (q *MutationQueue) refetch(ctx context.Context, cartID string) (types.Cart, error) {
	c, err := authorized(ctx, q.tokens, q.timeout, func(ctx context.Context, token string) (types.Cart, error) {
		return q.carts.GetCart(ctx, token, cartID)
	})
	if err != nil {
		return types.Cart{}, q.failed(ctx, err, cartID, "refetch cart %s", cartID)
	}
	if err := q.cache.SetCartRef(ctx, c.Ref()); err != nil {
		return types.Cart{}, err
	}
	return c, nil
}

// failed classifies a write error. A cart the platform no longer knows is a conflict the caller
// resolves by starting over, so its ref is dropped.
func (q *MutationQueue) failed(ctx context.Context, err error, cartID string, format string, args ...any) error {
	if errors.Is(err, types.ErrNotFound) {
		if cerr := q.cache.ClearCartRef(ctx); cerr != nil {
			log.WithError(cerr).Error("failed to drop cart ref")
		}
		return types.Err(types.ErrMutationConflict, errors.Join(types.ErrCartReplaced, err), "cart %s no longer exists", cartID)
	}
	return surface(err, format, args...)
}

// commit records an acknowledged write.
func (q *MutationQueue) commit(ctx context.Context, m types.Mutation, prev types.CartRef, c types.Cart) {
	if c.Version <= prev.Version {
		log.WithFields(log.Fields{"cartID": c.ID, "previous": prev.Version, "version": c.Version}).Warn("cart version did not increase")
	}
	// The write stands; a stale ref is recovered by the conflict retry.
	if err := q.cache.SetCartRef(ctx, c.Ref()); err != nil {
		log.WithError(err).WithField("cartID", c.ID).Error("failed to cache cart ref")
	}
	log.WithFields(log.Fields{"cartID": c.ID, "version": c.Version, "op": m.Kind()}).Info("cart updated")
	q.notify(ctx, m, prev.ID, c)
}

func (q *MutationQueue) notify(ctx context.Context, m types.Mutation, prevID string, c types.Cart) {
	if q.onCommit != nil {
		q.onCommit(ctx, m, prevID, c)
	}
}

// resolveActive resolves the active cart with the current session token.
func (q *MutationQueue) resolveActive(ctx context.Context) (types.Cart, error) {
	token, err := q.tokens.CurrentToken(ctx)
	if err != nil {
		return types.Cart{}, err
	}
	c, err := q.resolver.EnsureActiveCart(ctx, token)
	dropRejectedToken(ctx, q.tokens, err)
	return c, err
}
