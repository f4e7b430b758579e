package memory

import (
	"cartsync/internal/types"
	"context"
	"sync"
)

// CartRepository implements ports.CartRepository in process memory.
type CartRepository struct {
	mu      sync.Mutex
	carts   map[string]types.Cart
	byOwner map[string][]string
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts:   make(map[string]types.Cart),
		byOwner: make(map[string][]string),
	}
}

func (r *CartRepository) Load(_ context.Context, cartID string) (*types.Cart, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok {
		return nil, 0, nil
	}
	out := c.Clone()
	return &out, c.Version, nil
}

func (r *CartRepository) ListByOwner(_ context.Context, owner string) ([]types.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byOwner[owner]
	out := make([]types.Cart, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.carts[id]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (r *CartRepository) UpsertCAS(_ context.Context, prevVersion int64, next types.Cart) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, exists := r.carts[next.ID]
	if prevVersion == 0 {
		if exists {
			return false, nil
		}
		r.carts[next.ID] = next.Clone()
		owner := next.Owner()
		r.byOwner[owner] = append(r.byOwner[owner], next.ID)
		return true, nil
	}
	if !exists || cur.Version != prevVersion {
		return false, nil
	}
	r.carts[next.ID] = next.Clone()
	return true, nil
}

func (r *CartRepository) DeleteCAS(_ context.Context, cartID string, prevVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, exists := r.carts[cartID]
	if !exists || cur.Version != prevVersion {
		return false, nil
	}
	delete(r.carts, cartID)
	owner := cur.Owner()
	ids := r.byOwner[owner]
	for i, id := range ids {
		if id == cartID {
			r.byOwner[owner] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return true, nil
}

func (r *CartRepository) ClearAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = make(map[string]types.Cart)
	r.byOwner = make(map[string][]string)
	return nil
}
