package redis

import (
	"cartsync/internal/types"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	cartKeyNameTemplate  = "_cartsync_cart_%s"
	ownerKeyNameTemplate = "_cartsync_owner_%s" // list of cart ids in creation order
)

var errPrecondition = errors.New("precondition failed")

// CartRepository implements ports.CartRepository. Each cart is a JSON string; CAS runs in a
// WATCH/MULTI transaction on the cart key.
type CartRepository struct {
	cli *redis.Client
}

func NewCartRepository(cli *redis.Client) *CartRepository {
	return &CartRepository{cli: cli}
}

func (s *CartRepository) Load(ctx context.Context, cartID string) (*types.Cart, int64, error) {
	out := s.cli.Get(ctx, getCartKeyName(cartID))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, 0, nil
		}
		return nil, 0, out.Err()
	}
	var c types.Cart
	if err := json.Unmarshal([]byte(out.Val()), &c); err != nil {
		return nil, 0, fmt.Errorf("invalid cart %s: %w", cartID, err)
	}
	return &c, c.Version, nil
}

func (s *CartRepository) ListByOwner(ctx context.Context, owner string) ([]types.Cart, error) {
	ids, err := s.cli.LRange(ctx, getOwnerKeyName(owner), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	carts := make([]types.Cart, 0, len(ids))
	for _, id := range ids {
		c, _, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			carts = append(carts, *c)
		}
	}
	return carts, nil
}

// UpsertCAS writes next only if the stored version equals prevVersion.
// On create (prevVersion==0), the key must not exist.
func (s *CartRepository) UpsertCAS(ctx context.Context, prevVersion int64, next types.Cart) (bool, error) {
	key := getCartKeyName(next.ID)
	data, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	err = s.cli.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.currentVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != prevVersion {
			return errPrecondition
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(data), 0)
			if prevVersion == 0 {
				pipe.RPush(ctx, getOwnerKeyName(next.Owner()), next.ID)
			}
			return nil
		})
		return err
	}, key)
	return casResult(err)
}

func (s *CartRepository) DeleteCAS(ctx context.Context, cartID string, prevVersion int64) (bool, error) {
	key := getCartKeyName(cartID)
	err := s.cli.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errPrecondition
			}
			return err
		}
		var c types.Cart
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return fmt.Errorf("invalid cart %s: %w", cartID, err)
		}
		if c.Version != prevVersion {
			return errPrecondition
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.LRem(ctx, getOwnerKeyName(c.Owner()), 0, cartID)
			return nil
		})
		return err
	}, key)
	return casResult(err)
}

func (s *CartRepository) ClearAll(ctx context.Context) error {
	for _, pattern := range []string{getCartKeyName("*"), getOwnerKeyName("*")} {
		out := s.cli.Keys(ctx, pattern)
		if out.Err() != nil {
			return out.Err()
		}
		keys := out.Val()
		if len(keys) == 0 {
			continue
		}
		if err := s.cli.Del(ctx, keys...).Err(); err != nil {
			log.WithError(err).Error("failed to clear cart keys")
			return err
		}
	}
	return nil
}

func (s *CartRepository) currentVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	var c struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return 0, fmt.Errorf("invalid ver: %w", err)
	}
	return c.Version, nil
}

// casResult maps a lost WATCH race or a failed precondition to (false, nil).
func casResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errPrecondition), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}

func getCartKeyName(cartID string) string {
	return fmt.Sprintf(cartKeyNameTemplate, cartID)
}

func getOwnerKeyName(owner string) string {
	return fmt.Sprintf(ownerKeyNameTemplate, owner)
}
