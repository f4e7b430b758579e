package redis

import (
	"cartsync/internal/types"
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// RedisTestSuite needs a Redis server at TEST_REDIS_ADDR, e.g. localhost:46379.
type RedisTestSuite struct {
	suite.Suite

	cli   *redis.Client
	kv    *KVStore
	carts *CartRepository
}

func TestRedisTestSuite(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	suite.Run(t, &RedisTestSuite{cli: redis.NewClient(&redis.Options{Addr: addr})})
}

func (s *RedisTestSuite) SetupSuite() {
	s.kv = NewKVStore(s.cli)
	s.carts = NewCartRepository(s.cli)
}

func (s *RedisTestSuite) TearDownSuite() {
	_ = s.cli.Close()
}

func (s *RedisTestSuite) SetupTest() {
	s.NoError(s.carts.ClearAll(context.Background()))
}

func (s *RedisTestSuite) TestKVStore() {
	ctx := context.Background()
	s.NoError(s.kv.Set(ctx, "shopper:cart-id", "c1"))
	v, ok, err := s.kv.Get(ctx, "shopper:cart-id")
	s.NoError(err)
	s.True(ok)
	s.Equal("c1", v)

	s.NoError(s.kv.Delete(ctx, "shopper:cart-id"))
	exists, err := s.kv.Exists(ctx, "shopper:cart-id")
	s.NoError(err)
	s.False(exists)
}

func (s *RedisTestSuite) TestCartRepositoryCAS() {
	ctx := context.Background()
	c := types.Cart{ID: "c1", Version: 1, AnonymousID: "anon", CreatedAt: time.Now().UTC()}

	ok, err := s.carts.UpsertCAS(ctx, 0, c)
	s.NoError(err)
	s.True(ok)
	ok, err = s.carts.UpsertCAS(ctx, 0, c)
	s.NoError(err)
	s.False(ok)

	c.Version = 2
	ok, err = s.carts.UpsertCAS(ctx, 1, c)
	s.NoError(err)
	s.True(ok)
	ok, err = s.carts.UpsertCAS(ctx, 1, c)
	s.NoError(err)
	s.False(ok)

	carts, err := s.carts.ListByOwner(ctx, "anon")
	s.NoError(err)
	s.Require().Len(carts, 1)
	s.Equal(int64(2), carts[0].Version)

	ok, err = s.carts.DeleteCAS(ctx, "c1", 2)
	s.NoError(err)
	s.True(ok)
	got, _, err := s.carts.Load(ctx, "c1")
	s.NoError(err)
	s.Nil(got)
}
