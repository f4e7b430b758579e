package flow

import (
	"cartsync/internal/types"
	"context"
)

func (s *UnitTestSuite) TestResolveCreatesCartOnce() {
	ctx := context.Background()
	first, err := s.engine.EnsureActiveCart(ctx)
	s.Require().NoError(err)
	s.Equal(int64(types.InitialCartVersion), first.Cart.Version)
	s.True(first.View.Empty)

	second, err := s.engine.EnsureActiveCart(ctx)
	s.Require().NoError(err)
	s.Equal(first.Cart.ID, second.Cart.ID)
	s.Equal(1, s.platform.Stats().Creates)

	ref, ok := s.cachedRef()
	s.True(ok)
	s.Equal(first.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestResolveAdoptsFirstListedCart() {
	ctx := context.Background()
	tok := s.token()
	older, err := s.platform.CreateCart(ctx, tok, types.CartDraft{})
	s.Require().NoError(err)
	_, err = s.platform.CreateCart(ctx, tok, types.CartDraft{})
	s.Require().NoError(err)

	res, err := s.engine.EnsureActiveCart(ctx)
	s.Require().NoError(err)
	s.Equal(older.ID, res.Cart.ID)
	s.Equal(2, s.platform.Stats().Creates)
}

func (s *UnitTestSuite) TestResolveFailureLeavesCacheUntouched() {
	s.platform.InjectFailures(1)
	_, err := s.engine.EnsureActiveCart(context.Background())
	s.ErrorIs(err, types.ErrRemoteUnavailable)
	_, ok := s.cachedRef()
	s.False(ok)
}

func (s *UnitTestSuite) TestViewResolvesThenReads() {
	ctx := context.Background()
	res, err := s.engine.View(ctx)
	s.Require().NoError(err)
	s.Equal(1, s.platform.Stats().Creates)

	again, err := s.engine.View(ctx)
	s.Require().NoError(err)
	s.Equal(res.Cart.ID, again.Cart.ID)
	s.Equal(1, s.platform.Stats().Gets)
	s.Equal(0, s.platform.Stats().Updates)
}

func (s *UnitTestSuite) TestLineForProduct() {
	s.add("paper-filters", 2)

	li, ok, err := s.engine.LineForProduct(context.Background(), "paper-filters")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(2, li.Quantity)

	_, ok, err = s.engine.LineForProduct(context.Background(), "espresso-beans")
	s.NoError(err)
	s.False(ok)
}
