package flow

import (
	"cartsync/internal/types"
	"context"
	"time"
)

func (s *UnitTestSuite) TestLoginSwitchesToCustomerCart() {
	ctx := context.Background()
	anon := s.add("espresso-beans", 1)

	res, err := s.engine.Login(ctx, "shopper@example.com", "secret")
	s.Require().NoError(err)
	s.NotEqual(anon.Cart.ID, res.Cart.ID)
	s.Equal("customer-1", res.Cart.CustomerID)

	ref, _ := s.cachedRef()
	s.Equal(res.Cart.Ref(), ref)

	next := s.add("paper-filters", 1)
	s.Equal(res.Cart.ID, next.Cart.ID)
}

func (s *UnitTestSuite) TestLoginWaitsForQueuedWrites() {
	ctx := context.Background()
	s.platform.SetLatency(50 * time.Millisecond)

	first := s.engine.Submit(ctx, "", types.AddLine{ProductID: "espresso-beans"})
	second := s.engine.Submit(ctx, "", types.AddLine{ProductID: "paper-filters"})
	time.Sleep(10 * time.Millisecond)

	login, err := s.engine.Login(ctx, "shopper@example.com", "secret")
	s.Require().NoError(err)

	f := <-first
	sec := <-second
	s.Require().NoError(f.Err)
	s.Require().NoError(sec.Err)
	s.Equal(f.Cart.ID, sec.Cart.ID)
	s.Len(sec.Cart.LineItems, 2)
	s.Empty(sec.Cart.CustomerID)

	s.NotEqual(sec.Cart.ID, login.Cart.ID)
	s.Equal("customer-1", login.Cart.CustomerID)
	ref, _ := s.cachedRef()
	s.Equal(login.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestLoginWithBadPasswordKeepsSession() {
	ctx := context.Background()
	anon := s.add("espresso-beans", 1)
	tok := s.token()

	_, err := s.engine.Login(ctx, "shopper@example.com", "wrong")
	s.ErrorIs(err, types.ErrSessionUnavailable)
	s.Equal(tok, s.token())

	ref, _ := s.cachedRef()
	s.Equal(anon.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestEnginesAreIsolatedByShopper() {
	ctx := context.Background()
	mine := s.add("espresso-beans", 1)

	other := NewEngine("shopper-2", testConfig(), Deps{KV: s.kv, Carts: s.platform, Issuer: s.platform})
	defer other.Close()
	res, err := other.Apply(ctx, "", types.AddLine{ProductID: "paper-filters"})
	s.Require().NoError(err)
	s.NotEqual(mine.Cart.ID, res.Cart.ID)

	ref, _ := s.cachedRef()
	s.Equal(mine.Cart.Ref(), ref)
}
