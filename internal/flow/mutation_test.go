package flow

import (
	"cartsync/internal/pub"
	"cartsync/internal/types"
	"context"
)

func (s *UnitTestSuite) TestStaleVersionRetriesOnce() {
	ctx := context.Background()
	res := s.add("espresso-beans", 1)

	// another tab of the same shopper writes first
	qty := 1
	_, err := s.platform.UpdateCart(ctx, s.token(), res.Cart.ID, res.Cart.Version, []types.UpdateAction{
		{Action: types.ActionAddLineItem, ProductID: "paper-filters", VariantID: 1, Quantity: &qty},
	})
	s.Require().NoError(err)

	next := s.add("espresso-beans", 1)
	s.Equal(int64(4), next.Cart.Version)
	s.Len(next.Cart.LineItems, 2)
	s.Equal(1, s.platform.Stats().Gets)

	ref, _ := s.cachedRef()
	s.Equal(next.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestConflictSurvivingRetryFails() {
	ctx := context.Background()
	res := s.add("espresso-beans", 1)

	s.platform.InjectConflicts(2)
	_, err := s.engine.Apply(ctx, "", types.AddLine{ProductID: "espresso-beans"})
	s.ErrorIs(err, types.ErrMutationConflict)
	s.Equal(1, s.platform.Stats().Gets)

	// the refetched ref is kept
	ref, ok := s.cachedRef()
	s.True(ok)
	s.Equal(res.Cart.Ref(), ref)

	next := s.add("espresso-beans", 1)
	s.Equal(int64(3), next.Cart.Version)
	s.Equal(2, next.Cart.LineItems[0].Quantity)
}

func (s *UnitTestSuite) TestRemoveLine() {
	ctx := context.Background()
	res := s.add("espresso-beans", 3)
	lineID := res.Cart.LineItems[0].ID

	res, err := s.engine.Apply(ctx, "", types.RemoveLine{LineID: lineID, Quantity: 1})
	s.Require().NoError(err)
	s.Equal(2, res.Cart.LineItems[0].Quantity)

	res, err = s.engine.Apply(ctx, "", types.RemoveLine{LineID: lineID, Quantity: 5})
	s.Require().NoError(err)
	s.Empty(res.Cart.LineItems)
	s.True(res.View.Empty)

	res = s.add("espresso-beans", 3)
	res, err = s.engine.Apply(ctx, "", types.RemoveLine{LineID: res.Cart.LineItems[0].ID})
	s.Require().NoError(err)
	s.Empty(res.Cart.LineItems)
}

func (s *UnitTestSuite) TestRejectedMutations() {
	ctx := context.Background()
	res := s.add("espresso-beans", 1)

	_, err := s.engine.Apply(ctx, "", types.RemoveLine{LineID: "no-such-line"})
	s.ErrorIs(err, types.ErrInvalidMutation)
	_, err = s.engine.Apply(ctx, "", types.ApplyPromo{Code: "BOGUS"})
	s.ErrorIs(err, types.ErrInvalidMutation)
	_, err = s.engine.Apply(ctx, "", types.AddLine{})
	s.ErrorIs(err, types.ErrInvalidMutation)

	ref, _ := s.cachedRef()
	s.Equal(res.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestApplyPromo() {
	ctx := context.Background()
	s.add("espresso-beans", 2)
	res, err := s.engine.Apply(ctx, "", types.ApplyPromo{Code: "WELCOME10"})
	s.Require().NoError(err)
	s.Equal([]string{"WELCOME10"}, res.View.DiscountCodes)
	s.Equal(int64(2*2205), res.Cart.TotalPrice.CentAmount)
	s.True(res.View.Lines[0].Discounted)
}

func (s *UnitTestSuite) TestClearReplacesCart() {
	ctx := context.Background()
	s.add("espresso-beans", 2)
	old := s.add("paper-filters", 1)
	s.Require().Len(old.Cart.LineItems, 2)

	res, err := s.engine.Apply(ctx, "", types.ClearCart{})
	s.Require().NoError(err)
	s.NotEqual(old.Cart.ID, res.Cart.ID)
	s.Equal(int64(types.InitialCartVersion), res.Cart.Version)
	s.Empty(res.Cart.LineItems)
	s.True(res.View.Empty)
	s.Equal(0, res.View.ItemCount)

	ref, _ := s.cachedRef()
	s.Equal(res.Cart.Ref(), ref)

	_, err = s.platform.GetCart(ctx, s.token(), old.Cart.ID)
	s.ErrorIs(err, types.ErrNotFound)

	_, err = s.engine.Apply(ctx, old.Cart.ID, types.AddLine{ProductID: "espresso-beans"})
	s.ErrorIs(err, types.ErrMutationConflict)
	s.ErrorIs(err, types.ErrCartReplaced)
}

func (s *UnitTestSuite) TestClearStaysOrderedWithQueuedWrites() {
	ctx := context.Background()
	before := s.engine.Submit(ctx, "", types.AddLine{ProductID: "espresso-beans", Quantity: 2})
	replace := s.engine.Submit(ctx, "", types.ClearCart{})
	after := s.engine.Submit(ctx, "", types.AddLine{ProductID: "paper-filters"})

	b := <-before
	c := <-replace
	a := <-after
	s.Require().NoError(b.Err)
	s.Require().NoError(c.Err)
	s.Require().NoError(a.Err)

	s.NotEqual(b.Cart.ID, c.Cart.ID)
	s.Equal(c.Cart.ID, a.Cart.ID)
	s.Require().Len(a.Cart.LineItems, 1)
	s.Equal("paper-filters", a.Cart.LineItems[0].ProductID)
}

func (s *UnitTestSuite) TestClearRetriesDeleteConflictOnce() {
	ctx := context.Background()
	old := s.add("espresso-beans", 1)

	s.platform.InjectConflicts(1)
	res, err := s.engine.Apply(ctx, "", types.ClearCart{})
	s.Require().NoError(err)
	s.NotEqual(old.Cart.ID, res.Cart.ID)
	s.Equal(1, s.platform.Stats().Gets)
	s.Equal(2, s.platform.Stats().Deletes)
}

func (s *UnitTestSuite) TestDeletedCartIsResolvedAgain() {
	ctx := context.Background()
	old := s.add("espresso-beans", 1)
	_, err := s.platform.DeleteCart(ctx, s.token(), old.Cart.ID, old.Cart.Version)
	s.Require().NoError(err)

	_, err = s.engine.Apply(ctx, "", types.AddLine{ProductID: "espresso-beans"})
	s.ErrorIs(err, types.ErrMutationConflict)
	s.ErrorIs(err, types.ErrCartReplaced)
	_, ok := s.cachedRef()
	s.False(ok)

	res := s.add("espresso-beans", 1)
	s.NotEqual(old.Cart.ID, res.Cart.ID)
	s.Equal(int64(2), res.Cart.Version)
}

func (s *UnitTestSuite) TestRejectedTokenIsRenewed() {
	ctx := context.Background()
	res := s.add("espresso-beans", 1)
	s.platform.Revoke(s.token())

	_, err := s.engine.Apply(ctx, "", types.AddLine{ProductID: "espresso-beans"})
	s.ErrorIs(err, types.ErrSessionUnavailable)

	// the refresh token still belongs to the same anonymous shopper
	next := s.add("espresso-beans", 1)
	s.Equal(res.Cart.ID, next.Cart.ID)
	s.Equal(2, next.Cart.LineItems[0].Quantity)
}

func (s *UnitTestSuite) TestEventsPublishedForAcknowledgedWrites() {
	ctx := context.Background()
	old := s.add("espresso-beans", 1)
	_, err := s.engine.Apply(ctx, "", types.RemoveLine{LineID: "no-such-line"})
	s.Error(err)
	cleared, err := s.engine.Apply(ctx, "", types.ClearCart{})
	s.Require().NoError(err)

	events := s.published.events()
	s.Require().Len(events, 2)

	s.Equal(pub.EventCartUpdated, events[0].Type)
	s.Equal(TestShopper, events[0].Shopper)
	s.Equal(old.Cart.ID, events[0].CartID)
	s.Equal(int64(2), events[0].Version)
	s.Equal("add_line", events[0].Mutation)
	s.Equal(s.now.Unix(), events[0].At)
	snap, err := pub.DecodeSnapshot(events[0].Snapshot)
	s.Require().NoError(err)
	s.Equal(old.Cart.ID, snap.ID)
	s.Len(snap.LineItems, 1)

	s.Equal(pub.EventCartCleared, events[1].Type)
	s.Equal(cleared.Cart.ID, events[1].CartID)
	s.Equal(old.Cart.ID, events[1].ReplacedCartID)
}
