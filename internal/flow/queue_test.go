package flow

import (
	"cartsync/internal/types"
	"context"
	"time"
)

func (s *UnitTestSuite) TestVersionsIncreaseWithEveryWrite() {
	var last int64
	for i := 0; i < 4; i++ {
		res := s.add("espresso-beans", 1)
		s.Greater(res.Cart.Version, last)
		last = res.Cart.Version

		ref, ok := s.cachedRef()
		s.True(ok)
		s.Equal(res.Cart.Ref(), ref)
	}
	s.Equal(int64(5), last)
}

func (s *UnitTestSuite) TestConcurrentSubmitsAreSerialized() {
	ctx := context.Background()
	const n = 10
	results := make([]<-chan Result, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, s.engine.Submit(ctx, "", types.AddLine{ProductID: "espresso-beans", Quantity: 1}))
	}

	var final Result
	tickets := make(map[string]bool, n)
	for _, ch := range results {
		res := <-ch
		s.Require().NoError(res.Err)
		s.NotEmpty(res.Ticket)
		tickets[res.Ticket] = true
		if res.Cart.Version > final.Cart.Version {
			final = res
		}
	}
	s.Len(tickets, n)
	s.Require().Len(final.Cart.LineItems, 1)
	s.Equal(n, final.Cart.LineItems[0].Quantity)
	s.Equal(n, final.View.ItemCount)

	// no conflicts: every write went out with the version of the previous one
	s.Equal(n, s.platform.Stats().Updates)
	applied := s.platform.Applied()
	s.Require().Len(applied, n)
	for i, a := range applied {
		s.Equal(int64(i+2), a.Version)
	}
}

func (s *UnitTestSuite) TestConcurrentRemovalsAreSerialized() {
	ctx := context.Background()
	s.add("espresso-beans", 3)
	res := s.add("paper-filters", 2)
	beans, _ := res.Cart.LineForProduct("espresso-beans")
	filters, _ := res.Cart.LineForProduct("paper-filters")

	decrement := s.engine.Submit(ctx, "", types.RemoveLine{LineID: beans.ID, Quantity: 1})
	remove := s.engine.Submit(ctx, "", types.RemoveLine{LineID: filters.ID})
	add := s.engine.Submit(ctx, "", types.AddLine{ProductID: "espresso-beans"})

	d := <-decrement
	r := <-remove
	a := <-add
	s.Require().NoError(d.Err)
	s.Require().NoError(r.Err)
	s.Require().NoError(a.Err)
	s.Equal(res.Cart.Version+1, d.Cart.Version)
	s.Equal(res.Cart.Version+2, r.Cart.Version)
	s.Equal(res.Cart.Version+3, a.Cart.Version)

	s.Require().Len(a.Cart.LineItems, 1)
	s.Equal(beans.ID, a.Cart.LineItems[0].ID)
	s.Equal(3, a.Cart.LineItems[0].Quantity)
	s.Equal(3, a.View.ItemCount)
	s.Equal(5, s.platform.Stats().Updates)
}

func (s *UnitTestSuite) TestSubmitOutlivesCallerCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.engine.Submit(ctx, "", types.AddLine{ProductID: "paper-filters"})
	cancel()

	res := <-ch
	s.NoError(res.Err)
	s.Equal(int64(2), res.Cart.Version)
}

func (s *UnitTestSuite) TestApplyReturnsWhenCallerGivesUp() {
	s.add("paper-filters", 1)
	s.platform.SetLatency(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.engine.Apply(ctx, "", types.AddLine{ProductID: "paper-filters"})
	s.ErrorIs(err, context.DeadlineExceeded)

	s.engine.Close()
	ref, _ := s.cachedRef()
	s.Equal(int64(3), ref.Version)
}

func (s *UnitTestSuite) TestPanicReleasesLane() {
	ctx := context.Background()
	ch := s.engine.queue.enqueue(ctx, activeLane, "boom", func(ctx context.Context) (types.Cart, error) {
		panic("boom")
	})
	res := <-ch
	s.Error(res.Err)
	s.NotEmpty(res.Ticket)

	s.add("paper-filters", 1)
}

func (s *UnitTestSuite) TestSlowPlatformIsRemoteUnavailable() {
	ctx := context.Background()
	s.add("paper-filters", 1)

	s.engine.queue.timeout = 20 * time.Millisecond
	s.platform.SetLatency(200 * time.Millisecond)
	_, err := s.engine.Apply(ctx, "", types.AddLine{ProductID: "paper-filters"})
	s.ErrorIs(err, types.ErrRemoteUnavailable)

	s.platform.SetLatency(0)
	res, err := s.engine.Apply(ctx, "", types.AddLine{ProductID: "paper-filters"})
	s.Require().NoError(err)
	s.Equal(int64(3), res.Cart.Version)
	s.Equal(2, res.Cart.LineItems[0].Quantity)
}

func (s *UnitTestSuite) TestLaneForTargetsActiveCart() {
	ctx := context.Background()
	q := s.engine.queue
	s.Equal(activeLane, q.laneFor(ctx, ""))
	s.Equal(activeLane, q.laneFor(ctx, "unknown"))

	res := s.add("paper-filters", 1)
	s.Equal(activeLane, q.laneFor(ctx, res.Cart.ID))
	s.Equal("cart:other", q.laneFor(ctx, "other"))
}
