package flow

import (
	"cartsync/internal/types"
	"context"
)

func (s *UnitTestSuite) TestSearch() {
	ctx := context.Background()

	page, err := s.engine.Search(ctx, []string{`name:"KETTLE"`})
	s.Require().NoError(err)
	s.Require().Len(page.Results, 1)
	s.Equal("pour-over-kettle", page.Results[0].ID)
	s.Equal(1, page.Total)

	_, err = s.engine.Search(ctx, []string{"price:cheap"})
	s.ErrorIs(err, types.ErrInvalidInput)
	s.Equal("invalid_input", types.Kind(err))

	s.platform.InjectFailures(1)
	_, err = s.engine.Search(ctx, nil)
	s.ErrorIs(err, types.ErrRemoteUnavailable)
}

func (s *UnitTestSuite) TestSignUpSwitchesToNewCustomerCart() {
	ctx := context.Background()
	anon := s.add("espresso-beans", 1)

	res, err := s.engine.SignUp(ctx, types.CustomerDraft{Email: "ada@example.com", Password: "engine1843", FirstName: "Ada"})
	s.Require().NoError(err)
	s.NotEqual(anon.Cart.ID, res.Cart.ID)
	s.NotEmpty(res.Cart.CustomerID)
	s.NotEqual("customer-1", res.Cart.CustomerID)

	ref, _ := s.cachedRef()
	s.Equal(res.Cart.Ref(), ref)
	s.Equal(2, s.platform.Stats().Customers)
}

func (s *UnitTestSuite) TestSignUpWithRegisteredEmailKeepsSession() {
	ctx := context.Background()
	anon := s.add("espresso-beans", 1)
	tok := s.token()

	_, err := s.engine.SignUp(ctx, types.CustomerDraft{Email: "Shopper@Example.com", Password: "secret"})
	s.ErrorIs(err, types.ErrCustomerExists)
	s.Equal(tok, s.token())

	ref, _ := s.cachedRef()
	s.Equal(anon.Cart.Ref(), ref)
}

func (s *UnitTestSuite) TestSignUpRejectsInvalidDraft() {
	before := s.platform.Stats().Customers
	_, err := s.engine.SignUp(context.Background(), types.CustomerDraft{Email: "ada@example.com", Password: "123"})
	s.ErrorIs(err, types.ErrInvalidInput)
	s.Equal(before, s.platform.Stats().Customers)
}
