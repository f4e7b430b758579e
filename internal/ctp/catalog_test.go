package ctp_test

import (
	"cartsync/internal/types"
	"context"
)

func (s *ClientTestSuite) TestSearchProducts() {
	ctx := context.Background()
	token := s.anonymous()

	page, err := s.client.SearchProducts(ctx, token, nil)
	s.Require().NoError(err)
	s.Equal(3, page.Total)

	page, err = s.client.SearchProducts(ctx, token, []string{
		`variants.price.centAmount:range (0 to 2500)`,
		`name:"beans & more","filters"`,
	})
	s.Require().NoError(err)
	s.Require().Len(page.Results, 1)
	s.Equal("paper-filters", page.Results[0].ID)
	s.Equal(int64(699), page.Results[0].Variants[0].Price.Value.CentAmount)

	page, err = s.client.SearchProducts(ctx, token, []string{"variants.scopedPriceDiscounted:true"})
	s.Require().NoError(err)
	s.Require().Len(page.Results, 1)
	s.True(page.Results[0].Discounted())

	_, err = s.client.SearchProducts(ctx, token, []string{"colour:red"})
	s.ErrorIs(err, types.ErrInvalidInput)

	_, err = s.client.SearchProducts(ctx, "bogus", nil)
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *ClientTestSuite) TestCustomers() {
	ctx := context.Background()
	token := s.anonymous()
	draft := types.CustomerDraft{Email: "grace+test@example.com", Password: "cobol1959", LastName: "Hopper"}

	exists, err := s.client.CustomerExists(ctx, token, draft.Email)
	s.Require().NoError(err)
	s.False(exists)

	cu, err := s.client.CreateCustomer(ctx, token, draft)
	s.Require().NoError(err)
	s.NotEmpty(cu.ID)
	s.Equal("Hopper", cu.LastName)

	exists, err = s.client.CustomerExists(ctx, token, draft.Email)
	s.Require().NoError(err)
	s.True(exists)

	_, err = s.client.CreateCustomer(ctx, token, draft)
	s.ErrorIs(err, types.ErrCustomerExists)

	_, err = s.client.CreateCustomer(ctx, token, types.CustomerDraft{Email: "nobody", Password: "cobol1959"})
	s.ErrorIs(err, types.ErrInvalidInput)

	sess, err := s.client.PasswordSession(ctx, draft.Email, draft.Password)
	s.Require().NoError(err)
	s.Equal(types.SessionCustomer, sess.Kind)
}
