package emulator

import (
	"cartsync/internal/types"
	"context"
)

func (s *PlatformTestSuite) search(filters ...string) types.ProductPage {
	page, err := s.p.SearchProducts(context.Background(), s.token, filters)
	s.Require().NoError(err)
	return page
}

func ids(page types.ProductPage) []string {
	out := make([]string, 0, len(page.Results))
	for _, p := range page.Results {
		out = append(out, p.ID)
	}
	return out
}

func (s *PlatformTestSuite) TestSearchProducts() {
	all := s.search()
	s.Equal([]string{"espresso-beans", "pour-over-kettle", "paper-filters"}, ids(all))
	s.Equal(3, all.Total)
	s.Equal(3, all.Count)

	kettle := all.Results[1]
	s.Require().Len(kettle.Variants, 2)
	s.Equal(int64(5900), kettle.Variants[0].Price.Value.CentAmount)
	s.Require().NotNil(kettle.Variants[0].Price.Discounted)
	s.Equal(int64(4900), kettle.Variants[0].Price.Effective().CentAmount)
	s.Nil(kettle.Variants[1].Price.Discounted)

	s.Equal([]string{"pour-over-kettle"}, ids(s.search(`name:"KETTLE"`)))
	s.Equal([]string{"espresso-beans", "paper-filters"}, ids(s.search(`id:"paper-filters","espresso-beans"`)))
	s.Equal([]string{"pour-over-kettle"}, ids(s.search("variants.scopedPriceDiscounted:true")))
	s.Equal([]string{"espresso-beans", "paper-filters"}, ids(s.search("discounted:false")))
	// the kettle's sale price is in range, its list price is not
	s.Equal([]string{"pour-over-kettle"}, ids(s.search("variants.price.centAmount:range (4000 to 5000)")))
	s.Equal([]string{"pour-over-kettle"}, ids(s.search("price:range (6000 to *)")))
	s.Equal([]string{"paper-filters"}, ids(s.search("price:range (* to 2000)", `name:"filters"`)))
	s.Empty(s.search(`name:"teapot"`).Results)
	s.Equal(9, s.p.Stats().Searches)
}

func (s *PlatformTestSuite) TestSearchRejectsMalformedFilters() {
	ctx := context.Background()
	for _, f := range []string{
		"no-field",
		"colour:red",
		"name:kettle",
		"discounted:maybe",
		"price:(0 to 10)",
		"price:range (0 10)",
		"price:range (a to 10)",
	} {
		_, err := s.p.SearchProducts(ctx, s.token, []string{f})
		s.ErrorIs(err, types.ErrInvalidInput, f)
	}

	_, err := s.p.SearchProducts(ctx, "bogus", nil)
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *PlatformTestSuite) TestCreateCustomer() {
	ctx := context.Background()
	draft := types.CustomerDraft{Email: "Ada@Example.com", Password: "analytical", FirstName: "Ada"}

	exists, err := s.p.CustomerExists(ctx, s.token, "ada@example.com")
	s.Require().NoError(err)
	s.False(exists)

	cu, err := s.p.CreateCustomer(ctx, s.token, draft)
	s.Require().NoError(err)
	s.NotEmpty(cu.ID)
	s.Equal("Ada@Example.com", cu.Email)
	s.Equal("Ada", cu.FirstName)

	exists, err = s.p.CustomerExists(ctx, s.token, "ada@example.com")
	s.Require().NoError(err)
	s.True(exists)

	page, err := s.p.QueryCustomers(ctx, s.token, "ADA@example.com")
	s.Require().NoError(err)
	s.Equal(1, page.Count)
	s.Equal(cu, page.Results[0])

	_, err = s.p.CreateCustomer(ctx, s.token, draft)
	s.ErrorIs(err, types.ErrCustomerExists)
	_, err = s.p.CreateCustomer(ctx, s.token, types.CustomerDraft{Email: "shopper@example.com", Password: "another"})
	s.ErrorIs(err, types.ErrCustomerExists)

	sess, err := s.p.PasswordSession(ctx, "ada@example.com", "analytical")
	s.Require().NoError(err)
	c, err := s.p.CreateCart(ctx, sess.Token, types.CartDraft{})
	s.Require().NoError(err)
	s.Equal(cu.ID, c.CustomerID)

	_, err = s.p.PasswordSession(ctx, "ada@example.com", "wrong")
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *PlatformTestSuite) TestCreateCustomerValidation() {
	ctx := context.Background()
	for _, d := range []types.CustomerDraft{
		{Password: "password"},
		{Email: "not-an-address", Password: "password"},
		{Email: "@example.com", Password: "password"},
		{Email: "ada@", Password: "password"},
		{Email: "ada@example.com", Password: "short"},
	} {
		_, err := s.p.CreateCustomer(ctx, s.token, d)
		s.ErrorIs(err, types.ErrInvalidInput, d.Email)
	}

	_, err := s.p.CreateCustomer(ctx, "bogus", types.CustomerDraft{Email: "ada@example.com", Password: "password"})
	s.ErrorIs(err, types.ErrSessionUnavailable)
}
