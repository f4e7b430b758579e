package ctp_test

import (
	"cartsync/internal/backends/memory"
	"cartsync/internal/ctp"
	"cartsync/internal/emulator"
	"cartsync/internal/types"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite

	platform *emulator.Platform
	srv      *httptest.Server
	client   *ctp.Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	catalog := emulator.DefaultCatalog()
	catalog.Clients = []types.APIClient{{ClientID: "storefront", ClientSecret: "s3cret"}}
	p, err := emulator.NewPlatform(catalog, memory.NewCartRepository())
	s.Require().NoError(err)
	s.platform = p
	s.srv = httptest.NewServer(emulator.NewHandler(p).Router())
	s.client = ctp.NewClient(types.StoreConfig{
		APIURL:       s.srv.URL + "/",
		ClientID:     "storefront",
		ClientSecret: "s3cret",
	}, nil)
}

func (s *ClientTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *ClientTestSuite) anonymous() string {
	sess, err := s.client.AnonymousSession(context.Background())
	s.Require().NoError(err)
	return sess.Token
}

func (s *ClientTestSuite) TestCartLifecycle() {
	ctx := context.Background()
	token := s.anonymous()

	c, err := s.client.CreateCart(ctx, token, types.CartDraft{Currency: "USD"})
	s.Require().NoError(err)
	s.Equal(int64(1), c.Version)

	qty := 2
	c, err = s.client.UpdateCart(ctx, token, c.ID, c.Version, []types.UpdateAction{
		{Action: types.ActionAddLineItem, ProductID: "espresso-beans", VariantID: 1, Quantity: &qty},
	})
	s.Require().NoError(err)
	s.Equal(int64(2), c.Version)
	s.Require().Len(c.LineItems, 1)
	s.Equal(int64(4900), c.TotalPrice.CentAmount)

	got, err := s.client.GetCart(ctx, token, c.ID)
	s.NoError(err)
	s.Equal(c.Version, got.Version)

	page, err := s.client.ListActiveCarts(ctx, token)
	s.NoError(err)
	s.Require().Len(page.Results, 1)
	s.Equal(c.ID, page.Results[0].ID)

	deleted, err := s.client.DeleteCart(ctx, token, c.ID, c.Version)
	s.NoError(err)
	s.Equal(types.CartStateDeleted, deleted.CartState)
}

func (s *ClientTestSuite) TestErrorMapping() {
	ctx := context.Background()
	token := s.anonymous()
	c, err := s.client.CreateCart(ctx, token, types.CartDraft{})
	s.Require().NoError(err)

	_, err = s.client.UpdateCart(ctx, token, c.ID, c.Version+4, []types.UpdateAction{{Action: types.ActionAddLineItem, ProductID: "espresso-beans"}})
	s.ErrorIs(err, types.ErrVersionConflict)

	_, err = s.client.GetCart(ctx, token, "missing")
	s.ErrorIs(err, types.ErrNotFound)

	_, err = s.client.UpdateCart(ctx, token, c.ID, c.Version, []types.UpdateAction{{Action: types.ActionAddLineItem, ProductID: "teapot"}})
	s.ErrorIs(err, types.ErrInvalidMutation)

	_, err = s.client.GetCart(ctx, "bogus", c.ID)
	s.ErrorIs(err, types.ErrSessionUnavailable)

	s.platform.InjectFailures(1)
	_, err = s.client.GetCart(ctx, token, c.ID)
	s.ErrorIs(err, types.ErrRemoteUnavailable)
}

func (s *ClientTestSuite) TestGrants() {
	ctx := context.Background()
	anon, err := s.client.AnonymousSession(ctx)
	s.Require().NoError(err)
	s.Equal(types.SessionAnonymous, anon.Kind)
	s.NotEmpty(anon.RefreshToken)
	s.False(anon.ExpiresAt.IsZero())

	cust, err := s.client.PasswordSession(ctx, "shopper@example.com", "secret")
	s.Require().NoError(err)
	s.Equal(types.SessionCustomer, cust.Kind)

	_, err = s.client.PasswordSession(ctx, "shopper@example.com", "wrong")
	s.ErrorIs(err, types.ErrSessionUnavailable)

	refreshed, err := s.client.RefreshSession(ctx, cust.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(cust.Token, refreshed.Token)
	s.Empty(refreshed.Kind)

	_, err = s.client.RefreshSession(ctx, "bogus")
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *ClientTestSuite) TestRejectsUnknownClient() {
	bad := ctp.NewClient(types.StoreConfig{APIURL: s.srv.URL, ClientID: "storefront", ClientSecret: "wrong"}, nil)
	_, err := bad.AnonymousSession(context.Background())
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *ClientTestSuite) TestUnreachablePlatform() {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := ctp.NewClient(types.StoreConfig{APIURL: srv.URL, ClientID: "storefront"}, nil)
	_, err := c.GetCart(context.Background(), "token", "c1")
	s.ErrorIs(err, types.ErrRemoteUnavailable)
}
