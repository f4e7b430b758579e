package api

import (
	"cartsync/internal/types"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func (s *APITestSuite) TestSearchCatalog() {
	q := url.Values{"filter": {"discounted:false", "price:range (1000 to *)"}}
	resp, content := s.do(http.MethodGet, "/catalog?"+q.Encode(), nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(content))

	var page types.ProductPage
	s.Require().NoError(json.Unmarshal(content, &page))
	s.Require().Len(page.Results, 1)
	s.Equal("espresso-beans", page.Results[0].ID)

	eb := s.failure(http.MethodGet, "/catalog?filter=colour:red", nil, nil, http.StatusBadRequest)
	s.Equal("invalid_input", eb.Error)
}

func (s *APITestSuite) TestSignUp() {
	anon := s.cart(http.MethodPost, "/cart/lines", map[string]any{"productId": "paper-filters"}, nil)
	email := uuid.NewString() + "@example.com"

	customer := s.cart(http.MethodPost, "/session/signup", map[string]any{"email": email, "password": "hunter22", "firstName": "Lin"}, nil)
	s.NotEqual(anon.Cart.CartID, customer.Cart.CartID)
	s.True(customer.Cart.Empty)

	s.shopper = uuid.NewString()
	eb := s.failure(http.MethodPost, "/session/signup", map[string]any{"email": email, "password": "hunter22"}, nil, http.StatusConflict)
	s.Equal("customer_exists", eb.Error)

	eb = s.failure(http.MethodPost, "/session/signup", map[string]any{"email": "not-an-address", "password": "hunter22"}, nil, http.StatusBadRequest)
	s.Equal("invalid_input", eb.Error)

	again := s.cart(http.MethodPost, "/session/login", map[string]any{"email": email, "password": "hunter22"}, nil)
	s.Equal(customer.Cart.CartID, again.Cart.CartID)
}
