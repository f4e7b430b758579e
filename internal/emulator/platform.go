// Package emulator is a self-contained commerce platform: version-checked carts priced from a YAML
// catalog, product search, customer sign-up, and anonymous, password and refresh token grants. It backs `cartsync emulate` and the
// engine's tests.
package emulator

import (
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTokenLifetime = 48 * time.Hour
	pageLimit            = 20
)

// Stats counts the calls the platform served, by operation.
type Stats struct {
	Creates   int
	Lists     int
	Gets      int
	Updates   int
	Deletes   int
	Tokens    int
	Searches  int
	Customers int
}

// AppliedUpdate is one acknowledged cart update, in the order the platform committed them.
type AppliedUpdate struct {
	CartID  string
	Version int64
	Actions []types.UpdateAction
}

type grant struct {
	owner    string
	customer bool
	expires  time.Time
}

// Platform implements ports.CartService, ports.CatalogService, ports.CustomerService and
// ports.TokenIssuer in process.
type Platform struct {
	repo     ports.CartRepository
	catalog  types.Catalog
	products map[string]types.Product
	codes    map[string]types.DiscountCode
	lifetime time.Duration

	mu        sync.Mutex
	customers map[string]types.Customer
	tokens    map[string]grant
	refresh   map[string]grant
	stats     Stats
	applied   []AppliedUpdate
	conflicts int
	failures  int
	latency   time.Duration
	now       func() time.Time
}

func NewPlatform(catalog types.Catalog, repo ports.CartRepository) (*Platform, error) {
	if catalog.Currency == "" {
		catalog.Currency = types.DefaultCurrency
	}
	if err := catalog.Validate(); err != nil {
		return nil, types.Err(types.ErrInvalidConfig, err, "")
	}
	p := &Platform{
		repo:      repo,
		catalog:   catalog,
		products:  make(map[string]types.Product, len(catalog.Products)),
		codes:     make(map[string]types.DiscountCode, len(catalog.DiscountCodes)),
		lifetime:  DefaultTokenLifetime,
		customers: make(map[string]types.Customer, len(catalog.Customers)),
		tokens:    make(map[string]grant),
		refresh:   make(map[string]grant),
		now:       time.Now,
	}
	if catalog.TokenLifetimeSeconds > 0 {
		p.lifetime = time.Duration(catalog.TokenLifetimeSeconds) * time.Second
	}
	for _, pr := range catalog.Products {
		p.products[pr.ID] = pr
	}
	for _, dc := range catalog.DiscountCodes {
		p.codes[dc.Code] = dc
	}
	for _, cu := range catalog.Customers {
		if cu.ID == "" {
			cu.ID = cu.Email
		}
		p.customers[emailKey(cu.Email)] = cu
	}
	return p, nil
}

func (p *Platform) Catalog() types.Catalog {
	return p.catalog
}

// SetNowFn overrides the clock. Used in tests.
func (p *Platform) SetNowFn(f func() time.Time) {
	p.mu.Lock()
	p.now = f
	p.mu.Unlock()
}

// InjectConflicts makes the next n updates or deletes fail with a version conflict, as if another
// writer had committed first.
func (p *Platform) InjectConflicts(n int) {
	p.mu.Lock()
	p.conflicts = n
	p.mu.Unlock()
}

// InjectFailures makes the next n cart calls fail as unavailable.
func (p *Platform) InjectFailures(n int) {
	p.mu.Lock()
	p.failures = n
	p.mu.Unlock()
}

// SetLatency delays every cart call by d, honouring the caller's context.
func (p *Platform) SetLatency(d time.Duration) {
	p.mu.Lock()
	p.latency = d
	p.mu.Unlock()
}

func (p *Platform) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Applied returns the acknowledged updates in commit order.
func (p *Platform) Applied() []AppliedUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AppliedUpdate(nil), p.applied...)
}

// Revoke invalidates an access token.
func (p *Platform) Revoke(token string) {
	p.mu.Lock()
	delete(p.tokens, token)
	p.mu.Unlock()
}

func (p *Platform) clock() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now()
}

// enter authenticates the token, counts the call and applies the injected latency and failures.
func (p *Platform) enter(ctx context.Context, token string, count *int) (grant, error) {
	p.mu.Lock()
	*count++
	latency := p.latency
	fail := p.failures > 0
	if fail {
		p.failures--
	}
	g, ok := p.tokens[token]
	now := p.now()
	p.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return grant{}, types.Err(types.ErrRemoteUnavailable, ctx.Err(), "")
		}
	}
	if fail {
		return grant{}, types.Err(types.ErrRemoteUnavailable, nil, "injected failure")
	}
	if !ok || !now.Before(g.expires) {
		return grant{}, types.Err(types.ErrSessionUnavailable, nil, "invalid or expired token")
	}
	return g, nil
}

func (p *Platform) takeConflict() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conflicts > 0 {
		p.conflicts--
		return true
	}
	return false
}

func (p *Platform) CreateCart(ctx context.Context, token string, draft types.CartDraft) (types.Cart, error) {
	g, err := p.enter(ctx, token, &p.stats.Creates)
	if err != nil {
		return types.Cart{}, err
	}
	currency := draft.Currency
	if currency == "" {
		currency = p.catalog.Currency
	}
	if currency != p.catalog.Currency {
		return types.Cart{}, types.Err(types.ErrInvalidMutation, nil, "currency %s is not sold here", currency)
	}
	c := types.Cart{
		ID:            uuid.NewString(),
		Version:       types.InitialCartVersion,
		CartState:     types.CartStateActive,
		LineItems:     []types.LineItem{},
		TotalPrice:    types.Money{CurrencyCode: currency},
		DiscountCodes: []types.DiscountCodeInfo{},
		CreatedAt:     p.clock().UTC(),
	}
	if g.customer {
		c.CustomerID = g.owner
	} else {
		c.AnonymousID = g.owner
	}
	ok, err := p.repo.UpsertCAS(ctx, 0, c)
	if err != nil {
		return types.Cart{}, types.Err(types.ErrRemoteUnavailable, err, "store cart")
	}
	if !ok {
		return types.Cart{}, types.Err(types.ErrVersionConflict, nil, "cart %s already exists", c.ID)
	}
	log.WithFields(log.Fields{"cartID": c.ID, "owner": g.owner}).Debug("emulator: cart created")
	return c, nil
}

func (p *Platform) ListActiveCarts(ctx context.Context, token string) (types.CartPage, error) {
	g, err := p.enter(ctx, token, &p.stats.Lists)
	if err != nil {
		return types.CartPage{}, err
	}
	carts, err := p.repo.ListByOwner(ctx, g.owner)
	if err != nil {
		return types.CartPage{}, types.Err(types.ErrRemoteUnavailable, err, "list carts")
	}
	results := make([]types.Cart, 0, len(carts))
	for _, c := range carts {
		if c.CartState == types.CartStateActive {
			results = append(results, c)
		}
	}
	total := len(results)
	if len(results) > pageLimit {
		results = results[:pageLimit]
	}
	return types.CartPage{Limit: pageLimit, Count: len(results), Total: total, Results: results}, nil
}

func (p *Platform) GetCart(ctx context.Context, token, cartID string) (types.Cart, error) {
	g, err := p.enter(ctx, token, &p.stats.Gets)
	if err != nil {
		return types.Cart{}, err
	}
	c, _, err := p.load(ctx, g, cartID)
	return c, err
}

func (p *Platform) UpdateCart(ctx context.Context, token, cartID string, version int64, actions []types.UpdateAction) (types.Cart, error) {
	g, err := p.enter(ctx, token, &p.stats.Updates)
	if err != nil {
		return types.Cart{}, err
	}
	cur, ver, err := p.load(ctx, g, cartID)
	if err != nil {
		return types.Cart{}, err
	}
	if ver != version || p.takeConflict() {
		return types.Cart{}, conflict(cartID, version, ver)
	}
	if len(actions) == 0 {
		return types.Cart{}, types.Err(types.ErrInvalidMutation, nil, "no update actions")
	}

	next := cur.Clone()
	for _, a := range actions {
		if err := p.apply(&next, a); err != nil {
			return types.Cart{}, err
		}
	}
	p.reprice(&next)
	next.Version = ver + 1

	ok, err := p.repo.UpsertCAS(ctx, ver, next)
	if err != nil {
		return types.Cart{}, types.Err(types.ErrRemoteUnavailable, err, "store cart")
	}
	if !ok {
		// Another writer committed between load and store.
		return types.Cart{}, conflict(cartID, version, ver+1)
	}
	p.mu.Lock()
	p.applied = append(p.applied, AppliedUpdate{CartID: cartID, Version: next.Version, Actions: actions})
	p.mu.Unlock()
	return next, nil
}

func (p *Platform) DeleteCart(ctx context.Context, token, cartID string, version int64) (types.Cart, error) {
	g, err := p.enter(ctx, token, &p.stats.Deletes)
	if err != nil {
		return types.Cart{}, err
	}
	cur, ver, err := p.load(ctx, g, cartID)
	if err != nil {
		return types.Cart{}, err
	}
	if ver != version || p.takeConflict() {
		return types.Cart{}, conflict(cartID, version, ver)
	}
	ok, err := p.repo.DeleteCAS(ctx, cartID, ver)
	if err != nil {
		return types.Cart{}, types.Err(types.ErrRemoteUnavailable, err, "delete cart")
	}
	if !ok {
		return types.Cart{}, conflict(cartID, version, ver+1)
	}
	cur.CartState = types.CartStateDeleted
	return cur, nil
}

// load returns the cart if it exists and belongs to the grant's owner.
func (p *Platform) load(ctx context.Context, g grant, cartID string) (types.Cart, int64, error) {
	c, ver, err := p.repo.Load(ctx, cartID)
	if err != nil {
		return types.Cart{}, 0, types.Err(types.ErrRemoteUnavailable, err, "load cart")
	}
	if c == nil || c.Owner() != g.owner {
		return types.Cart{}, 0, types.Err(types.ErrNotFound, nil, "cart %s not found", cartID)
	}
	return *c, ver, nil
}

// VersionConflictError carries the cart's current version so the HTTP layer can report it.
type VersionConflictError struct {
	CartID         string
	Given          int64
	CurrentVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("cart %s: version %d does not match current version %d", e.CartID, e.Given, e.CurrentVersion)
}

func conflict(cartID string, given, current int64) error {
	return types.Err(types.ErrVersionConflict, &VersionConflictError{CartID: cartID, Given: given, CurrentVersion: current}, "")
}
