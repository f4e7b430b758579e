package flow

import (
	"cartsync/internal/cache"
	"cartsync/internal/ports"
	"cartsync/internal/pub"
	"cartsync/internal/session"
	"cartsync/internal/types"
	"cartsync/internal/view"
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators of an Engine. Catalog, Customers and Events are optional.
type Deps struct {
	KV        ports.KVStore
	Carts     ports.CartService
	Issuer    ports.TokenIssuer
	Catalog   ports.CatalogService
	Customers ports.CustomerService
	Events    *pub.Events
}

// Engine is the cart synchronization engine of one shopper. All cart writes go through its
// MutationQueue; reads go straight to the platform.
type Engine struct {
	shopper   string
	cache     *cache.Store
	session   *session.Provider
	carts     ports.CartService
	catalog   ports.CatalogService
	customers ports.CustomerService
	queue     *MutationQueue
	events    *pub.Events
}

// NewEngine builds the engine of shopper. The shopper id namespaces its keys in the KV store.
func NewEngine(shopper string, cfg types.StoreConfig, deps Deps) *Engine {
	cfg = cfg.WithDefaults()
	store := cache.New(deps.KV, shopper)
	sp := session.NewProvider(store, deps.Issuer, cfg.TokenSkew())
	e := &Engine{
		shopper:   shopper,
		cache:     store,
		session:   sp,
		carts:     deps.Carts,
		catalog:   deps.Catalog,
		customers: deps.Customers,
		queue:     NewMutationQueue(store, sp, deps.Carts, cfg),
		events:    deps.Events,
	}
	if e.events != nil {
		e.queue.OnCommit(e.publish)
	}
	return e
}

func (e *Engine) Session() *session.Provider {
	return e.session
}

// EnsureActiveCart resolves the shopper's active cart and caches its ref.
func (e *Engine) EnsureActiveCart(ctx context.Context) (Result, error) {
	return e.queue.Resolve(ctx)
}

// Submit queues m and returns the channel its Result arrives on. See MutationQueue.Enqueue.
func (e *Engine) Submit(ctx context.Context, cartID string, m types.Mutation) <-chan Result {
	return e.queue.Enqueue(ctx, cartID, m)
}

// Apply queues m and waits for its Result.
func (e *Engine) Apply(ctx context.Context, cartID string, m types.Mutation) (Result, error) {
	return e.queue.Apply(ctx, cartID, m)
}

// Login signs the customer in and resolves the customer's active cart. The sign-in is queued
// behind the shopper's pending writes.
func (e *Engine) Login(ctx context.Context, email, password string) (Result, error) {
	return e.queue.Relogin(ctx, func(ctx context.Context) error {
		_, err := e.session.Login(ctx, email, password)
		return err
	})
}

// SignUp registers a new customer, then signs the customer in like Login. An email that is already
// registered fails with types.ErrCustomerExists and leaves the session alone.
func (e *Engine) SignUp(ctx context.Context, draft types.CustomerDraft) (Result, error) {
	if e.customers == nil {
		return Result{}, types.Err(types.ErrInvalidConfig, nil, "no customer service configured")
	}
	if err := draft.Validate(); err != nil {
		return Result{}, types.Err(types.ErrInvalidInput, err, "")
	}
	exists, err := authorized(ctx, e.session, e.queue.timeout, func(ctx context.Context, token string) (bool, error) {
		return e.customers.CustomerExists(ctx, token, draft.Email)
	})
	if err != nil {
		return Result{}, surface(err, "look up customer %s", draft.Email)
	}
	if exists {
		return Result{}, types.Err(types.ErrCustomerExists, nil, "customer %s is already registered", draft.Email)
	}
	cu, err := authorized(ctx, e.session, e.queue.timeout, func(ctx context.Context, token string) (types.CustomerInfo, error) {
		return e.customers.CreateCustomer(ctx, token, draft)
	})
	if err != nil {
		return Result{}, surface(err, "create customer %s", draft.Email)
	}
	log.WithFields(log.Fields{"shopper": e.shopper, "customerID": cu.ID}).Info("customer registered")
	return e.Login(ctx, draft.Email, draft.Password)
}

// Search lists the products matching every filter. It needs no lane.
func (e *Engine) Search(ctx context.Context, filters []string) (types.ProductPage, error) {
	if e.catalog == nil {
		return types.ProductPage{}, types.Err(types.ErrInvalidConfig, nil, "no catalog service configured")
	}
	page, err := authorized(ctx, e.session, e.queue.timeout, func(ctx context.Context, token string) (types.ProductPage, error) {
		return e.catalog.SearchProducts(ctx, token, filters)
	})
	if err != nil {
		return types.ProductPage{}, surface(err, "search products")
	}
	return page, nil
}

// View reads the active cart without taking the lane. With no usable cached ref it resolves the
// cart first.
func (e *Engine) View(ctx context.Context) (Result, error) {
	ref, ok, err := e.cache.CartRef(ctx)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return e.EnsureActiveCart(ctx)
	}
	c, err := authorized(ctx, e.session, e.queue.timeout, func(ctx context.Context, token string) (types.Cart, error) {
		return e.carts.GetCart(ctx, token, ref.ID)
	})
	if errors.Is(err, types.ErrNotFound) {
		log.WithField("cartID", ref.ID).Info("cached cart is gone, resolving again")
		return e.EnsureActiveCart(ctx)
	}
	if err != nil {
		return Result{}, surface(err, "read cart %s", ref.ID)
	}
	return Result{Cart: c, View: view.Project(c)}, nil
}

// LineForProduct returns the active cart's line holding productID.
func (e *Engine) LineForProduct(ctx context.Context, productID string) (types.LineItem, bool, error) {
	res, err := e.View(ctx)
	if err != nil {
		return types.LineItem{}, false, err
	}
	li, ok := res.Cart.LineForProduct(productID)
	return li, ok, nil
}

// Busy reports whether mutations are still queued or running.
func (e *Engine) Busy() bool {
	return e.queue.Busy()
}

// Close waits for queued mutations to finish.
func (e *Engine) Close() {
	e.queue.Wait()
}

func (e *Engine) publish(ctx context.Context, m types.Mutation, prevID string, c types.Cart) {
	ev, err := pub.NewCartEvent(e.shopper, m.Kind(), prevID, c, timeNow())
	if err == nil {
		err = e.events.Publish(ctx, ev)
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"cartID": c.ID, "version": c.Version}).Error("failed to publish cart event")
	}
}
