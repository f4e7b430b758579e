package flow

import (
	"cartsync/internal/cache"
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"cartsync/internal/view"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
)

// activeLane is the lane of every request that targets the active cart, whatever its current id.
// A clear that replaces the cart therefore stays ordered with the requests queued behind it.
const activeLane = "active"

// Result is the outcome of one queued task. On success Cart is the authoritative snapshot after
// the write and View its projection.
type Result struct {
	Ticket string
	Cart   types.Cart
	View   view.ViewModel
	Err    error
}

// CommitHook is called inside the lane after every acknowledged write. prevID is the id of the cart
// the mutation targeted; it differs from c.ID after a clear.
type CommitHook func(ctx context.Context, m types.Mutation, prevID string, c types.Cart)

type task func(ctx context.Context) (types.Cart, error)

type job struct {
	ticket   string
	desc     string
	ctx      context.Context
	run      task
	out      chan Result
	enqueued time.Time
}

type lane struct {
	key     string
	pending []job
	running bool
}

// MutationQueue serializes cart writes. Every lane is drained by one goroutine in submission
// order; different lanes run independently. Tasks run detached from the caller's cancellation, so
// the queue always drains and the cached ref stays consistent.
type MutationQueue struct {
	cache    *cache.Store
	tokens   TokenSource
	carts    ports.CartService
	resolver *Resolver
	timeout  time.Duration
	onCommit CommitHook

	mu    sync.Mutex
	lanes map[string]*lane
	wg    sync.WaitGroup
}

func NewMutationQueue(store *cache.Store, tokens TokenSource, carts ports.CartService, cfg types.StoreConfig) *MutationQueue {
	cfg = cfg.WithDefaults()
	return &MutationQueue{
		cache:    store,
		tokens:   tokens,
		carts:    carts,
		resolver: NewResolver(carts, store, cfg),
		timeout:  cfg.RemoteTimeout(),
		lanes:    make(map[string]*lane),
	}
}

// OnCommit registers the hook called after acknowledged writes. Set it before the first Enqueue.
func (q *MutationQueue) OnCommit(h CommitHook) {
	q.onCommit = h
}

// Enqueue queues m for the cart cartID and returns a channel that receives exactly one Result.
// An empty cartID targets the active cart, resolving it first when none is cached. A cartID that is
// no longer the active cart fails with types.ErrMutationConflict.
func (q *MutationQueue) Enqueue(ctx context.Context, cartID string, m types.Mutation) <-chan Result {
	return q.enqueue(ctx, q.laneFor(ctx, cartID), types.DescribeMutation(m), func(ctx context.Context) (types.Cart, error) {
		return q.mutate(ctx, cartID, m)
	})
}

// Apply is Enqueue followed by a wait for the result. When ctx ends first, Apply returns ctx.Err()
// and the mutation still completes in the background.
func (q *MutationQueue) Apply(ctx context.Context, cartID string, m types.Mutation) (Result, error) {
	return wait(ctx, q.Enqueue(ctx, cartID, m))
}

// Resolve runs the cart resolution in the active lane and returns the active cart.
func (q *MutationQueue) Resolve(ctx context.Context) (Result, error) {
	return wait(ctx, q.enqueue(ctx, activeLane, "resolve", q.resolveActive))
}

// Relogin runs signIn in the active lane, then drops the cached cart ref and resolves the active
// cart of the new session. Everything queued before it finishes on the old session. A failed
// signIn leaves the session and the cart ref as they were.
func (q *MutationQueue) Relogin(ctx context.Context, signIn func(ctx context.Context) error) (Result, error) {
	return wait(ctx, q.enqueue(ctx, activeLane, "relogin", func(ctx context.Context) (types.Cart, error) {
		if _, err := bounded(ctx, q.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, signIn(ctx)
		}); err != nil {
			return types.Cart{}, err
		}
		if err := q.cache.ClearCartRef(ctx); err != nil {
			return types.Cart{}, err
		}
		return q.resolveActive(ctx)
	}))
}

// Busy reports whether any lane still holds a queued or running task.
func (q *MutationQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes) > 0
}

// Wait blocks until every lane has drained.
func (q *MutationQueue) Wait() {
	q.wg.Wait()
}

func wait(ctx context.Context, ch <-chan Result) (Result, error) {
	select {
	case res := <-ch:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// laneFor maps requests for the active cart onto activeLane. Only a caller that names a cart other
// than the cached one gets a lane of its own.
func (q *MutationQueue) laneFor(ctx context.Context, cartID string) string {
	if cartID == "" {
		return activeLane
	}
	ref, ok, err := q.cache.CartRef(ctx)
	if err != nil || !ok || ref.ID == cartID {
		return activeLane
	}
	return "cart:" + cartID
}

func (q *MutationQueue) enqueue(ctx context.Context, key, desc string, run task) <-chan Result {
	j := job{
		ticket:   ulid.Make().String(),
		desc:     desc,
		ctx:      context.WithoutCancel(ctx),
		run:      run,
		out:      make(chan Result, 1),
		enqueued: timeNow(),
	}

	q.mu.Lock()
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{key: key}
		q.lanes[key] = l
	}
	l.pending = append(l.pending, j)
	depth := len(l.pending)
	if !l.running {
		l.running = true
		q.wg.Add(1)
		go q.drain(l)
	}
	q.mu.Unlock()

	log.WithFields(log.Fields{"ticket": j.ticket, "lane": key, "op": desc, "depth": depth}).Debug("mutation queued")
	return j.out
}

func (q *MutationQueue) drain(l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			l.running = false
			delete(q.lanes, l.key)
			q.mu.Unlock()
			return
		}
		j := l.pending[0]
		l.pending[0] = job{}
		l.pending = l.pending[1:]
		q.mu.Unlock()

		j.out <- q.run(l.key, j)
	}
}

// run executes one job. A panicking task becomes an error result; the lane moves on.
func (q *MutationQueue) run(key string, j job) (res Result) {
	res.Ticket = j.ticket
	start := timeNow()
	fields := log.Fields{"ticket": j.ticket, "lane": key, "op": j.desc}
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(fields).Errorf("mutation panicked: %v", r)
			res = Result{Ticket: j.ticket, Err: fmt.Errorf("mutation %s panicked: %v", j.ticket, r)}
		}
	}()

	cart, err := j.run(j.ctx)
	fields["waited"] = start.Sub(j.enqueued).String()
	fields["elapsed"] = timeNow().Sub(start).String()
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("mutation failed")
		res.Err = err
		return res
	}
	fields["cartID"] = cart.ID
	fields["version"] = cart.Version
	log.WithFields(fields).Debug("mutation done")
	res.Cart = cart
	res.View = view.Project(cart)
	return res
}
