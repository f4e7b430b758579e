package session

import (
	"cartsync/internal/cache"
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Provider owns the session token lifecycle of one shopper. Tokens are read from the cache and
// renewed through the auth service when absent or about to expire.
type Provider struct {
	mu     sync.Mutex
	cache  *cache.Store
	issuer ports.TokenIssuer
	skew   time.Duration
	now    func() time.Time
}

func NewProvider(store *cache.Store, issuer ports.TokenIssuer, skew time.Duration) *Provider {
	return &Provider{
		cache:  store,
		issuer: issuer,
		skew:   skew,
		now:    time.Now,
	}
}

// SetNowFn overrides the clock. Used in tests.
func (p *Provider) SetNowFn(f func() time.Time) {
	p.mu.Lock()
	p.now = f
	p.mu.Unlock()
}

// CurrentToken returns a valid, unexpired session token. A cached token is returned unchanged;
// otherwise the cached refresh token is tried, then a new anonymous session is created. The new
// session is persisted before returning.
// Concurrent callers wait for a single renewal.
func (p *Provider) CurrentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok, err := p.cache.Session(ctx)
	if err != nil {
		return "", types.Err(types.ErrSessionUnavailable, err, "read cached session")
	}
	if ok && sess.Valid(p.now(), p.skew) {
		return sess.Token, nil
	}

	next, err := p.renew(ctx, sess)
	if err != nil {
		return "", err
	}
	if err := p.cache.SetSession(ctx, next); err != nil {
		return "", types.Err(types.ErrSessionUnavailable, err, "persist session")
	}
	return next.Token, nil
}

func (p *Provider) renew(ctx context.Context, prev types.Session) (types.Session, error) {
	if prev.RefreshToken != "" {
		next, err := p.issuer.RefreshSession(ctx, prev.RefreshToken)
		if err == nil {
			if next.Kind == "" {
				next.Kind = prev.Kind
			}
			if next.RefreshToken == "" {
				next.RefreshToken = prev.RefreshToken
			}
			log.WithField("kind", next.Kind).Debug("session refreshed")
			return next, nil
		}
		if errors.Is(err, types.ErrRemoteUnavailable) {
			return types.Session{}, types.Err(types.ErrSessionUnavailable, err, "refresh session")
		}
		// A rejected refresh token falls back to a new anonymous session.
		log.WithError(err).Warn("refresh token rejected, starting anonymous session")
	}

	next, err := p.issuer.AnonymousSession(ctx)
	if err != nil {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, err, "create anonymous session")
	}
	if next.Kind == "" {
		next.Kind = types.SessionAnonymous
	}
	log.Debug("anonymous session created")
	return next, nil
}

// Login replaces the cached session with a password-flow session for the customer.
func (p *Provider) Login(ctx context.Context, email, password string) (types.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := p.issuer.PasswordSession(ctx, email, password)
	if err != nil {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, err, "customer login")
	}
	next.Kind = types.SessionCustomer
	if err := p.cache.SetSession(ctx, next); err != nil {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, err, "persist session")
	}
	log.WithField("email", email).Info("customer signed in")
	return next, nil
}

// Invalidate drops the cached token so the next CurrentToken renews it. Called after the platform
// rejected the token.
func (p *Provider) Invalidate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.ClearSession(ctx)
}
