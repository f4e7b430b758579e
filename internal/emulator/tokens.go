package emulator

import (
	"cartsync/internal/types"
	"context"

	"github.com/google/uuid"
)

func (p *Platform) AnonymousSession(_ context.Context) (types.Session, error) {
	return p.issue(grant{owner: "anonymous-" + uuid.NewString()}, types.SessionAnonymous), nil
}

func (p *Platform) PasswordSession(_ context.Context, email, password string) (types.Session, error) {
	p.mu.Lock()
	cu, ok := p.customers[emailKey(email)]
	p.mu.Unlock()
	if !ok || cu.Password != password {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, nil, "customer account with the given credentials not found")
	}
	return p.issue(grant{owner: cu.ID, customer: true}, types.SessionCustomer), nil
}

// RefreshSession issues a new access token for the owner of refreshToken. The refresh token stays
// valid.
func (p *Platform) RefreshSession(_ context.Context, refreshToken string) (types.Session, error) {
	p.mu.Lock()
	g, ok := p.refresh[refreshToken]
	p.mu.Unlock()
	if !ok {
		return types.Session{}, types.Err(types.ErrSessionUnavailable, nil, "the refresh token was not found")
	}
	kind := types.SessionAnonymous
	if g.customer {
		kind = types.SessionCustomer
	}
	sess := p.issue(g, kind)
	p.mu.Lock()
	delete(p.refresh, sess.RefreshToken)
	p.mu.Unlock()
	sess.RefreshToken = refreshToken
	return sess, nil
}

func (p *Platform) issue(g grant, kind string) types.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Tokens++
	now := p.now()
	g.expires = now.Add(p.lifetime)
	sess := types.Session{
		Token:        uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    g.expires,
		Kind:         kind,
	}
	p.tokens[sess.Token] = g
	p.refresh[sess.RefreshToken] = g
	return sess
}
