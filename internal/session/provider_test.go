package session

import (
	"cartsync/internal/backends/memory"
	"cartsync/internal/cache"
	"cartsync/internal/types"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type fakeIssuer struct {
	mu         sync.Mutex
	n          int
	anonErr    error
	refreshErr error
	loginErr   error
	anonCalls  int
	refreshes  int
	now        time.Time
}

func (f *fakeIssuer) next(kind string) types.Session {
	f.n++
	return types.Session{
		Token:        fmt.Sprintf("token-%d", f.n),
		RefreshToken: fmt.Sprintf("refresh-%d", f.n),
		ExpiresAt:    f.now.Add(time.Hour),
		Kind:         kind,
	}
}

func (f *fakeIssuer) AnonymousSession(_ context.Context) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anonCalls++
	if f.anonErr != nil {
		return types.Session{}, f.anonErr
	}
	return f.next(types.SessionAnonymous), nil
}

func (f *fakeIssuer) PasswordSession(_ context.Context, email, password string) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return types.Session{}, f.loginErr
	}
	return f.next(""), nil
}

func (f *fakeIssuer) RefreshSession(_ context.Context, refreshToken string) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return types.Session{}, f.refreshErr
	}
	sess := f.next("")
	sess.RefreshToken = ""
	return sess, nil
}

type ProviderTestSuite struct {
	suite.Suite

	now    time.Time
	store  *cache.Store
	issuer *fakeIssuer
	p      *Provider
}

func TestProviderTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (s *ProviderTestSuite) SetupTest() {
	s.now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s.store = cache.New(memory.NewKVStore(), "shopper")
	s.issuer = &fakeIssuer{now: s.now}
	s.p = NewProvider(s.store, s.issuer, time.Minute)
	s.p.SetNowFn(func() time.Time { return s.now })
}

func (s *ProviderTestSuite) TestCreatesAnonymousSessionOnce() {
	ctx := context.Background()
	t1, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal("token-1", t1)

	t2, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal(t1, t2)
	s.Equal(1, s.issuer.anonCalls)

	sess, ok, err := s.store.Session(ctx)
	s.NoError(err)
	s.True(ok)
	s.Equal(types.SessionAnonymous, sess.Kind)
}

func (s *ProviderTestSuite) TestConcurrentCallersShareOneRenewal() {
	ctx := context.Background()
	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = s.p.CurrentToken(ctx)
		}(i)
	}
	wg.Wait()
	for _, tok := range tokens {
		s.Equal("token-1", tok)
	}
	s.Equal(1, s.issuer.anonCalls)
}

func (s *ProviderTestSuite) TestRefreshesExpiringToken() {
	ctx := context.Background()
	_, err := s.p.CurrentToken(ctx)
	s.NoError(err)

	// inside the skew window
	s.now = s.now.Add(59*time.Minute + 30*time.Second)
	tok, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal("token-2", tok)
	s.Equal(1, s.issuer.refreshes)
	s.Equal(1, s.issuer.anonCalls)

	sess, _, err := s.store.Session(ctx)
	s.NoError(err)
	s.Equal("refresh-1", sess.RefreshToken)
	s.Equal(types.SessionAnonymous, sess.Kind)
}

func (s *ProviderTestSuite) TestRejectedRefreshFallsBackToAnonymous() {
	ctx := context.Background()
	_, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.NoError(s.p.Invalidate(ctx))

	s.issuer.refreshErr = types.Err(types.ErrSessionUnavailable, nil, "the refresh token was not found")
	tok, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal("token-2", tok)
	s.Equal(2, s.issuer.anonCalls)
}

func (s *ProviderTestSuite) TestUnreachableAuthIsSessionUnavailable() {
	ctx := context.Background()
	_, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.NoError(s.p.Invalidate(ctx))

	s.issuer.refreshErr = types.Err(types.ErrRemoteUnavailable, nil, "connection refused")
	_, err = s.p.CurrentToken(ctx)
	s.ErrorIs(err, types.ErrSessionUnavailable)
	s.Equal(1, s.issuer.anonCalls)

	s.issuer.refreshErr = nil
	s.NoError(s.store.Delete(ctx, cache.RefreshTokenKey))
	s.issuer.anonErr = types.Err(types.ErrRemoteUnavailable, nil, "connection refused")
	_, err = s.p.CurrentToken(ctx)
	s.ErrorIs(err, types.ErrSessionUnavailable)
}

func (s *ProviderTestSuite) TestLogin() {
	ctx := context.Background()
	_, err := s.p.CurrentToken(ctx)
	s.NoError(err)

	sess, err := s.p.Login(ctx, "shopper@example.com", "secret")
	s.NoError(err)
	s.Equal(types.SessionCustomer, sess.Kind)

	tok, err := s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal(sess.Token, tok)

	s.issuer.loginErr = types.Err(types.ErrSessionUnavailable, nil, "bad credentials")
	_, err = s.p.Login(ctx, "shopper@example.com", "wrong")
	s.ErrorIs(err, types.ErrSessionUnavailable)
	tok, err = s.p.CurrentToken(ctx)
	s.NoError(err)
	s.Equal(sess.Token, tok)
}
