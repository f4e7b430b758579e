// Package cache is the typed view of the shopper's local key-value storage: the session token and
// the hint of the active cart. It holds no business logic.
package cache

import (
	"cartsync/internal/ports"
	"cartsync/internal/types"
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	AccessTokenKey       = "access-token"
	AccessTokenExpiryKey = "access-token-expiry"
	RefreshTokenKey      = "refresh-token"
	SessionKindKey       = "session-kind"
	CartIDKey            = "cart-id"
	CartVersionKey       = "cart-version"
)

// Store reads and writes typed values under one shopper's namespace of a ports.KVStore.
// The cart ref keys are written by the flow package only.
type Store struct {
	kv        ports.KVStore
	namespace string
}

// New returns a Store over kv. An empty namespace uses the bare key names, as a single-shopper
// client does.
func New(kv ports.KVStore, namespace string) *Store {
	return &Store{kv: kv, namespace: namespace}
}

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		return "", false, types.Err(types.ErrDataStoreAccess, err, "get %s", name)
	}
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, name, value string) error {
	if err := s.kv.Set(ctx, s.key(name), value); err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "set %s", name)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := s.kv.Exists(ctx, s.key(name))
	if err != nil {
		return false, types.Err(types.ErrDataStoreAccess, err, "exists %s", name)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.kv.Delete(ctx, s.key(name)); err != nil {
		return types.Err(types.ErrDataStoreAccess, err, "delete %s", name)
	}
	return nil
}

// Session returns the cached session. ok is false when no access token is cached; the returned
// session then still carries the refresh token and kind, if any, so it can be renewed.
func (s *Store) Session(ctx context.Context) (sess types.Session, ok bool, err error) {
	if sess.RefreshToken, _, err = s.Get(ctx, RefreshTokenKey); err != nil {
		return types.Session{}, false, err
	}
	if sess.Kind, _, err = s.Get(ctx, SessionKindKey); err != nil {
		return types.Session{}, false, err
	}
	token, ok, err := s.Get(ctx, AccessTokenKey)
	if err != nil {
		return types.Session{}, false, err
	}
	if !ok || token == "" {
		return sess, false, nil
	}
	sess.Token = token

	exp, ok, err := s.Get(ctx, AccessTokenExpiryKey)
	if err != nil {
		return types.Session{}, false, err
	}
	if ok {
		// An unreadable expiry leaves ExpiresAt zero, which reads as expired.
		if unix, perr := strconv.ParseInt(exp, 10, 64); perr == nil {
			sess.ExpiresAt = time.Unix(unix, 0)
		}
	}
	return sess, true, nil
}

// SetSession replaces the cached session. The token is written last so a reader never pairs a new
// token with an old expiry.
func (s *Store) SetSession(ctx context.Context, sess types.Session) error {
	if sess.Token == "" {
		return fmt.Errorf("session token is required")
	}
	if err := s.Set(ctx, AccessTokenExpiryKey, strconv.FormatInt(sess.ExpiresAt.Unix(), 10)); err != nil {
		return err
	}
	if sess.RefreshToken != "" {
		if err := s.Set(ctx, RefreshTokenKey, sess.RefreshToken); err != nil {
			return err
		}
	} else if err := s.Delete(ctx, RefreshTokenKey); err != nil {
		return err
	}
	if err := s.Set(ctx, SessionKindKey, sess.Kind); err != nil {
		return err
	}
	return s.Set(ctx, AccessTokenKey, sess.Token)
}

// ClearSession drops the access token; the refresh token is kept so the session can be renewed.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.Delete(ctx, AccessTokenKey); err != nil {
		return err
	}
	return s.Delete(ctx, AccessTokenExpiryKey)
}

// CartRef returns the cached active cart hint. ok is false when no cart has been resolved yet.
func (s *Store) CartRef(ctx context.Context) (types.CartRef, bool, error) {
	id, ok, err := s.Get(ctx, CartIDKey)
	if err != nil || !ok || id == "" {
		return types.CartRef{}, false, err
	}
	raw, ok, err := s.Get(ctx, CartVersionKey)
	if err != nil || !ok {
		return types.CartRef{}, false, err
	}
	ver, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ver < 1 {
		// A corrupt version is as good as no hint; the engine re-resolves.
		return types.CartRef{}, false, nil
	}
	return types.CartRef{ID: id, Version: ver}, true, nil
}

// SetCartRef records the last acknowledged write of the active cart.
func (s *Store) SetCartRef(ctx context.Context, ref types.CartRef) error {
	if ref.ID == "" || ref.Version < 1 {
		return fmt.Errorf("invalid cart ref %q@%d", ref.ID, ref.Version)
	}
	if err := s.Set(ctx, CartIDKey, ref.ID); err != nil {
		return err
	}
	return s.Set(ctx, CartVersionKey, strconv.FormatInt(ref.Version, 10))
}

func (s *Store) ClearCartRef(ctx context.Context) error {
	if err := s.Delete(ctx, CartIDKey); err != nil {
		return err
	}
	return s.Delete(ctx, CartVersionKey)
}
