package ports

import (
	"cartsync/internal/types"
	"context"
)

// TokenIssuer is the auth service. Failures MUST be reported as types.ErrSessionUnavailable, or
// types.ErrRemoteUnavailable when the service could not be reached.
type TokenIssuer interface {
	AnonymousSession(ctx context.Context) (types.Session, error)
	PasswordSession(ctx context.Context, email, password string) (types.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (types.Session, error)
}
