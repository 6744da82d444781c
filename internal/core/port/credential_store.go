package port

import (
	"context"

	"github.com/ulut0002/base-backend/internal/core/domain"
)

// CredentialStore exposes persistence behavior for user accounts.
// Lookups return repository.ErrNotFound when no row matches.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByIdentity(ctx context.Context, query domain.IdentityQuery) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user domain.NewUser) (*domain.User, error)
	Save(ctx context.Context, user domain.User) error
}
