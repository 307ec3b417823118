package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the account persistence contract.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetByIdentifier looks up an account by role identifier (abhaId,
	// licenseId or labId depending on role).
	GetByIdentifier(ctx context.Context, role Role, identifier string) (*Account, error)
	// SearchPatients matches patients by abhaId, phone or name substring,
	// case-insensitive.
	SearchPatients(ctx context.Context, query string) ([]*Account, error)
	UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
}
