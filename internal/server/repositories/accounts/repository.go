package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/server/models"
)

// SealedDSN is an account's encrypted tenant connection string.
type SealedDSN struct {
	AccountID string
	Sealed    string
}

// Repository persists accounts of a single role.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Account, error)

	SetAPIKey(ctx context.Context, id, keyHash, sealedDSN string) error
	ClearAPIKey(ctx context.Context, id string) error

	SetResetCode(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	VerifyResetCode(ctx context.Context, email, codeHash string, now time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error

	ListSealedDSNs(ctx context.Context) ([]SealedDSN, error)
	UpdateSealedDSN(ctx context.Context, id, sealed string) error
}
