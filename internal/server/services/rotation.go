package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/estatematch/internal/cryptox"
	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
)

// KeyRotator re-seals stored tenant connection strings under the primary key.
type KeyRotator struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keyring     *cryptox.Keyring
	log         logging.Logger
}

func NewKeyRotator(db *sql.DB, m repomanager.RepositoryManager, keyring *cryptox.Keyring, log logging.Logger) *KeyRotator {
	return &KeyRotator{db: db, repomanager: m, keyring: keyring, log: log}
}

// Pending counts connection strings sealed by a non-primary key.
func (r *KeyRotator) Pending(ctx context.Context) (int, error) {
	items, err := r.repomanager.Accounts(r.db, models.RoleAgent).ListSealedDSNs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if r.keyring.NeedsRotation(it.Sealed) {
			n++
		}
	}
	return n, nil
}

// Rotate re-seals every stale value in one transaction and returns how many
// were rewritten. Any failure rolls the whole batch back.
func (r *KeyRotator) Rotate(ctx context.Context) (int, error) {
	rotated := 0
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repomanager.Accounts(tx, models.RoleAgent)

		items, err := repo.ListSealedDSNs(ctx)
		if err != nil {
			return err
		}
		for _, it := range items {
			if !r.keyring.NeedsRotation(it.Sealed) {
				continue
			}
			resealed, err := r.keyring.Reseal(it.Sealed)
			if err != nil {
				return fmt.Errorf("account %s: %w", it.AccountID, err)
			}
			if err := repo.UpdateSealedDSN(ctx, it.AccountID, resealed); err != nil {
				return fmt.Errorf("account %s: %w", it.AccountID, err)
			}
			rotated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info(ctx, "tenant secrets rotated", "count", rotated, "primary_key", r.keyring.PrimaryID())
	return rotated, nil
}
