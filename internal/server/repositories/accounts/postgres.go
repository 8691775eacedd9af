// Package accounts stores agent and client accounts in PostgreSQL.
// Every query is scoped by the role the repository was built for.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, name, email, role, password_hash, password_changed_at,
		        api_key_hash, tenant_dsn_encrypted, reset_code_verified, created_at`

type PostgresRepository struct {
	db   dbx.DBTX
	role models.Role
}

func NewPostgresRepository(db dbx.DBTX, role models.Role) *PostgresRepository {
	return &PostgresRepository{db: db, role: role}
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &a.PasswordChangedAt,
		&a.APIKeyHash, &a.TenantDSN, &a.ResetVerified, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (name, email, role, password_hash, password_changed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	account.Role = r.role
	err := r.db.QueryRowContext(ctx, query,
		account.Name, account.Email, r.role, account.PasswordHash, account.PasswordChangedAt).
		Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE id = $1 AND role = $2`

	return scanAccount(r.db.QueryRowContext(ctx, query, id, r.role))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE email = $1 AND role = $2`

	return scanAccount(r.db.QueryRowContext(ctx, query, email, r.role))
}

func (r *PostgresRepository) GetByAPIKeyHash(ctx context.Context, keyHash string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE api_key_hash = $1 AND role = $2`

	return scanAccount(r.db.QueryRowContext(ctx, query, keyHash, r.role))
}

// exec runs an UPDATE and maps "no row touched" to common.ErrorNotFound.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetAPIKey(ctx context.Context, id, keyHash, sealedDSN string) error {
	query :=
		`UPDATE accounts SET api_key_hash = $1, tenant_dsn_encrypted = $2
		 WHERE id = $3 AND role = $4`

	return r.exec(ctx, query, keyHash, sealedDSN, id, r.role)
}

func (r *PostgresRepository) ClearAPIKey(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET api_key_hash = NULL, tenant_dsn_encrypted = NULL
		 WHERE id = $1 AND role = $2`

	return r.exec(ctx, query, id, r.role)
}

// SetResetCode stores a fresh code and drops any earlier verification.
func (r *PostgresRepository) SetResetCode(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	query :=
		`UPDATE accounts SET reset_code_hash = $1, reset_code_expires_at = $2, reset_code_verified = false
		 WHERE email = $3 AND role = $4`

	return r.exec(ctx, query, codeHash, expiresAt, email, r.role)
}

// VerifyResetCode marks the reset as authorized when the code matches and
// has not expired; otherwise it returns common.ErrorNotFound.
func (r *PostgresRepository) VerifyResetCode(ctx context.Context, email, codeHash string, now time.Time) error {
	query :=
		`UPDATE accounts SET reset_code_verified = true
		 WHERE email = $1 AND role = $2 AND reset_code_hash = $3 AND reset_code_expires_at > $4
		 RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query, email, r.role, codeHash, now).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ResetPassword replaces the hash and clears the reset state in one
// statement. It only applies when the reset was verified.
func (r *PostgresRepository) ResetPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	query :=
		`UPDATE accounts SET password_hash = $1, password_changed_at = $2,
		        reset_code_hash = NULL, reset_code_expires_at = NULL, reset_code_verified = false
		 WHERE id = $3 AND role = $4 AND reset_code_verified = true`

	return r.exec(ctx, query, passwordHash, changedAt, id, r.role)
}

func (r *PostgresRepository) ListSealedDSNs(ctx context.Context) ([]SealedDSN, error) {
	query :=
		`SELECT id, tenant_dsn_encrypted FROM accounts
		 WHERE role = $1 AND tenant_dsn_encrypted IS NOT NULL
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, r.role)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []SealedDSN
	for rows.Next() {
		var s SealedDSN
		if err := rows.Scan(&s.AccountID, &s.Sealed); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) UpdateSealedDSN(ctx context.Context, id, sealed string) error {
	query :=
		`UPDATE accounts SET tenant_dsn_encrypted = $1
		 WHERE id = $2 AND role = $3`

	return r.exec(ctx, query, sealed, id, r.role)
}
