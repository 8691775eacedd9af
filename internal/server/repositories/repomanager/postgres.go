// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/server/migrations"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/catalog"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Accounts returns an accounts.Repository for role bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX, role models.Role) accounts.Repository {
	return accounts.NewPostgresRepository(db, role)
}

// AgentCatalog returns a catalog.Repository over the service database that
// only exposes listings owned by agentID.
func (m *PostgresRepositoryManager) AgentCatalog(db dbx.Queryer, agentID string) catalog.Repository {
	return catalog.NewAgentRepository(db, agentID)
}

// TenantCatalog returns an unscoped catalog.Repository over a tenant database.
func (m *PostgresRepositoryManager) TenantCatalog(db dbx.Queryer) catalog.Repository {
	return catalog.NewSQLRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
