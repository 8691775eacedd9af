package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/catalog"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX, role models.Role) accounts.Repository
	AgentCatalog(db dbx.Queryer, agentID string) catalog.Repository
	TenantCatalog(db dbx.Queryer) catalog.Repository
}
