package models

import (
	"database/sql"
	"time"
)

// Role selects which population of accounts a query is scoped to.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
)

// Account is a registered agent or client. Secrets never leave the
// server: the JSON form carries identity fields only.
type Account struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Email             string         `db:"email" json:"email"`
	Role              Role           `db:"role" json:"role"`
	PasswordHash      string         `db:"password_hash" json:"-"`
	PasswordChangedAt time.Time      `db:"password_changed_at" json:"-"`
	APIKeyHash        sql.NullString `db:"api_key_hash" json:"-"`
	TenantDSN         sql.NullString `db:"tenant_dsn_encrypted" json:"-"`
	ResetVerified     bool           `db:"reset_code_verified" json:"-"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
}

// HasTenantDB reports whether the account registered an external database.
func (a *Account) HasTenantDB() bool {
	return a.TenantDSN.Valid && a.TenantDSN.String != ""
}
