// Package catalog reads properties and contacts from the service database
// or from a tenant database with the same tables. Queries are written with
// '?' placeholders and rebound for the handle's driver.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/dmitrijs2005/estatematch/internal/dbx"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/jmoiron/sqlx"
)

const propertySelect = `SELECT p.id, p.title, l.name AS location_name, p.price, p.area, p.property_type,
		       p.rooms, p.agent_id, p.availability_status, p.amenities, p.condition
		FROM properties p
		LEFT JOIN locations l ON l.id = p.location_id`

const contactSelect = `SELECT c.id, c.user_id, c.full_name, l.name AS preferred_location, c.budget_min, c.budget_max,
		       c.property_types, c.desired_area_min, c.desired_area_max, c.rooms_min, c.rooms_max,
		       c.amenities, c.priority_level, c.preferred_contact_method
		FROM contacts c
		LEFT JOIN locations l ON l.id = c.preferred_location_id`

// SQLRepository is a Repository over any sqlx handle. When agentID is set,
// queries only see that agent's listings and contacts.
type SQLRepository struct {
	db      dbx.Queryer
	agentID string
}

// NewSQLRepository returns an unscoped repository, used for tenant databases.
func NewSQLRepository(db dbx.Queryer) *SQLRepository {
	return &SQLRepository{db: db}
}

// NewAgentRepository returns a repository restricted to the listings and
// contacts owned by agentID.
func NewAgentRepository(db dbx.Queryer, agentID string) *SQLRepository {
	return &SQLRepository{db: db, agentID: agentID}
}

func (r *SQLRepository) scope(query string, args []any) (string, []any) {
	if r.agentID == "" {
		return query, args
	}
	return query + ` AND p.agent_id = ?`, append(args, r.agentID)
}

// scopeContacts appends the owner filter; where is the clause keyword that
// introduces it.
func (r *SQLRepository) scopeContacts(query, where string, args []any) (string, []any) {
	if r.agentID == "" {
		return query, args
	}
	return query + ` ` + where + ` c.agent_id = ?`, append(args, r.agentID)
}

func (r *SQLRepository) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	query, args := r.scope(propertySelect+`
		WHERE p.id = ?`, []any{id})

	p := &models.Property{}
	err := sqlx.GetContext(ctx, r.db, p, r.db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// GetProperties returns the properties with the given ids in the order the
// ids were requested. Duplicate and unknown ids are skipped; when none of
// them exist the result is common.ErrorNotFound.
func (r *SQLRepository) GetProperties(ctx context.Context, ids []string) ([]models.Property, error) {
	if len(ids) == 0 {
		return nil, common.ErrorNotFound
	}

	query, args, err := sqlx.In(propertySelect+`
		WHERE p.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	query, args = r.scope(query, args)

	var found []models.Property
	if err := sqlx.SelectContext(ctx, r.db, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	byID := make(map[string]models.Property, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	ordered := make([]models.Property, 0, len(found))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		ordered = append(ordered, p)
		delete(byID, id)
	}
	if len(ordered) == 0 {
		return nil, common.ErrorNotFound
	}
	return ordered, nil
}

func (r *SQLRepository) ListAvailableProperties(ctx context.Context) ([]models.Property, error) {
	query, args := r.scope(propertySelect+`
		WHERE p.availability_status = ?`, []any{models.AvailabilityAvailable})
	query += ` ORDER BY p.title, p.id`

	var items []models.Property
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *SQLRepository) ListContacts(ctx context.Context) ([]models.Contact, error) {
	query, args := r.scopeContacts(contactSelect, "WHERE", nil)
	query += ` ORDER BY c.full_name, c.id`

	var items []models.Contact
	if err := sqlx.SelectContext(ctx, r.db, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *SQLRepository) GetContactByUser(ctx context.Context, userID string) (*models.Contact, error) {
	query, args := r.scopeContacts(contactSelect+`
		WHERE c.user_id = ?`, "AND", []any{userID})

	c := &models.Contact{}
	err := sqlx.GetContext(ctx, r.db, c, r.db.Rebind(query), args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}
