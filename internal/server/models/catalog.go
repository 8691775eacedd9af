package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Availability values of Property.AvailabilityStatus.
const (
	AvailabilityAvailable = "Available"
	AvailabilitySold      = "Sold"
	AvailabilityRented    = "Rented"
)

type Location struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Property is a listing. LocationName is joined from locations.
type Property struct {
	ID                 string              `db:"id"`
	Title              string              `db:"title"`
	LocationName       sql.NullString      `db:"location_name"`
	Price              decimal.NullDecimal `db:"price"`
	Area               sql.NullFloat64     `db:"area"`
	PropertyType       sql.NullString      `db:"property_type"`
	Rooms              sql.NullInt64       `db:"rooms"`
	AgentID            sql.NullString      `db:"agent_id"`
	AvailabilityStatus sql.NullString      `db:"availability_status"`
	Amenities          Amenities           `db:"amenities"`
	Condition          sql.NullString      `db:"condition"`
}

// Contact is a prospective buyer or tenant and their wishes.
type Contact struct {
	ID                     string              `db:"id"`
	UserID                 sql.NullString      `db:"user_id"`
	FullName               string              `db:"full_name"`
	PreferredLocation      sql.NullString      `db:"preferred_location"`
	BudgetMin              decimal.NullDecimal `db:"budget_min"`
	BudgetMax              decimal.NullDecimal `db:"budget_max"`
	PropertyTypes          StringList          `db:"property_types"`
	DesiredAreaMin         sql.NullFloat64     `db:"desired_area_min"`
	DesiredAreaMax         sql.NullFloat64     `db:"desired_area_max"`
	RoomsMin               sql.NullInt64       `db:"rooms_min"`
	RoomsMax               sql.NullInt64       `db:"rooms_max"`
	Amenities              Amenities           `db:"amenities"`
	PriorityLevel          sql.NullString      `db:"priority_level"`
	PreferredContactMethod sql.NullString      `db:"preferred_contact_method"`
}
