package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Amenities is a free-form feature map stored as JSON.
type Amenities map[string]any

// Scan implements sql.Scanner for json/jsonb and text columns.
func (a *Amenities) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("amenities: unsupported source %T", src)
	}
	if len(b) == 0 {
		*a = nil
		return nil
	}

	m := Amenities{}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("amenities: %w", err)
	}
	*a = m
	return nil
}

// Value implements driver.Valuer.
func (a Amenities) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// String renders compact JSON, "{}" when empty.
func (a Amenities) String() string {
	if len(a) == 0 {
		return "{}"
	}
	b, err := json.Marshal(map[string]any(a))
	if err != nil {
		return "{}"
	}
	return string(b)
}
