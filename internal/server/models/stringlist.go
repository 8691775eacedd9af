package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList is a list of strings stored as a JSON array, so the same
// column works on PostgreSQL (jsonb) and SQLite (text).
type StringList []string

func (l *StringList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported source %T", src)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Join concatenates the items with a comma, without spaces.
func (l StringList) Join() string {
	return strings.Join(l, ",")
}
