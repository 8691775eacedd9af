package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbeddedAndAnnotated(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		b, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		body := string(b)
		assert.True(t, strings.Contains(body, "-- +goose Up"), "%s lacks Up section", name)
		assert.True(t, strings.Contains(body, "-- +goose Down"), "%s lacks Down section", name)
	}
}
