package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id int);\n-- +migrate Down\nDROP TABLE a;\n"
	up := ExtractUpMigration(content)
	assert.Contains(t, up, "CREATE TABLE a")
	assert.NotContains(t, up, "DROP TABLE")

	assert.Equal(t, "SELECT 1;", ExtractUpMigration("SELECT 1;"))
}

func TestEmbeddedMigrations_HaveUpSections(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		content, err := fs.ReadFile(migrationFS, "migrations/"+entry.Name())
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(ExtractUpMigration(string(content))), entry.Name())
	}
}
