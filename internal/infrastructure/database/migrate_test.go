package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestTasksMigrationConstrainsEnums(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000002_create_tasks.up.sql")
	require.NoError(t, err)

	sql := string(data)
	assert.Contains(t, sql, "status IN ('todo', 'in-progress', 'done')")
	assert.Contains(t, sql, "priority IN ('low', 'medium', 'high')")
	assert.Contains(t, sql, "is_deleted")
}
