package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0002_results.sql": {Data: []byte("SELECT 1;")},
		"migrations/0001_init.sql":    {Data: []byte("SELECT 1;")},
		"migrations/README.md":        {Data: []byte("notes")},
		"migrations/old/0000.sql":     {Data: []byte("SELECT 1;")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_results.sql"}, files)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := migrationFiles(migrations)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_payroll.sql", files[0])
}
