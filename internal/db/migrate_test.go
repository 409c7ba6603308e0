package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/eppo?sslmode=disable", MigrateURL("postgres://u:p@localhost:5432/eppo?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/eppo", MigrateURL("postgresql://localhost/eppo"))
	require.Equal(t, "pgx5://localhost/eppo", MigrateURL("pgx5://localhost/eppo"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
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
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	require.Equal(t, ups, downs)
}

func TestMigrationsCreateQueriedTables(t *testing.T) {
	var all strings.Builder
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		data, err := fs.ReadFile(migrations, "migrations/"+e.Name())
		require.NoError(t, err)
		all.Write(data)
	}
	for _, table := range []string{"categories", "products", "stock_levels", "proposals", "proposal_events"} {
		require.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
