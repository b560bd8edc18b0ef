package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys["sql/migrations/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestParseMigrations_Sorted(t *testing.T) {
	t.Parallel()

	fsys := migrationFS(map[string]string{
		"0002_more.up.sql":   "CREATE TABLE b (id INT);",
		"0002_more.down.sql": "DROP TABLE b;",
		"0001_init.up.sql":   "CREATE TABLE a (id INT);",
		"0001_init.down.sql": "DROP TABLE a;",
	})

	migrations, err := parseMigrations(fsys, migrationsDir)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, "0001_init", migrations[0].label())
	require.Equal(t, "0002_more", migrations[1].label())
	require.Equal(t, "DROP TABLE b;", migrations[1].DownSQL)
}

func TestParseMigrations_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		files   map[string]string
		message string
	}{
		"missing down": {
			files:   map[string]string{"0001_init.up.sql": "SELECT 1;"},
			message: "both up and down",
		},
		"bad name": {
			files:   map[string]string{"not_a_migration.sql": "SELECT 1;"},
			message: "invalid migration file name",
		},
		"empty body": {
			files:   map[string]string{"0001_init.up.sql": "  \n", "0001_init.down.sql": "SELECT 1;"},
			message: "empty",
		},
		"name mismatch": {
			files:   map[string]string{"0001_init.up.sql": "SELECT 1;", "0001_other.down.sql": "SELECT 1;"},
			message: "two names",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parseMigrations(migrationFS(tc.files), migrationsDir)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestParseMigrations_Embedded(t *testing.T) {
	t.Parallel()

	migrations, err := parseMigrations(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	require.Equal(t, "0001_create_reservations", migrations[0].label())
	require.Equal(t, "0003_create_outbox_messages", migrations[2].label())
}

func TestPlanMigrations(t *testing.T) {
	t.Parallel()

	known := []migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	up, err := planMigrations(migrationUp, known, []int64{1}, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, versionsOf(up))

	up, err = planMigrations(migrationUp, known, nil, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, versionsOf(up))

	down, err := planMigrations(migrationDown, known, []int64{1, 2, 3}, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, versionsOf(down))

	down, err = planMigrations(migrationDown, known, nil, 1)
	require.NoError(t, err)
	require.Empty(t, down)

	_, err = planMigrations(migrationDown, known, []int64{9}, 1)
	require.Error(t, err)
}

func versionsOf(ms []migration) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Version)
	}
	return out
}
