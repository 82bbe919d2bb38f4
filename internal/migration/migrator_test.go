package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGooseDialect(t *testing.T) {
	cases := map[string]string{"postgres": "postgres", "pg": "postgres", "mysql": "mysql", "sqlite": "sqlite3", "sqlite3": "sqlite3"}
	for driver, want := range cases {
		got, err := gooseDialect(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, want, got)
	}
	_, err := gooseDialect("oracle")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, dialect := range []string{"postgres", "mysql", "sqlite3"} {
		entries, err := fs.ReadDir(migrations, migrationsDir(dialect))
		require.NoError(t, err, dialect)
		require.NotEmpty(t, entries, dialect)

		raw, err := fs.ReadFile(migrations, migrationsDir(dialect)+"/00001_schema.sql")
		require.NoError(t, err)
		schema := string(raw)
		for _, table := range []string{"products", "orders", "order_items", "customers", "inventory_movements", "stores",
			"pos_transactions", "pos_transaction_items", "activity_logs", "addresses", "admin_users", "delivery_pings"} {
			assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (", "%s missing %s", dialect, table)
		}
		assert.True(t, strings.HasPrefix(schema, "-- +goose Up"))
	}
}

func TestPostgresInstallsCommitFunction(t *testing.T) {
	raw, err := fs.ReadFile(migrations, "sql/postgres/00002_pos_commit_sale.sql")
	require.NoError(t, err)
	sql := string(raw)
	assert.Contains(t, sql, "CREATE OR REPLACE FUNCTION pos_commit_sale(sale jsonb) RETURNS uuid")
	assert.Contains(t, sql, "GREATEST(0, before_qty - qty)")
	assert.Contains(t, sql, "-- +goose StatementBegin")

	_, err = fs.Stat(migrations, "sql/sqlite/00002_pos_commit_sale.sql")
	assert.Error(t, err)
}
