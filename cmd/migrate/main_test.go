package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationPart(t *testing.T) {
	content := `
-- +migrate Up
CREATE TABLE orders (order_id text);
CREATE INDEX orders_status_idx ON orders (status);

-- +migrate Down
DROP TABLE orders;
`
	t.Run("Extract Up", func(t *testing.T) {
		up := extractMigrationPart(content, "Up")
		assert.Contains(t, up, "CREATE TABLE orders")
		assert.Contains(t, up, "CREATE INDEX orders_status_idx")
		assert.NotContains(t, up, "DROP TABLE orders")
		assert.NotContains(t, up, "-- +migrate Up")
	})

	t.Run("Extract Down", func(t *testing.T) {
		down := extractMigrationPart(content, "Down")
		assert.Contains(t, down, "DROP TABLE orders")
		assert.NotContains(t, down, "CREATE TABLE orders")
	})
}

func writeMigration(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunMigrationsUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tmpDir := t.TempDir()
	applied := writeMigration(t, tmpDir, "0001_a.sql", "-- +migrate Up\nCREATE TABLE a (id int);")
	fresh := writeMigration(t, tmpDir, "0002_b.sql", "-- +migrate Up\nCREATE TABLE b (id int);\n-- +migrate Down\nDROP TABLE b;")

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("0001_a.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("0002_b.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0002_b.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, runMigrationsUp(context.Background(), db, []string{applied, fresh}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsUp_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	file := writeMigration(t, t.TempDir(), "0001_bad.sql", "-- +migrate Up\nCREATE TABLE broken (;")

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = runMigrationsUp(context.Background(), db, []string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_bad.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsDown(t *testing.T) {
	t.Run("RollsBackLatest", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		file := writeMigration(t, t.TempDir(), "0001_orders.sql", "-- +migrate Up\nCREATE TABLE orders ();\n-- +migrate Down\nDROP TABLE orders;")

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_orders.sql"))
		mock.ExpectBegin()
		mock.ExpectExec("DROP TABLE orders").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM schema_migrations").
			WithArgs("0001_orders.sql").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, runMigrationsDown(context.Background(), db, []string{file}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NothingApplied", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnError(sql.ErrNoRows)

		assert.NoError(t, runMigrationsDown(context.Background(), db, nil))
	})

	t.Run("MissingFile", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0009_gone.sql"))

		err = runMigrationsDown(context.Background(), db, nil)
		assert.ErrorContains(t, err, "0009_gone.sql")
	})
}

func TestRun(t *testing.T) {
	t.Run("UnknownMode", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

		err = run(context.Background(), db, "sideways", t.TempDir())
		assert.ErrorContains(t, err, "unknown mode")
	})

	t.Run("ShipsOrdersMigration", func(t *testing.T) {
		content, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_create_orders.sql"))
		require.NoError(t, err)

		up := extractMigrationPart(string(content), "Up")
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS orders")
		assert.Contains(t, up, "order_id TEXT PRIMARY KEY")
		assert.Contains(t, extractMigrationPart(string(content), "Down"), "DROP TABLE IF EXISTS orders")
		// amounts keep the caller's scale
		assert.Contains(t, up, "total_amount NUMERIC NOT NULL")
		assert.NotContains(t, up, "NUMERIC(")
	})
}

func TestResolveDSN(t *testing.T) {
	t.Run("DBURLOverride", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://u:p@db:5432/iute?sslmode=disable")
		dsn, err := resolveDSN()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db:5432/iute?sslmode=disable", dsn)
	})

	t.Run("FromServerSettings", func(t *testing.T) {
		t.Setenv("DB_URL", "")
		t.Setenv("DB_HOST", "pg.internal")
		t.Setenv("DB_USER", "iute")
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("DB_NAME", "orders")
		t.Setenv("DB_PORT", "6432")
		t.Setenv("DB_SSLMODE", "require")

		dsn, err := resolveDSN()
		require.NoError(t, err)
		assert.Equal(t, "host=pg.internal user=iute password=pw dbname=orders port=6432 sslmode=require", dsn)
	})

	t.Run("NothingConfigured", func(t *testing.T) {
		t.Setenv("DB_URL", "")
		t.Setenv("DB_HOST", "")
		os.Unsetenv("DB_HOST")

		_, err := resolveDSN()
		assert.ErrorContains(t, err, "DB_HOST")
	})
}
