package db

import (
	"database/sql"
	"database/sql/driver"
	"os"
	"os/exec"
	"testing"

	"github.com/dionisbeci/iute-integration/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	base := config.Database{
		DBHost:     "pg.internal",
		DBUser:     "iute",
		DBPassword: "s3cret",
		DBName:     "orders",
		DBPort:     "6432",
	}

	t.Run("EmptySSLModeDisables", func(t *testing.T) {
		cfg := base
		assert.Equal(t, "host=pg.internal user=iute password=s3cret dbname=orders port=6432 sslmode=disable", DSN(&cfg))
	})

	t.Run("ExplicitSSLMode", func(t *testing.T) {
		cfg := base
		cfg.DBSSLMode = "verify-full"
		assert.Contains(t, DSN(&cfg), "sslmode=verify-full")
	})

	t.Run("LoadedDefaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "pg.internal")
		for _, k := range []string{"DB_PORT", "DB_SSLMODE"} {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}

		cfg, err := config.LoadDatabase()
		require.NoError(t, err)
		assert.Contains(t, DSN(cfg), "host=pg.internal")
		assert.Contains(t, DSN(cfg), "port=5432 sslmode=disable")
	})
}

func TestNewDatabase(t *testing.T) {
	t.Run("PingFails", func(t *testing.T) {
		db, err := NewDatabase(&config.Database{DBHost: "invalid_host", DBPort: "5432"})
		assert.Nil(t, db)
		assert.ErrorContains(t, err, "failed to ping DB")
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		db, err := newDatabaseWithDriver(&config.Database{}, "no_such_driver")
		assert.Nil(t, db)
		assert.ErrorContains(t, err, "failed to connect to DB")
	})

	t.Run("Success", func(t *testing.T) {
		db, err := newDatabaseWithDriver(&config.Database{DBHost: "localhost"}, "pingable")
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 20, db.Stats().MaxOpenConnections)
	})
}

// InitDB exits through the fatal logger; run it in a child process.
func TestInitDB_Fatal(t *testing.T) {
	if os.Getenv("INIT_DB_CHILD") == "1" {
		InitDB(&config.Config{Database: config.Database{DBHost: "invalid_host", DBPort: "5432"}})
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestInitDB_Fatal")
	cmd.Env = append(os.Environ(), "INIT_DB_CHILD=1")
	err := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.False(t, exitErr.Success())
}

type pingableDriver struct{}

func (pingableDriver) Open(string) (driver.Conn, error) { return pingableConn{}, nil }

type pingableConn struct{}

func (pingableConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (pingableConn) Close() error                        { return nil }
func (pingableConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func init() {
	sql.Register("pingable", pingableDriver{})
}
