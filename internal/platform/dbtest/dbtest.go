// Package dbtest opens throwaway SQLite databases carrying the production schema.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/platform/db"
	"equipahub-backend/migrations"
)

// Open returns a migrated database that is closed when t finishes.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	conn, err := db.Connect(db.DatabaseConfig{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	scripts, err := migrations.UpScripts(migrations.Dir(db.DriverSQLite))
	require.NoError(t, err)
	for _, s := range scripts {
		_, err := conn.Exec(s)
		require.NoError(t, err)
	}
	return conn
}

// SeedAccount inserts an identity row and returns its id.
func SeedAccount(t testing.TB, conn *sql.DB, role string) string {
	t.Helper()
	id := "u-" + gofakeit.LetterN(10)
	_, err := conn.ExecContext(context.Background(),
		`INSERT INTO auth_accounts (id, display_name, role, is_disabled, created_at) VALUES (?, ?, ?, 0, ?)`,
		id, gofakeit.Name(), role, time.Now().UTC())
	require.NoError(t, err)
	return id
}

// SeedEquipment inserts a unit with the given availability and returns its id.
func SeedEquipment(t testing.TB, conn *sql.DB, availability string) uint64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := conn.ExecContext(context.Background(), `
		INSERT INTO equipment (serial_number, brand, model, type, availability, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"SN-"+gofakeit.LetterN(12), gofakeit.Company(), gofakeit.Word(), "notebook", availability, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}

// Availability reads a unit's availability directly.
func Availability(t testing.TB, conn *sql.DB, id uint64) string {
	t.Helper()
	var a string
	require.NoError(t, conn.QueryRow(`SELECT availability FROM equipment WHERE id = ?`, id).Scan(&a))
	return a
}

// Count runs a SELECT COUNT(*) query.
func Count(t testing.TB, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&n))
	return n
}
