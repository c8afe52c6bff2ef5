// Package sourcetest builds payload databases for tests.
package sourcetest

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"
)

// Notice is one row of the notice table. Nil fields are stored as NULL.
type Notice struct {
	Adm, NtfRsn, NtcType *string
}

// N builds a Notice from plain strings.
func N(adm, rsn, typ string) Notice {
	return Notice{Adm: &adm, NtfRsn: &rsn, NtcType: &typ}
}

// WriteNotices creates a database at path with driver ("sqlite" or "duckdb")
// holding a notice table filled with rows.
func WriteNotices(t testing.TB, driver, path string, rows ...Notice) {
	t.Helper()
	db, err := sql.Open(driver, path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE notice (ntc_id INTEGER, adm VARCHAR, ntf_rsn VARCHAR, ntc_type VARCHAR)`)
	require.NoError(t, err)

	for i, r := range rows {
		_, err := db.Exec("INSERT INTO notice VALUES (?, ?, ?, ?)", i+1, r.Adm, r.NtfRsn, r.NtcType)
		require.NoError(t, err)
	}
}
