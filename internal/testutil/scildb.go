// Package testutil builds throwaway SCIL databases for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE registros_laborales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rfc TEXT,
	ente TEXT,
	nombre TEXT,
	puesto TEXT,
	qnas TEXT
);
CREATE TABLE entes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	num TEXT NOT NULL DEFAULT '',
	clave TEXT,
	nombre TEXT,
	siglas TEXT
);
CREATE TABLE municipios (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	num TEXT NOT NULL DEFAULT '',
	clave TEXT,
	nombre TEXT,
	siglas TEXT
);
`

// LaborRow is one registros_laborales row. A nil field is stored as NULL.
type LaborRow struct {
	RFC    any
	Ente   any
	Nombre any
	Qnas   any
}

// CatalogRow is one entes or municipios row.
type CatalogRow struct {
	Clave  any
	Nombre any
	Siglas any
}

// Fixture describes the contents of a SCIL database.
type Fixture struct {
	Records    []LaborRow
	Entes      []CatalogRow
	Municipios []CatalogRow
}

// NewSCILDB writes fixture into a fresh sqlite file and returns its path.
func NewSCILDB(t testing.TB, fixture Fixture) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scil.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	for _, r := range fixture.Records {
		if _, err := db.Exec(`INSERT INTO registros_laborales (rfc, ente, nombre, qnas) VALUES (?, ?, ?, ?)`,
			r.RFC, r.Ente, r.Nombre, r.Qnas); err != nil {
			t.Fatalf("insert registro: %v", err)
		}
	}
	insertCatalog(t, db, "entes", fixture.Entes)
	insertCatalog(t, db, "municipios", fixture.Municipios)
	return path
}

func insertCatalog(t testing.TB, db *sql.DB, table string, rows []CatalogRow) {
	t.Helper()
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO `+table+` (clave, nombre, siglas) VALUES (?, ?, ?)`,
			r.Clave, r.Nombre, r.Siglas); err != nil {
			t.Fatalf("insert %s: %v", table, err)
		}
	}
}
