package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"incompat-report/internal/testutil"
)

func setupEnv(t *testing.T, dbPath string) {
	t.Setenv("SCIL_DB", dbPath)
	t.Setenv("SCIL_DB_DRIVER", "sqlite")
	t.Setenv("EMAIL_USER", "")
	t.Setenv("EMAIL_PASS", "")
	t.Setenv("DESTINO", "")
	t.Setenv("REPORT_DETAIL_LIMIT", "")
	t.Setenv("METRICS_TEXTFILE", "")
	t.Setenv("LOG_LEVEL", "error")
}

func scilDB(t *testing.T) string {
	return testutil.NewSCILDB(t, testutil.Fixture{
		Records: []testutil.LaborRow{
			{RFC: "AAA", Ente: "E1", Nombre: "ANA", Qnas: `{"Q1": 1}`},
			{RFC: "AAA", Ente: "E2", Nombre: "ANA", Qnas: `{"Q1": 1}`},
			{RFC: "BBB", Ente: "E1", Nombre: "BETO", Qnas: `{"Q2": 1}`},
			{RFC: "BBB", Ente: "E2", Nombre: "BETO", Qnas: `{"Q2": 1}`},
		},
		Entes: []testutil.CatalogRow{
			{Clave: "E1", Nombre: "Salud", Siglas: "SSA"},
			{Clave: "E2", Nombre: "Educacion", Siglas: "SEPE"},
		},
	})
}

func TestRun_DryRunPrintsReport(t *testing.T) {
	path := scilDB(t)
	setupEnv(t, path)

	var stdout bytes.Buffer
	code := run([]string{"--dry-run", "--limit", "1"}, &stdout)

	assert.Equal(t, 0, code)
	out := stdout.String()
	assert.True(t, strings.HasPrefix(out, "REPORTE DE INCOMPATIBILIDADES - SASP\n"))
	assert.Contains(t, out, "Base de datos: "+path)
	assert.Contains(t, out, "Total casos incompatibilidad (RFC): 2")
	assert.Contains(t, out, "Detalle (primeros 1 casos):")
	assert.NotContains(t, out, SentSentinel)
}

func TestRun_DBFlagOverridesEnvironment(t *testing.T) {
	setupEnv(t, filepath.Join(t.TempDir(), "absent.db"))
	path := scilDB(t)

	var stdout bytes.Buffer
	code := run([]string{"--dry-run", "--db", path}, &stdout)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Base de datos: "+path)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing credentials", args: nil},
		{name: "missing database", args: []string{"--dry-run", "--db", "/nonexistent/scil.db"}},
		{name: "missing explicit env file", args: []string{"--dry-run", "--env-file", "/nonexistent/.env"}},
		{name: "unexpected argument", args: []string{"--dry-run", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, scilDB(t))

			var stdout bytes.Buffer
			code := run(tt.args, &stdout)

			assert.Equal(t, 1, code)
			assert.Empty(t, stdout.String())
		})
	}
}
