// Package catalog resolves entity and municipality keys to display labels.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"incompat-report/internal/common/database"
	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
	"incompat-report/internal/models"
)

const (
	QueryName = "entes_municipios"

	catalogQuery = `
		SELECT clave, nombre, siglas, 'ENTE' AS tipo FROM entes
		UNION ALL
		SELECT clave, nombre, siglas, 'MUNICIPIO' AS tipo FROM municipios`
)

// Catalog maps a key to its entry. Keys not present resolve to themselves.
type Catalog map[string]models.CatalogEntry

// Display returns the label for key, or key itself when unknown.
func (c Catalog) Display(key string) string {
	if e, ok := c[key]; ok {
		return e.Display
	}
	return key
}

// TypeOf returns the entity type for key. Unknown keys count as ENTE.
func (c Catalog) TypeOf(key string) models.EntityType {
	if e, ok := c[key]; ok && e.Type != "" {
		return e.Type
	}
	return models.EntityTypeEnte
}

// BuildEntry applies the row rules: blank keys are dropped, blank name or
// acronym fall back to the key, and the label is upper-cased.
func BuildEntry(key, name, acronym, tipo string) (models.CatalogEntry, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.CatalogEntry{}, false
	}
	name = strings.TrimSpace(name)
	acronym = strings.TrimSpace(acronym)
	if name == "" {
		name = key
	}
	if acronym == "" {
		acronym = key
	}

	entryType := models.EntityType(strings.ToUpper(strings.TrimSpace(tipo)))
	if entryType == "" {
		entryType = models.EntityTypeEnte
	}

	return models.CatalogEntry{
		Key:     key,
		Display: fmt.Sprintf("%s (%s)", strings.ToUpper(name), strings.ToUpper(acronym)),
		Type:    entryType,
	}, true
}

type Resolver struct {
	opener database.Opener
	logger logger.Logger
}

func New(opener database.Opener, log logger.Logger) *Resolver {
	return &Resolver{
		opener: opener,
		logger: log.WithFields(map[string]interface{}{"component": "catalog"}),
	}
}

// Load reads entes and municipios over one connection. When a key appears
// in both tables the municipio row wins, since it is read last.
func (r *Resolver) Load(ctx context.Context) (Catalog, error) {
	db, err := r.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			r.logger.Warn("failed to close database", map[string]interface{}{"error": cerr})
		}
	}()

	rows, err := db.QueryContext(ctx, catalogQuery)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
	}
	defer rows.Close()

	cat := make(Catalog)
	skipped := 0
	for rows.Next() {
		var clave, nombre, siglas, tipo sql.NullString
		if err := rows.Scan(&clave, &nombre, &siglas, &tipo); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
		}
		entry, ok := BuildEntry(clave.String, nombre.String, siglas.String, tipo.String)
		if !ok {
			skipped++
			continue
		}
		cat[entry.Key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
	}

	r.logger.Debug("catalog loaded", map[string]interface{}{
		"entries":      len(cat),
		"skippedBlank": skipped,
	})
	return cat, nil
}
