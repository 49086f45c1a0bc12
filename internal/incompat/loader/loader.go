// Package loader reads registros_laborales into taxpayer-ID groups.
package loader

import (
	"context"
	"database/sql"
	"strings"

	"incompat-report/internal/common/database"
	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
	"incompat-report/internal/models"
)

const (
	QueryName = "registros_laborales"

	recordsQuery = `
		SELECT rfc, ente, nombre, qnas
		FROM registros_laborales
		ORDER BY rfc, ente`
)

type Loader struct {
	opener database.Opener
	logger logger.Logger
}

func New(opener database.Opener, log logger.Logger) *Loader {
	return &Loader{
		opener: opener,
		logger: log.WithFields(map[string]interface{}{"component": "loader"}),
	}
}

// Load opens one connection, reads every labor record and groups them by
// trimmed taxpayer ID. Groups keep first-seen order; records keep row order.
func (l *Loader) Load(ctx context.Context) ([]models.RecordGroup, error) {
	db, err := l.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			l.logger.Warn("failed to close database", map[string]interface{}{"error": cerr})
		}
	}()

	rows, err := db.QueryContext(ctx, recordsQuery)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
	}
	defer rows.Close()

	var (
		groups    []models.RecordGroup
		index     = make(map[string]int)
		total     int
		discarded int
		badCodes  int
	)
	for rows.Next() {
		var (
			rfc, ente, nombre sql.NullString
			qnas              any
		)
		if err := rows.Scan(&rfc, &ente, &nombre, &qnas); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
		}
		total++

		record := models.LaborRecord{
			TaxpayerID: strings.TrimSpace(rfc.String),
			EntityKey:  strings.TrimSpace(ente.String),
			Name:       strings.TrimSpace(nombre.String),
			Codes:      DecodeCodes(qnas),
		}
		if record.TaxpayerID == "" {
			discarded++
			continue
		}
		if _, ok := record.Codes.(models.Unparseable); ok {
			badCodes++
		}

		i, seen := index[record.TaxpayerID]
		if !seen {
			i = len(groups)
			index[record.TaxpayerID] = i
			groups = append(groups, models.RecordGroup{TaxpayerID: record.TaxpayerID})
		}
		groups[i].Records = append(groups[i].Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(QueryName, err)
	}

	l.logger.Debug("labor records loaded", map[string]interface{}{
		"rows":             total,
		"discardedNoRFC":   discarded,
		"unparseableCodes": badCodes,
		"taxpayers":        len(groups),
	})
	return groups, nil
}

// CountRecords returns the number of records across groups.
func CountRecords(groups []models.RecordGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Records)
	}
	return n
}
