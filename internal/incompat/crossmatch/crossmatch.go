// Package crossmatch finds QNA codes claimed by more than one entity for the
// same taxpayer ID.
package crossmatch

import (
	"incompat-report/internal/models"
)

// Detect returns one case per taxpayer ID whose entities share at least one
// code. Cases follow the order of groups.
func Detect(groups []models.RecordGroup) []models.CrossMatchCase {
	var cases []models.CrossMatchCase
	for _, g := range groups {
		if c, ok := detectGroup(g); ok {
			cases = append(cases, c)
		}
	}
	return cases
}

func detectGroup(g models.RecordGroup) (models.CrossMatchCase, bool) {
	if len(g.Records) < 2 {
		return models.CrossMatchCase{}, false
	}

	entities, codesByEntity := codesPerEntity(g.Records)
	if len(entities) < 2 {
		return models.CrossMatchCase{}, false
	}

	conflictCodes := models.CodeSet{}
	involved := models.CodeSet{}
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			shared := codesByEntity[entities[i]].Intersect(codesByEntity[entities[j]])
			if shared.Len() == 0 {
				continue
			}
			for code := range shared {
				conflictCodes[code] = struct{}{}
			}
			involved[entities[i]] = struct{}{}
			involved[entities[j]] = struct{}{}
		}
	}
	if conflictCodes.Len() == 0 {
		return models.CrossMatchCase{}, false
	}

	return models.CrossMatchCase{
		TaxpayerID: g.TaxpayerID,
		Name:       g.Records[0].Name,
		Entities:   involved.Sorted(),
		Codes:      conflictCodes.Sorted(),
	}, true
}

// codesPerEntity maps each non-empty entity key to its codes. A repeated key
// keeps its first position but takes the codes of its last record.
func codesPerEntity(records []models.LaborRecord) ([]string, map[string]models.CodeSet) {
	order := make([]string, 0, len(records))
	byEntity := make(map[string]models.CodeSet, len(records))
	for _, r := range records {
		if r.EntityKey == "" {
			continue
		}
		if _, seen := byEntity[r.EntityKey]; !seen {
			order = append(order, r.EntityKey)
		}
		byEntity[r.EntityKey] = r.CodeSet()
	}
	return order, byEntity
}
