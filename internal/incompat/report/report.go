// Package report renders cross-match cases as the plain-text email body.
package report

import (
	"fmt"
	"sort"
	"strings"

	"incompat-report/internal/incompat/catalog"
	"incompat-report/internal/models"
)

const (
	Title         = "REPORTE DE INCOMPATIBILIDADES - SASP"
	NoCasesLine   = "No se detectaron casos de incompatibilidad por cruce de QNAs."
	ruleWidth     = 60
	noName        = "Sin nombre"
	noEntity      = "Sin ente"
	noCode        = "Sin QNA"
	listSeparator = ", "
)

type Options struct {
	DBPath      string
	DetailLimit int // <= 0 renders every case
}

// Summary counts cases by scope.
type Summary struct {
	Total         int `json:"total"`
	WithMunicipio int `json:"withMunicipio"`
	StateOnly     int `json:"stateOnly"`
}

// Sorted returns a copy of cases ordered by code count desc, entity count
// desc, then taxpayer ID asc.
func Sorted(cases []models.CrossMatchCase) []models.CrossMatchCase {
	out := make([]models.CrossMatchCase, len(cases))
	copy(out, cases)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.Codes) != len(b.Codes) {
			return len(a.Codes) > len(b.Codes)
		}
		if len(a.Entities) != len(b.Entities) {
			return len(a.Entities) > len(b.Entities)
		}
		return a.TaxpayerID < b.TaxpayerID
	})
	return out
}

// Summarize counts cases touching at least one municipio against cases
// involving only state entities. Unknown keys count as state entities.
func Summarize(cases []models.CrossMatchCase, cat catalog.Catalog) Summary {
	s := Summary{Total: len(cases)}
	for _, c := range cases {
		if hasMunicipio(c, cat) {
			s.WithMunicipio++
		} else {
			s.StateOnly++
		}
	}
	return s
}

func hasMunicipio(c models.CrossMatchCase, cat catalog.Catalog) bool {
	for _, key := range c.Entities {
		if cat.TypeOf(key) == models.EntityTypeMunicipio {
			return true
		}
	}
	return false
}

// Render builds the report text. It does not modify cases.
func Render(cases []models.CrossMatchCase, cat catalog.Catalog, opts Options) string {
	lines := []string{
		Title,
		strings.Repeat("=", ruleWidth),
		fmt.Sprintf("Base de datos: %s", opts.DBPath),
		fmt.Sprintf("Total casos incompatibilidad (RFC): %d", len(cases)),
		"",
	}

	if len(cases) == 0 {
		lines = append(lines, NoCasesLine)
		return strings.Join(lines, "\n")
	}

	ordered := Sorted(cases)
	summary := Summarize(ordered, cat)

	lines = append(lines,
		"Resumen de ambito:",
		fmt.Sprintf("- Casos con al menos un municipio: %d", summary.WithMunicipio),
		fmt.Sprintf("- Casos solo entre entes estatales: %d", summary.StateOnly),
		"",
	)

	shown := len(ordered)
	if opts.DetailLimit > 0 && opts.DetailLimit < shown {
		shown = opts.DetailLimit
	}
	lines = append(lines,
		fmt.Sprintf("Detalle (primeros %d casos):", shown),
		strings.Repeat("-", ruleWidth),
	)

	for i, c := range ordered[:shown] {
		lines = append(lines, caseBlock(i+1, c, cat)...)
	}
	return strings.Join(lines, "\n")
}

func caseBlock(index int, c models.CrossMatchCase, cat catalog.Catalog) []string {
	name := c.Name
	if name == "" {
		name = noName
	}

	entities := noEntity
	if len(c.Entities) > 0 {
		labels := make([]string, len(c.Entities))
		for i, key := range c.Entities {
			labels[i] = cat.Display(key)
		}
		entities = strings.Join(labels, listSeparator)
	}

	codes := noCode
	if len(c.Codes) > 0 {
		codes = strings.Join(c.Codes, listSeparator)
	}

	return []string{
		fmt.Sprintf("%02d. RFC: %s", index, c.TaxpayerID),
		fmt.Sprintf("    Nombre: %s", name),
		fmt.Sprintf("    Entes con cruce: %s", entities),
		fmt.Sprintf("    QNAs en cruce: %s", codes),
	}
}
