// internal/models/labor.go
package models

import "sort"

// CodeSet is a set of QNA codes.
type CodeSet map[string]struct{}

// NewCodeSet builds a set from the given codes.
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s CodeSet) Len() int { return len(s) }

func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Intersect returns the codes present in both sets.
func (s CodeSet) Intersect(other CodeSet) CodeSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(CodeSet)
	for c := range small {
		if large.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Codes is the decoded form of the stored qnas column. It is either
// StructuredCodes or Unparseable.
type Codes interface {
	CodeSet() CodeSet
	isCodes()
}

// StructuredCodes holds the keys of a mapping-shaped qnas value.
type StructuredCodes struct {
	Set CodeSet
}

func (c StructuredCodes) CodeSet() CodeSet {
	if c.Set == nil {
		return CodeSet{}
	}
	return c.Set
}

func (StructuredCodes) isCodes() {}

// Unparseable marks a qnas value that was not a mapping. It contributes no codes.
type Unparseable struct {
	Reason string
}

func (Unparseable) CodeSet() CodeSet { return CodeSet{} }

func (Unparseable) isCodes() {}

// LaborRecord is one row of registros_laborales after coercion.
type LaborRecord struct {
	TaxpayerID string `json:"rfc"`
	EntityKey  string `json:"ente"`
	Name       string `json:"nombre"`
	Codes      Codes  `json:"-"`
}

// CodeSet is a shortcut for r.Codes.CodeSet() that tolerates a nil Codes.
func (r LaborRecord) CodeSet() CodeSet {
	if r.Codes == nil {
		return CodeSet{}
	}
	return r.Codes.CodeSet()
}

// RecordGroup holds every record loaded for one taxpayer ID, in load order.
type RecordGroup struct {
	TaxpayerID string
	Records    []LaborRecord
}

// CrossMatchCase is one taxpayer ID with at least one QNA shared across entities.
type CrossMatchCase struct {
	TaxpayerID string   `json:"rfc"`
	Name       string   `json:"nombre"`
	Entities   []string `json:"entes"`      // sorted
	Codes      []string `json:"qnas_cruce"` // sorted, never empty
}

// EntityType classifies a catalog entry.
type EntityType string

const (
	EntityTypeEnte      EntityType = "ENTE"
	EntityTypeMunicipio EntityType = "MUNICIPIO"
)

// CatalogEntry resolves an entity or municipality key for display.
type CatalogEntry struct {
	Key     string     `json:"clave"`
	Display string     `json:"display"`
	Type    EntityType `json:"tipo"`
}
