package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// HashContent generates a deterministic 64-bit hash from text content using
// BLAKE2b. It is stored beside an embedding so a regenerated summary can be
// detected as stale without comparing full text.
func HashContent(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// Artifact represents a single catalog item. Rows are created by an
// out-of-band import; the harvester fills enrichment fields, the summary
// writer derives EmbeddingSummary, and the embedding generator sets
// Embedding, SummaryHash and ProcessedAt.
//
// Enrichment fields use "" to mean "not yet populated". Embedding uses nil.
type Artifact struct {
	ObjectID int64 // stable external identifier, unique, immutable

	Title        string
	Artist       string
	Date         string
	Medium       string
	Culture      string
	Department   string
	CreditLine   string
	Description  string
	PrimaryImage string

	EmbeddingSummary string
	Embedding        []float32
	SummaryHash      uint64
	ProcessedAt      *time.Time

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// ExtractedFields holds the fields the harvester pulled out of a fetched
// document. A nil pointer means "not found", which is distinct from a found
// but empty value.
type ExtractedFields struct {
	PrimaryImage *string
	Description  *string
	Artist       *string
	Date         *string
	Medium       *string
	Culture      *string
	CreditLine   *string
}

// IsEmpty reports whether no field was extracted.
func (f *ExtractedFields) IsEmpty() bool {
	return f.PrimaryImage == nil && f.Description == nil && f.Artist == nil &&
		f.Date == nil && f.Medium == nil && f.Culture == nil && f.CreditLine == nil
}

// fieldSlot pairs a merge target with its column name.
type fieldSlot struct {
	name      string
	extracted func(*ExtractedFields) *string
	current   func(*Artifact) *string
}

// mergeSlots drives MergeExtracted generically so adding a tracked field is
// a single table entry.
var mergeSlots = []fieldSlot{
	{"primary_image", func(f *ExtractedFields) *string { return f.PrimaryImage }, func(a *Artifact) *string { return &a.PrimaryImage }},
	{"description", func(f *ExtractedFields) *string { return f.Description }, func(a *Artifact) *string { return &a.Description }},
	{"artist", func(f *ExtractedFields) *string { return f.Artist }, func(a *Artifact) *string { return &a.Artist }},
	{"date", func(f *ExtractedFields) *string { return f.Date }, func(a *Artifact) *string { return &a.Date }},
	{"medium", func(f *ExtractedFields) *string { return f.Medium }, func(a *Artifact) *string { return &a.Medium }},
	{"culture", func(f *ExtractedFields) *string { return f.Culture }, func(a *Artifact) *string { return &a.Culture }},
	{"credit_line", func(f *ExtractedFields) *string { return f.CreditLine }, func(a *Artifact) *string { return &a.CreditLine }},
}

// MergeExtracted applies extracted fields to an artifact with the
// monotonic-additive policy: a field transitions only from empty to
// populated, never populated to empty or populated to a different value.
// Returns the names of fields that changed. The policy makes harvester runs
// idempotent and merges commutative across items.
func MergeExtracted(a *Artifact, fields ExtractedFields) []string {
	var changed []string
	for _, slot := range mergeSlots {
		src := slot.extracted(&fields)
		if src == nil || *src == "" {
			continue
		}
		dst := slot.current(a)
		if *dst != "" {
			continue
		}
		*dst = *src
		changed = append(changed, slot.name)
	}
	return changed
}

// NeedsEnrichment reports whether any tracked enrichment field is still
// unpopulated, i.e. the harvester should select this artifact.
func (a *Artifact) NeedsEnrichment() bool {
	for _, slot := range mergeSlots {
		if *slot.current(a) == "" {
			return true
		}
	}
	return false
}

// HasSummaryInput reports whether the artifact carries enough enrichment
// text for the summary writer to work with.
func (a *Artifact) HasSummaryInput() bool {
	return a.Description != "" || a.PrimaryImage != ""
}

// SearchResult pairs an artifact with its similarity score for a query.
type SearchResult struct {
	Artifact   *Artifact
	Similarity float32
}
