package document

import (
	"sort"
	"strings"
)

// Builder merges fetched rows into display-ready views. All default
// substitution for absent metadata lives here: no consumer ever sees an
// empty category or a zero document date.
type Builder struct {
	urlFor func(key string) string
}

// NewBuilder creates a Builder. urlFor turns a blob object key into the
// URL the UI downloads from.
func NewBuilder(urlFor func(key string) string) *Builder {
	return &Builder{urlFor: urlFor}
}

// Build merges and filters rows, preserving the adapter's native order
// (upload_timestamp descending).
func (b *Builder) Build(rows []Row, searchQuery string) []View {
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		v := b.merge(row)
		if matchesQuery(v, searchQuery) {
			views = append(views, v)
		}
	}
	return views
}

// Timeline merges and filters rows, then re-orders by document_date
// descending. The sort is stable: equal dates preserve the adapter's
// order.
func (b *Builder) Timeline(rows []Row, searchQuery string) []View {
	views := b.Build(rows, searchQuery)
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].DocumentDate.After(views[j].DocumentDate)
	})
	return views
}

func (b *Builder) merge(row Row) View {
	v := View{
		ID:           row.Header.ID,
		Title:        row.Header.Title,
		Category:     DefaultCategory,
		DocumentDate: row.Header.UploadTimestamp,
		FileName:     row.Header.FileName,
		FileSize:     row.Header.FileSize,
		ContentType:  row.Header.ContentType,
		UploadedAt:   row.Header.UploadTimestamp,
	}
	if b.urlFor != nil {
		v.FileURL = b.urlFor(row.Header.FileLocation)
	}
	if row.Metadata.Present {
		if row.Metadata.Category != "" {
			v.Category = row.Metadata.Category
		}
		if row.Metadata.DocumentDate != nil {
			v.DocumentDate = *row.Metadata.DocumentDate
		}
		v.DoctorName = row.Metadata.DoctorName
		v.HospitalName = row.Metadata.HospitalName
		v.Notes = row.Metadata.Summary
	}
	return v
}

// matchesQuery reports whether a view passes the search filter:
// case-insensitive substring match against title, category, doctor name,
// and hospital name. An empty query passes everything; absent optional
// fields never match.
func matchesQuery(v View, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{v.Title, v.Category, v.DoctorName, v.HospitalName} {
		if field != "" && strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
