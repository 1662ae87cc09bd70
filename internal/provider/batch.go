package provider

import "github.com/LibrePCB/librepcb-api-server/internal/model"

// Batch is the working set of one resolve call. Entries keep the order of the
// queries they were created from and are resolved at most once.
type Batch struct {
	queries []model.PartQuery
	results []*model.PartResult
}

// NewBatch creates a batch for queries. The slice is copied.
func NewBatch(queries []model.PartQuery) *Batch {
	return &Batch{
		queries: append([]model.PartQuery(nil), queries...),
		results: make([]*model.PartResult, len(queries)),
	}
}

// Len returns the number of entries.
func (b *Batch) Len() int { return len(b.queries) }

// Query returns the query of entry i.
func (b *Batch) Query(i int) model.PartQuery { return b.queries[i] }

// Resolved reports whether entry i already carries a result.
func (b *Batch) Resolved(i int) bool { return b.results[i] != nil }

// Unresolved returns the indices of entries without a result, in order.
func (b *Batch) Unresolved() []int {
	var idx []int
	for i, r := range b.results {
		if r == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Resolve attaches r to entry i unless the entry is already resolved. The
// result always echoes the entry's query. It reports whether r was stored.
func (b *Batch) Resolve(i int, r model.PartResult) bool {
	if b.results[i] != nil {
		return false
	}
	r.MPN = b.queries[i].MPN
	r.Manufacturer = b.queries[i].Manufacturer
	b.results[i] = &r
	return true
}

// Results returns one result per entry in query order. Unresolved entries
// are reported as not found.
func (b *Batch) Results() []model.PartResult {
	out := make([]model.PartResult, len(b.queries))
	for i, q := range b.queries {
		if r := b.results[i]; r != nil {
			out[i] = *r
		} else {
			out[i] = model.NotFound(q)
		}
	}
	return out
}

// Found returns the number of entries resolved with a matching product.
func (b *Batch) Found() int {
	n := 0
	for _, r := range b.results {
		if r != nil && r.Found() {
			n++
		}
	}
	return n
}
