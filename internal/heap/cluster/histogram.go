package cluster

import (
	"slices"
	"strings"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

// HistogramEntry is the per-class accumulation of one histogram.
type HistogramEntry struct {
	ClassName string
	Count     int64
	TotalSize int64
}

// Histogram accumulates object count and byte size per class.
type Histogram struct {
	entries    map[string]*HistogramEntry
	totalCount int64
	totalSize  int64
}

// NewHistogram creates an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{entries: make(map[string]*HistogramEntry)}
}

// Accumulate adds one instance to its class bucket.
func (h *Histogram) Accumulate(i *model.Instance) {
	e := h.entries[i.Class.Name]
	if e == nil {
		e = &HistogramEntry{ClassName: i.Class.Name}
		h.entries[i.Class.Name] = e
	}
	e.Count++
	e.TotalSize += i.Size
	h.totalCount++
	h.totalSize += i.Size
}

// Entry returns the bucket for a class name, nil when the class was never
// accumulated.
func (h *Histogram) Entry(className string) *HistogramEntry {
	return h.entries[className]
}

// Entries returns all buckets ordered by total size descending, ties broken
// by class name.
func (h *Histogram) Entries() []*HistogramEntry {
	out := make([]*HistogramEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *HistogramEntry) int {
		switch {
		case a.TotalSize > b.TotalSize:
			return -1
		case a.TotalSize < b.TotalSize:
			return 1
		default:
			return strings.Compare(a.ClassName, b.ClassName)
		}
	})
	return out
}

// TotalCount returns the number of accumulated objects.
func (h *Histogram) TotalCount() int64 {
	return h.totalCount
}

// TotalSize returns the accumulated byte size.
func (h *Histogram) TotalSize() int64 {
	return h.totalSize
}
