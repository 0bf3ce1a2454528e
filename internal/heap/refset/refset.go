// Package refset provides a sparse set of heap object identities.
//
// Heap snapshots address up to 2^34+ identities but populate them sparsely,
// so the set is a collection of fixed-size bit pages keyed by the high-order
// identity bits. Pages are allocated on first write and the page index is
// kept sorted lazily, which makes ascending scans and successor queries
// cheap enough for the set to double as a breadth-first work queue.
package refset

import (
	"math/bits"
	"sort"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

const (
	pageBits  = 13 // 8192 identities per page
	pageWords = 1 << (pageBits - 6)
	pageMask  = 1<<pageBits - 1
)

type page [pageWords]uint64

// RefSet is a sparse set of object identities. The zero value is not usable;
// create instances with New.
type RefSet struct {
	pages map[model.ID]*page
	keys  []model.ID // sorted page keys, rebuilt lazily
	dirty bool
	count int64
}

// New creates an empty identity set.
func New() *RefSet {
	return &RefSet{pages: make(map[model.ID]*page)}
}

// Get reports whether id is in the set.
func (s *RefSet) Get(id model.ID) bool {
	p := s.pages[id>>pageBits]
	if p == nil {
		return false
	}
	off := id & pageMask
	return p[off>>6]&(1<<(off&63)) != 0
}

// Set adds or removes id.
func (s *RefSet) Set(id model.ID, value bool) {
	s.GetAndSet(id, value)
}

// GetAndSet swaps in the new membership value and returns the prior one.
func (s *RefSet) GetAndSet(id model.ID, value bool) bool {
	key := id >> pageBits
	p := s.pages[key]
	if p == nil {
		if !value {
			return false
		}
		p = new(page)
		s.pages[key] = p
		s.keys = append(s.keys, key)
		s.dirty = true
	}
	off := id & pageMask
	word, bit := off>>6, uint64(1)<<(off&63)
	prior := p[word]&bit != 0
	if value && !prior {
		p[word] |= bit
		s.count++
	} else if !value && prior {
		p[word] &^= bit
		s.count--
	}
	return prior
}

// Add unions another set into this one.
func (s *RefSet) Add(other *RefSet) {
	if other == nil {
		return
	}
	for key, op := range other.pages {
		p := s.pages[key]
		if p == nil {
			p = new(page)
			s.pages[key] = p
			s.keys = append(s.keys, key)
			s.dirty = true
		}
		for w, word := range op {
			added := word &^ p[w]
			p[w] |= word
			s.count += int64(bits.OnesCount64(added))
		}
	}
}

// SeekOne returns the smallest set identity >= from, or false when no such
// identity exists.
func (s *RefSet) SeekOne(from model.ID) (model.ID, bool) {
	s.sortKeys()
	fromKey := from >> pageBits
	idx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= fromKey })
	for ; idx < len(s.keys); idx++ {
		key := s.keys[idx]
		p := s.pages[key]
		start := model.ID(0)
		if key == fromKey {
			start = from & pageMask
		}
		for w := start >> 6; w < pageWords; w++ {
			word := p[w]
			if key == fromKey && w == start>>6 {
				word &= ^uint64(0) << (start & 63)
			}
			if word != 0 {
				bit := model.ID(bits.TrailingZeros64(word))
				return key<<pageBits | w<<6 | bit, true
			}
		}
	}
	return 0, false
}

// ForEach visits every set identity in ascending order until fn returns
// false.
func (s *RefSet) ForEach(fn func(model.ID) bool) {
	s.sortKeys()
	for _, key := range s.keys {
		p := s.pages[key]
		for w := model.ID(0); w < pageWords; w++ {
			word := p[w]
			for word != 0 {
				bit := model.ID(bits.TrailingZeros64(word))
				if !fn(key<<pageBits | w<<6 | bit) {
					return
				}
				word &= word - 1
			}
		}
	}
}

// Count returns the number of identities in the set.
func (s *RefSet) Count() int64 {
	return s.count
}

// IsEmpty reports whether the set has no identities.
func (s *RefSet) IsEmpty() bool {
	return s.count == 0
}

func (s *RefSet) sortKeys() {
	if !s.dirty {
		return
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i] < s.keys[j] })
	s.dirty = false
}
