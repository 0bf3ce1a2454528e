package model

import (
	"slices"
)

// MemHeap is a map-backed Heap implementation used by the snapshot loader
// and by tests.
type MemHeap struct {
	classes   map[string]*JavaClass
	classList []*JavaClass
	instances map[ID]*Instance
}

// NewMemHeap creates an empty in-memory heap.
func NewMemHeap() *MemHeap {
	return &MemHeap{
		classes:   make(map[string]*JavaClass),
		instances: make(map[ID]*Instance),
	}
}

// AddClass registers a class descriptor. Registration order is preserved for
// Classes().
func (h *MemHeap) AddClass(c *JavaClass) {
	if _, ok := h.classes[c.Name]; ok {
		return
	}
	h.classes[c.Name] = c
	h.classList = append(h.classList, c)
}

// Class returns a class descriptor by fully-qualified name, nil when unknown.
func (h *MemHeap) Class(name string) *JavaClass {
	return h.classes[name]
}

// AddInstance registers an object. Objects with ID 0 are ignored.
func (h *MemHeap) AddInstance(i *Instance) {
	if i.ID == 0 {
		return
	}
	h.instances[i.ID] = i
}

func (h *MemHeap) Classes() []*JavaClass {
	return h.classList
}

func (h *MemHeap) Instance(id ID) *Instance {
	if id == 0 {
		return nil
	}
	return h.instances[id]
}

// NumInstances returns the total number of objects in the heap.
func (h *MemHeap) NumInstances() int {
	return len(h.instances)
}

// Instances returns all objects in ascending identity order so that feeding
// a whole heap is deterministic.
func (h *MemHeap) Instances() []*Instance {
	all := make([]*Instance, 0, len(h.instances))
	for _, i := range h.instances {
		all = append(all, i)
	}
	slices.SortFunc(all, func(a, b *Instance) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return all
}
