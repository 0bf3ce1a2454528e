package hpath

import (
	"github.com/0xcc/jvm-tools/internal/heap/model"
)

// Move is one terminal match of a tracked path: the matched object and the
// exact dot/bracket path text that reached it from the root.
type Move struct {
	Instance *model.Instance
	PathSpec string
}

// Track walks the step sequence depth-first from root and invokes fn for
// every terminal match in discovery order. fn returning false stops the
// walk. A null or missing reference terminates its branch silently.
func Track(h model.Heap, root *model.Instance, steps []Step, fn func(Move) bool) {
	track(h, root, "", steps, fn)
}

func track(h model.Heap, i *model.Instance, prefix string, steps []Step, fn func(Move) bool) bool {
	if i == nil {
		return true
	}
	if len(steps) == 0 {
		return fn(Move{Instance: i, PathSpec: prefix})
	}
	return steps[0].walk(h, i, func(frag string, next *model.Instance) bool {
		return track(h, next, prefix+frag, steps[1:], fn)
	})
}

// Collect eagerly materializes every object matched by the path, each object
// at most once. Used to seed breadth-first traversal from possibly multiple
// entry objects.
func Collect(h model.Heap, root *model.Instance, steps []Step) []*model.Instance {
	var matches []*model.Instance
	seen := make(map[model.ID]bool)
	Track(h, root, steps, func(m Move) bool {
		if !seen[m.Instance.ID] {
			seen[m.Instance.ID] = true
			matches = append(matches, m.Instance)
		}
		return true
	})
	return matches
}
