package cluster

import (
	"fmt"
	"strconv"

	"github.com/0xcc/jvm-tools/internal/heap/hpath"
	"github.com/0xcc/jvm-tools/internal/heap/model"
	"github.com/0xcc/jvm-tools/internal/heap/refset"
)

// pathBuf is the shared mutable scratch buffer for traversal path text.
// Branches truncate it back to their starting length on return, so callback
// paths are exact field-access strings from the cluster root.
type pathBuf struct {
	b []byte
}

func (p *pathBuf) Len() int          { return len(p.b) }
func (p *pathBuf) Truncate(n int)    { p.b = p.b[:n] }
func (p *pathBuf) Append(s string)   { p.b = append(p.b, s...) }
func (p *pathBuf) AppendIndex(n int) { p.b = append(append(append(p.b, '['), strconv.Itoa(n)...), ']') }
func (p *pathBuf) String() string    { return string(p.b) }

// analyze runs the configured traversal from every entry point resolved
// against the cluster root.
func (a *Analyzer) analyze(c *Cluster, accountShared bool) error {
	if a.breadthFirst {
		for _, ep := range a.entryPoints {
			for _, i := range hpath.Collect(a.heap, c.Root, ep.locator) {
				if err := a.widthWalk(c, i, accountShared); err != nil {
					return err
				}
			}
		}
		return nil
	}

	path := &pathBuf{}
	for _, ep := range a.entryPoints {
		path.Truncate(0)
		path.Append("(" + shortName(c.Root.Class.Name) + ")")
		mark := path.Len()
		var walkErr error
		hpath.Track(a.heap, c.Root, ep.locator, func(m hpath.Move) bool {
			path.Truncate(mark)
			path.Append(m.PathSpec)
			walkErr = a.walk(c, m.Instance, path, 0, accountShared)
			return walkErr == nil
		})
		if walkErr != nil {
			return walkErr
		}
	}
	return nil
}

// walk visits one object depth-first. The per-cluster membership set doubles
// as the cycle guard: a test-and-set hit means the object was already
// visited on another branch.
func (a *Analyzer) walk(c *Cluster, i *model.Instance, path *pathBuf, depth int, accountShared bool) error {
	if i == nil {
		return nil
	}
	if i.Class == nil {
		err := &TraversalFault{Path: path.String(), ClassName: "?", Err: fmt.Errorf("object %d has no class descriptor", i.ID)}
		a.log.WithField("path", err.Path).Error(err.Error())
		return err
	}
	if a.ignoreRefs.Get(i.ID) {
		return nil
	}
	if a.blacklist[i.Class.Name] {
		return nil
	}

	// A branch truncated by the depth threshold does not retain its last
	// object; it is only surfaced through the diagnostic callback.
	if depth == a.depthThreshold {
		if a.onDeepPath != nil {
			a.onDeepPath(c.Root, path.String(), i)
		}
		return nil
	}

	if c.objects.GetAndSet(i.ID, true) {
		return nil
	}

	if !accountShared || a.sharedRefs.Get(i.ID) {
		c.Summary.Accumulate(i)
	}

	// Shared subgraphs are not re-expanded per cluster. This bounds cost,
	// at the price of a cluster histogram missing memory only reachable
	// through an already-shared node on this branch.
	if a.sharedRefs.Get(i.ID) {
		if a.onSharedPath != nil {
			a.onSharedPath(c.Root, path.String(), i)
		}
		return nil
	}

	mark := path.Len()
	defer path.Truncate(mark)

	if i.IsArray() {
		if a.isBlacklistedArray(i.Class) {
			return nil
		}
		for n, ref := range i.Elements {
			if ref == 0 {
				continue
			}
			// early check to avoid a needless lookup
			if a.ignoreRefs.Get(ref) || c.objects.Get(ref) {
				continue
			}
			path.Truncate(mark)
			path.AppendIndex(n)
			if err := a.walk(c, a.heap.Instance(ref), path, depth+1, accountShared); err != nil {
				return err
			}
		}
		return nil
	}

	for _, fv := range i.Fields {
		if !fv.Field.Reference {
			continue
		}
		if a.isBlacklistedField(fv.Field) {
			continue
		}
		if a.ignoreRefs.Get(fv.ObjectID) {
			continue
		}
		path.Truncate(mark)
		path.Append(".")
		path.Append(fv.Field.Name)
		if err := a.walk(c, a.heap.Instance(fv.ObjectID), path, depth+1, accountShared); err != nil {
			return err
		}
	}
	return nil
}

// widthWalk is the breadth-first traversal. The frontier is a RefSet
// draining itself through successor queries instead of an explicit queue:
// an id is inserted when discovered and cleared when dequeued, and the
// cluster membership set keeps an id from ever being expanded twice.
func (a *Analyzer) widthWalk(c *Cluster, root *model.Instance, accountShared bool) error {
	queue := refset.New()
	queue.Set(root.ID, true)
	for {
		n, ok := queue.SeekOne(1) // 0 is the null identity
		if !ok {
			break
		}
		for {
			id, ok := queue.SeekOne(n)
			if !ok {
				break
			}
			n = id + 1

			queue.Set(id, false)
			if a.ignoreRefs.Get(id) {
				continue
			}

			i := a.heap.Instance(id)
			if i == nil || i.Class == nil {
				err := &TraversalFault{Path: "", ClassName: "?", Err: fmt.Errorf("queued object %d cannot be resolved", id)}
				a.log.WithField("root", root.ID).Error(err.Error())
				return err
			}
			if a.blacklist[i.Class.Name] {
				continue
			}
			if c.objects.GetAndSet(id, true) {
				continue
			}

			if !accountShared || a.sharedRefs.Get(id) {
				c.Summary.Accumulate(i)
			}

			if i.IsArray() {
				if a.isBlacklistedArray(i.Class) {
					continue
				}
				for _, ref := range i.Elements {
					if ref != 0 && !a.ignoreRefs.Get(ref) && !c.objects.Get(ref) {
						queue.Set(ref, true)
					}
				}
				continue
			}

			for _, fv := range i.Fields {
				if !fv.Field.Reference || a.isBlacklistedField(fv.Field) {
					continue
				}
				if fv.ObjectID != 0 && !a.ignoreRefs.Get(fv.ObjectID) && !c.objects.Get(fv.ObjectID) {
					queue.Set(fv.ObjectID, true)
				}
			}
		}
	}
	return nil
}
