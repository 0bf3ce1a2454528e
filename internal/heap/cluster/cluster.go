package cluster

import (
	"github.com/0xcc/jvm-tools/internal/heap/model"
	"github.com/0xcc/jvm-tools/internal/heap/refset"
)

// Cluster is the analysis result for one root object: the set of objects it
// retains after filtering, accumulated per class.
type Cluster struct {
	// Root is the object the cluster was built from.
	Root *model.Instance

	// Summary accumulates every retained object by class.
	Summary *Histogram

	// SharedSummary accumulates only the retained objects known to be
	// shared with other clusters. Populated by Analyzer.AccountShared.
	SharedSummary *Histogram

	objects *refset.RefSet
}

// Objects returns the full membership identity set, or nil once the set has
// been released (membership retention disabled and a later object was fed).
func (c *Cluster) Objects() *refset.RefSet {
	return c.objects
}

// Size returns the total retained bytes of the cluster.
func (c *Cluster) Size() int64 {
	return c.Summary.TotalSize()
}

// Count returns the number of retained objects.
func (c *Cluster) Count() int64 {
	return c.Summary.TotalCount()
}
