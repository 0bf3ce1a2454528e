// Package cluster implements the heap cluster analysis engine: for a
// configured set of interesting root types it builds the cluster of objects
// each fed root retains, detects objects shared between clusters, and
// accounts the shared memory with a bounded error margin.
package cluster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/0xcc/jvm-tools/internal/heap/hpath"
	"github.com/0xcc/jvm-tools/internal/heap/model"
	"github.com/0xcc/jvm-tools/internal/heap/refset"
)

// DefaultDepthThreshold bounds how many field hops from an entry point a
// traversal follows before truncating the branch.
const DefaultDepthThreshold = 30

// ErrNoRootTypes is returned by Feed when no root classes were resolved,
// either because no entry point was registered or none of its type filters
// matched a class in the heap.
var ErrNoRootTypes = errors.New("interesting types are not defined")

// TraversalFault wraps a fault raised while visiting one object during a
// walk. Partial cluster state accumulated before the fault is kept.
type TraversalFault struct {
	Path      string
	ClassName string
	Err       error
}

func (e *TraversalFault) Error() string {
	return fmt.Sprintf("fail path <%s> ending with %s: %v", e.Path, e.ClassName, e.Err)
}

func (e *TraversalFault) Unwrap() error {
	return e.Err
}

// PathFunc observes one truncated or shared traversal branch: the cluster
// root, the exact path text from it, and the object the branch stopped at.
type PathFunc func(root *model.Instance, path string, obj *model.Instance)

type entryPoint struct {
	path    string
	locator []hpath.Step
}

type blacklistFieldRule struct {
	filter *hpath.TypeFilterStep
	field  string // empty means every field of a matching class
}

// Analyzer builds retained clusters for root objects fed to it. Configure
// it, call Prepare once, then Feed candidate roots one at a time; the
// analyzer is not safe for concurrent use.
type Analyzer struct {
	heap model.Heap

	depthThreshold int
	keepClusters   bool
	keepMembership bool
	breadthFirst   bool

	rootTypes       []*hpath.TypeFilterStep
	blacklistTypes  []*hpath.TypeFilterStep
	blacklistFields []blacklistFieldRule

	rootClasses map[string]bool
	entryPoints []entryPoint
	blacklist   map[string]bool

	onDeepPath   PathFunc
	onSharedPath PathFunc

	ignoreRefs *refset.RefSet
	knownRefs  *refset.RefSet
	sharedRefs *refset.RefSet

	clusters []*Cluster
	last     *Cluster

	sharedSummary     *Histogram
	sharedErrorMargin int64

	log *logrus.Logger
}

// New creates an analyzer over a heap with default configuration:
// depth-first search, depth threshold 30, finalized clusters kept,
// per-cluster membership released after the next Feed.
func New(heap model.Heap) *Analyzer {
	a := &Analyzer{
		heap:           heap,
		depthThreshold: DefaultDepthThreshold,
		keepClusters:   true,
		rootClasses:    make(map[string]bool),
		blacklist:      make(map[string]bool),
		ignoreRefs:     refset.New(),
		knownRefs:      refset.New(),
		sharedRefs:     refset.New(),
		sharedSummary:  NewHistogram(),
		log:            logrus.StandardLogger(),
	}
	a.onDeepPath = a.logDeepPath
	return a
}

// SetLogger replaces the diagnostic logger.
func (a *Analyzer) SetLogger(log *logrus.Logger) {
	a.log = log
}

// SetGraphDepthThreshold sets the maximum field-hop distance from an entry
// point before a branch is truncated.
func (a *Analyzer) SetGraphDepthThreshold(threshold int) {
	a.depthThreshold = threshold
}

// UseBreadthSearch switches cluster traversal to breadth-first mode.
func (a *Analyzer) UseBreadthSearch() {
	a.breadthFirst = true
}

// KeepClusters controls whether finalized clusters are retained and
// reported by Clusters.
func (a *Analyzer) KeepClusters(enable bool) {
	a.keepClusters = enable
}

// KeepClusterMembership controls whether a cluster's full membership set
// survives past the next Feed call. Off by default: at most one cluster's
// membership is resident at a time.
func (a *Analyzer) KeepClusterMembership(enable bool) {
	a.keepMembership = enable
}

// SetDeepPathFunc replaces the callback invoked once per branch truncated by
// the depth threshold. The default logs the path at debug level.
func (a *Analyzer) SetDeepPathFunc(fn PathFunc) {
	a.onDeepPath = fn
}

// SetSharedPathFunc sets the callback invoked once per branch that reaches
// an object already known to be shared.
func (a *Analyzer) SetSharedPathFunc(fn PathFunc) {
	a.onSharedPath = fn
}

// AddEntryPoint registers a path expression defining where cluster
// traversal begins relative to a root. The path must start with a type
// filter; that filter also registers the root type predicate.
func (a *Analyzer) AddEntryPoint(path string) error {
	steps, err := hpath.ParsePath(path, true)
	if err != nil {
		return fmt.Errorf("invalid entry point: %w", err)
	}
	tf, ok := steps[0].(*hpath.TypeFilterStep)
	if !ok {
		return fmt.Errorf("invalid entry point %q: %w", path, hpath.ErrEntryPointShape)
	}
	a.rootTypes = append(a.rootTypes, tf)
	a.entryPoints = append(a.entryPoints, entryPoint{path: path, locator: steps})
	return nil
}

// Blacklist registers an exclusion rule: a single type filter excludes every
// object of matching classes, a type filter followed by one field access
// excludes traversal of that field on matching classes.
func (a *Analyzer) Blacklist(pathSuffix string) error {
	steps, err := hpath.ParsePath(pathSuffix, true)
	if err != nil {
		return fmt.Errorf("invalid blacklist suffix: %w", err)
	}
	tf, ok := steps[0].(*hpath.TypeFilterStep)
	if !ok || len(steps) > 2 {
		return fmt.Errorf("invalid blacklist suffix %q: want a type filter or a type filter with one field", pathSuffix)
	}
	switch len(steps) {
	case 1:
		a.blacklistTypes = append(a.blacklistTypes, tf)
	case 2:
		fs, ok := steps[1].(*hpath.FieldStep)
		if !ok {
			return fmt.Errorf("invalid blacklist suffix %q: want a type filter or a type filter with one field", pathSuffix)
		}
		a.blacklistFields = append(a.blacklistFields, blacklistFieldRule{filter: tf, field: fs.FieldName()})
	}
	return nil
}

// AddBlacklistToken registers a literal blacklist token: an exact class
// name, "ClassName#field", or "ClassName[*]" to exclude array elements.
func (a *Analyzer) AddBlacklistToken(token string) {
	a.blacklist[token] = true
}

// MarkShared pre-seeds the shared set, e.g. from a persisted previous run.
func (a *Analyzer) MarkShared(id model.ID) {
	a.sharedRefs.Set(id, true)
}

// MarkIgnored excludes one object from every traversal.
func (a *Analyzer) MarkIgnored(id model.ID) {
	a.ignoreRefs.Set(id, true)
}

// MarkIgnoredSet excludes every identity in the set from traversal.
func (a *Analyzer) MarkIgnoredSet(refs *refset.RefSet) {
	a.ignoreRefs.Add(refs)
}

// Prepare resolves entry point and blacklist predicates against every class
// descriptor in the heap. Call it once, after configuration and before the
// first Feed.
func (a *Analyzer) Prepare() {
	for _, ep := range a.entryPoints {
		a.log.WithField("path", ep.path).Debug("entry point registered")
	}
	for _, c := range a.heap.Classes() {
		for _, rt := range a.rootTypes {
			if rt.Evaluate(c) {
				a.rootClasses[c.Name] = true
			}
		}
		for _, bt := range a.blacklistTypes {
			if bt.Evaluate(c) {
				a.blacklist[c.Name] = true
			}
		}
		for _, rule := range a.blacklistFields {
			if !rule.filter.Evaluate(c) {
				continue
			}
			for _, f := range c.Fields {
				if f.DeclaringClass != c.Name {
					continue
				}
				if rule.field == "" || rule.field == f.Name {
					a.blacklist[c.Name+"#"+f.Name] = true
				}
			}
		}
	}
}

// Feed offers one candidate root object. When its class is a registered
// root class a cluster is built synchronously and returned; otherwise Feed
// returns (nil, nil) and does no work. The previous cluster's membership
// set is released first unless retention is enabled.
func (a *Analyzer) Feed(i *model.Instance) (*Cluster, error) {
	if a.last != nil {
		if !a.keepMembership {
			a.last.objects = nil
		}
		a.last = nil
	}
	if len(a.rootClasses) == 0 {
		return nil, ErrNoRootTypes
	}
	if !a.rootClasses[i.Class.Name] {
		return nil, nil
	}

	c := &Cluster{
		Root:    i,
		Summary: NewHistogram(),
		objects: refset.New(),
	}
	if err := a.analyze(c, false); err != nil {
		return nil, err
	}
	a.updateKnownMap(c)

	if a.keepClusters {
		a.clusters = append(a.clusters, c)
	}
	a.last = c
	return c, nil
}

// AccountShared re-walks a cluster's entry points and fills
// c.SharedSummary with the retained objects already confirmed shared.
func (a *Analyzer) AccountShared(c *Cluster) error {
	c.SharedSummary = NewHistogram()
	shadow := &Cluster{
		Root:    c.Root,
		Summary: c.SharedSummary,
		objects: refset.New(),
	}
	return a.analyze(shadow, true)
}

// updateKnownMap merges a finished cluster into the global known set. Each
// rediscovery of an already-known object raises the shared error margin by
// that object's size, once per cluster beyond the first that reached it; a
// first confirmed sharing additionally enters the shared summary.
func (a *Analyzer) updateKnownMap(c *Cluster) {
	c.objects.ForEach(func(id model.ID) bool {
		if !a.knownRefs.GetAndSet(id, true) {
			return true
		}
		i := a.heap.Instance(id)
		if i == nil {
			return true
		}
		a.sharedErrorMargin += i.Size
		if !a.sharedRefs.GetAndSet(id, true) {
			a.sharedSummary.Accumulate(i)
		}
		return true
	})
}

// Clusters returns every retained cluster, in feed order.
func (a *Analyzer) Clusters() []*Cluster {
	return a.clusters
}

// SharedSummary returns the global histogram of objects confirmed to belong
// to two or more clusters.
func (a *Analyzer) SharedSummary() *Histogram {
	return a.sharedSummary
}

// SharedErrorMargin returns the accumulated byte over-approximation from
// objects discovered in more than one cluster.
func (a *Analyzer) SharedErrorMargin() int64 {
	return a.sharedErrorMargin
}

func (a *Analyzer) logDeepPath(root *model.Instance, path string, obj *model.Instance) {
	a.log.WithFields(logrus.Fields{
		"root":  root.ID,
		"path":  path,
		"class": obj.Class.Name,
	}).Debug("deep reference truncated")
}

func (a *Analyzer) isBlacklistedArray(c *model.JavaClass) bool {
	return a.blacklist[c.Name+"[*]"]
}

func (a *Analyzer) isBlacklistedField(f *model.Field) bool {
	return a.blacklist[f.DeclaringClass+"#"+f.Name]
}

// shortName compresses a fully-qualified class name for path display,
// "java.util.HashMap" becoming "**.HashMap".
func shortName(name string) string {
	if c := strings.LastIndexByte(name, '.'); c >= 0 {
		return "**." + name[c+1:]
	}
	return name
}
