// Package hpath implements the path expression micro-language used to locate
// entry points inside a heap object graph.
//
// A path is an ordered sequence of steps: type filters such as
// "(**.MyCache)", field accesses such as ".entries" or the wildcard ".*",
// and array element accesses "[*]" or "[3]".
package hpath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

// Step is one element of a parsed path expression. The variant set is
// closed: TypeFilterStep, FieldStep, ArrayStep.
type Step interface {
	fmt.Stringer

	// walk advances from one instance, invoking fn for every immediate
	// match with the path text fragment that reached it. Returning false
	// stops the walk.
	walk(h model.Heap, i *model.Instance, fn func(pathSpec string, next *model.Instance) bool) bool
}

// TypeFilterStep matches an instance by its class descriptor. The pattern
// uses "*" for one package segment and "**" for any prefix; a leading "+"
// also accepts subclasses of a matching type.
type TypeFilterStep struct {
	pattern    string
	subclasses bool
	re         *regexp.Regexp
}

// NewTypeFilter compiles a class-name pattern into a type filter step.
func NewTypeFilter(pattern string) (*TypeFilterStep, error) {
	raw := pattern
	subclasses := strings.HasPrefix(pattern, "+")
	if subclasses {
		pattern = pattern[1:]
	}
	if pattern == "" {
		return nil, fmt.Errorf("empty type filter pattern")
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad type filter %q: %w", raw, err)
	}
	return &TypeFilterStep{pattern: raw, subclasses: subclasses, re: re}, nil
}

// Evaluate reports whether a class descriptor passes the filter.
func (s *TypeFilterStep) Evaluate(c *model.JavaClass) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if s.re.MatchString(cur.Name) {
			return true
		}
		if !s.subclasses {
			break
		}
	}
	return false
}

func (s *TypeFilterStep) String() string {
	return "(" + s.pattern + ")"
}

func (s *TypeFilterStep) walk(h model.Heap, i *model.Instance, fn func(string, *model.Instance) bool) bool {
	if !s.Evaluate(i.Class) {
		return true
	}
	return fn("", i)
}

// compilePattern translates a class-name pattern to a regular expression.
// "**" matches any run of characters, "*" matches within one package
// segment, everything else is literal.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString(`[^.]*`)
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}

// FieldStep advances through a named reference field, or through every
// reference field in declaration order when it is the wildcard "*".
type FieldStep struct {
	name string // empty means wildcard
}

// NewFieldStep creates a field access step; name "*" or "" is the wildcard.
func NewFieldStep(name string) *FieldStep {
	if name == "*" {
		name = ""
	}
	return &FieldStep{name: name}
}

// FieldName returns the accessed field name, empty for the wildcard.
func (s *FieldStep) FieldName() string {
	return s.name
}

func (s *FieldStep) String() string {
	if s.name == "" {
		return ".*"
	}
	return "." + s.name
}

func (s *FieldStep) walk(h model.Heap, i *model.Instance, fn func(string, *model.Instance) bool) bool {
	if i.IsArray() {
		return true
	}
	for _, fv := range i.Fields {
		if !fv.Field.Reference {
			continue
		}
		if s.name != "" && s.name != fv.Field.Name {
			continue
		}
		next := h.Instance(fv.ObjectID)
		if next == nil {
			// null or dangling reference terminates the branch silently
			continue
		}
		if !fn("."+fv.Field.Name, next) {
			return false
		}
	}
	return true
}

// ArrayStep advances through one array element by index, or through every
// non-null element in index order when it is the wildcard "[*]".
type ArrayStep struct {
	index int // negative means wildcard
}

// NewArrayStep creates an array access step; a negative index is the
// wildcard.
func NewArrayStep(index int) *ArrayStep {
	return &ArrayStep{index: index}
}

func (s *ArrayStep) String() string {
	if s.index < 0 {
		return "[*]"
	}
	return fmt.Sprintf("[%d]", s.index)
}

func (s *ArrayStep) walk(h model.Heap, i *model.Instance, fn func(string, *model.Instance) bool) bool {
	if !i.IsArray() {
		return true
	}
	if s.index >= 0 {
		if s.index >= len(i.Elements) {
			return true
		}
		next := h.Instance(i.Elements[s.index])
		if next == nil {
			return true
		}
		return fn(fmt.Sprintf("[%d]", s.index), next)
	}
	for n, ref := range i.Elements {
		if ref == 0 {
			continue
		}
		next := h.Instance(ref)
		if next == nil {
			continue
		}
		if !fn(fmt.Sprintf("[%d]", n), next) {
			return false
		}
	}
	return true
}
