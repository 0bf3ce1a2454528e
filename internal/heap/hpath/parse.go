package hpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEntryPointShape is returned when a path that must begin with a type
// filter starts with anything else.
var ErrEntryPointShape = errors.New("path should start with a type filter")

// MalformedPathError reports a syntax error in a path expression.
type MalformedPathError struct {
	Path   string
	Pos    int
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed path %q at offset %d: %s", e.Path, e.Pos, e.Reason)
}

// ParsePath parses a path expression into its step sequence. When entry is
// true the first token must be a type filter (bracketed pattern or bare
// class name); otherwise a bare leading token is a field access.
func ParsePath(text string, entry bool) ([]Step, error) {
	var steps []Step
	pos := 0
	fail := func(at int, reason string) ([]Step, error) {
		return nil, &MalformedPathError{Path: text, Pos: at, Reason: reason}
	}

	if entry && text != "" && text[0] != '(' && text[0] != '.' && text[0] != '[' {
		// Bare form: the whole expression is one class-name pattern, e.g.
		// "com.foo.Bar". Composite paths must bracket the filter.
		if i := strings.IndexAny(text, "()[]"); i >= 0 {
			return fail(i, "bare type filter cannot be combined with further steps, use (pattern)")
		}
		tf, err := NewTypeFilter(text)
		if err != nil {
			return fail(0, err.Error())
		}
		return []Step{tf}, nil
	}

	for pos < len(text) {
		start := pos
		switch c := text[pos]; {
		case c == '(':
			end := indexFrom(text, pos, ')')
			if end < 0 {
				return fail(start, "unterminated type filter")
			}
			tf, err := NewTypeFilter(text[pos+1 : end])
			if err != nil {
				return fail(start, err.Error())
			}
			steps = append(steps, tf)
			pos = end + 1

		case c == '[':
			if entry && len(steps) == 0 {
				return nil, fmt.Errorf("%q: %w", text, ErrEntryPointShape)
			}
			end := indexFrom(text, pos, ']')
			if end < 0 {
				return fail(start, "unterminated array index")
			}
			tok := text[pos+1 : end]
			if tok == "*" {
				steps = append(steps, NewArrayStep(-1))
			} else {
				n, err := strconv.Atoi(tok)
				if err != nil || n < 0 {
					return fail(start, fmt.Sprintf("invalid array index %q", tok))
				}
				steps = append(steps, NewArrayStep(n))
			}
			pos = end + 1

		case c == '.':
			if len(steps) == 0 {
				if entry {
					return nil, fmt.Errorf("%q: %w", text, ErrEntryPointShape)
				}
				return fail(start, "path starts with a separator")
			}
			pos++
			name, next := readToken(text, pos)
			if name == "" {
				return fail(start, "empty field name")
			}
			steps = append(steps, NewFieldStep(name))
			pos = next

		default:
			// bare leading field token, e.g. "queue.head"
			if len(steps) != 0 {
				return fail(start, fmt.Sprintf("unexpected character %q", c))
			}
			name, next := readToken(text, pos)
			if name == "" {
				return fail(start, fmt.Sprintf("unexpected character %q", c))
			}
			steps = append(steps, NewFieldStep(name))
			pos = next
		}
	}

	if len(steps) == 0 {
		return fail(0, "empty path")
	}
	if entry {
		if _, ok := steps[0].(*TypeFilterStep); !ok {
			return nil, fmt.Errorf("%q: %w", text, ErrEntryPointShape)
		}
	}
	return steps, nil
}

// readToken scans an identifier-like token (field name, class name pattern)
// up to the next structural character.
func readToken(text string, pos int) (string, int) {
	end := pos
	for end < len(text) {
		c := text[end]
		if c == '.' || c == '[' || c == '(' || c == ')' || c == ']' {
			break
		}
		end++
	}
	return text[pos:end], end
}

func indexFrom(text string, pos int, c byte) int {
	for i := pos + 1; i < len(text); i++ {
		if text[i] == c {
			return i
		}
	}
	return -1
}
