package hpath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

func TestParseEntryPaths(t *testing.T) {
	tests := []struct {
		path string
		want []string // step String() forms
	}{
		{"(com.foo.Bar)", []string{"(com.foo.Bar)"}},
		{"com.foo.Bar", []string{"(com.foo.Bar)"}},
		{"(**.Cache).entries[*].value", []string{"(**.Cache)", ".entries", "[*]", ".value"}},
		{"(+java.util.AbstractMap)", []string{"(+java.util.AbstractMap)"}},
		{"(X).*", []string{"(X)", ".*"}},
		{"(X)[3]", []string{"(X)", "[3]"}},
		{"(A).f(B).g", []string{"(A)", ".f", "(B)", ".g"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			steps, err := ParsePath(tt.path, true)
			require.NoError(t, err)
			require.Len(t, steps, len(tt.want))
			for i, s := range steps {
				assert.Equal(t, tt.want[i], s.String())
			}
		})
	}
}

func TestParsePlainPaths(t *testing.T) {
	steps, err := ParsePath("queue.head.next", false)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, want := range []string{".queue", ".head", ".next"} {
		assert.Equal(t, want, steps[i].String())
	}
}

func TestParseEntryShapeViolations(t *testing.T) {
	for _, path := range []string{".field", "[*]", "[0].x"} {
		_, err := ParsePath(path, true)
		assert.ErrorIs(t, err, ErrEntryPointShape, "path %q", path)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"",
		"(unclosed",
		"(X)[12",
		"(X)[x]",
		"(X)[-1]",
		"(X).",
		"(X)..f",
		"(X)]",
		"com.foo.Bar[*]", // bare filter cannot be combined with steps
		"()",
	}
	for _, path := range tests {
		_, err := ParsePath(path, true)
		require.Error(t, err, "path %q", path)
		var mpe *MalformedPathError
		if !errors.As(err, &mpe) {
			t.Errorf("path %q: expected MalformedPathError, got %v", path, err)
		}
	}
}

func TestTypeFilterMatching(t *testing.T) {
	object := &model.JavaClass{Name: "java.lang.Object"}
	abstractMap := &model.JavaClass{Name: "java.util.AbstractMap", Super: object}
	hashMap := &model.JavaClass{Name: "java.util.HashMap", Super: abstractMap}
	other := &model.JavaClass{Name: "com.x.HashMap", Super: object}

	tests := []struct {
		pattern string
		class   *model.JavaClass
		want    bool
	}{
		{"java.util.HashMap", hashMap, true},
		{"java.util.HashMap", other, false},
		{"**.HashMap", hashMap, true},
		{"**.HashMap", other, true},
		{"java.util.*", hashMap, true},
		{"java.*", hashMap, false}, // * does not cross package segments
		{"java.util.AbstractMap", hashMap, false},
		{"+java.util.AbstractMap", hashMap, true},
		{"+java.util.AbstractMap", other, false},
		{"+**.Object", other, true},
	}
	for _, tt := range tests {
		tf, err := NewTypeFilter(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, tf.Evaluate(tt.class), "pattern %q class %s", tt.pattern, tt.class.Name)
	}
}
