package snapshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

const sampleSnapshot = `{
  "classes": [
    {"name": "java.lang.Object"},
    {"name": "com.app.Base", "super": "java.lang.Object",
     "fields": [{"name": "id", "type": "long"}, {"name": "owner", "type": "object"}]},
    {"name": "com.app.Session", "super": "com.app.Base",
     "fields": [{"name": "attrs", "type": "array"}]},
    {"name": "java.lang.Object[]"}
  ],
  "objects": [
    {"id": 1, "class": "com.app.Session", "size": 48, "fields": {"owner": 2, "attrs": 3}},
    {"id": 2, "class": "java.lang.Object", "size": 16},
    {"id": 3, "class": "java.lang.Object[]", "size": 32, "elements": [2, 0]},
    {"id": 4, "class": "java.lang.Object[]", "size": 16, "array": true}
  ]
}`

func TestLoad(t *testing.T) {
	h, err := Load(strings.NewReader(sampleSnapshot))
	require.NoError(t, err)

	assert.Equal(t, 4, h.NumInstances())

	session := h.Class("com.app.Session")
	require.NotNil(t, session)
	require.NotNil(t, session.Super)
	assert.Equal(t, "com.app.Base", session.Super.Name)
	assert.True(t, session.IsSubclassOf("java.lang.Object"))

	// fields compose superclass-first in declaration order
	var names []string
	for _, f := range session.Fields {
		names = append(names, f.DeclaringClass+"#"+f.Name)
	}
	assert.Equal(t, []string{"com.app.Base#id", "com.app.Base#owner", "com.app.Session#attrs"}, names)

	s := h.Instance(1)
	require.NotNil(t, s)
	assert.False(t, s.IsArray())
	require.Len(t, s.Fields, 3)
	assert.EqualValues(t, 0, s.Fields[0].ObjectID) // scalar slot carries no reference
	assert.False(t, s.Fields[0].Field.Reference)
	assert.EqualValues(t, 2, s.Fields[1].ObjectID)
	assert.EqualValues(t, 3, s.Fields[2].ObjectID)

	arr := h.Instance(3)
	require.NotNil(t, arr)
	assert.True(t, arr.IsArray())
	assert.Equal(t, []model.ID{2, 0}, arr.Elements)

	empty := h.Instance(4)
	require.NotNil(t, empty)
	assert.True(t, empty.IsArray())
	assert.Empty(t, empty.Elements)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{
			"not json",
			`{`,
			"failed to decode snapshot",
		},
		{
			"nameless class",
			`{"classes": [{"name": ""}]}`,
			"has no name",
		},
		{
			"duplicate class",
			`{"classes": [{"name": "A"}, {"name": "A"}]}`,
			`duplicate class "A"`,
		},
		{
			"unknown superclass",
			`{"classes": [{"name": "A", "super": "B"}]}`,
			`extends unknown class "B"`,
		},
		{
			"nameless field",
			`{"classes": [{"name": "A", "fields": [{"name": "", "type": "object"}]}]}`,
			"declares a field with no name",
		},
		{
			"missing object id",
			`{"classes": [{"name": "A"}], "objects": [{"class": "A", "size": 8}]}`,
			"missing an id",
		},
		{
			"duplicate object id",
			`{"classes": [{"name": "A"}],
			  "objects": [{"id": 1, "class": "A", "size": 8}, {"id": 1, "class": "A", "size": 8}]}`,
			"duplicate object id 1",
		},
		{
			"unknown class",
			`{"classes": [], "objects": [{"id": 1, "class": "A", "size": 8}]}`,
			`unknown class "A"`,
		},
		{
			"undeclared field",
			`{"classes": [{"name": "A"}],
			  "objects": [{"id": 1, "class": "A", "size": 8, "fields": {"x": 2}}]}`,
			`sets field "x" not declared`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("no-such-snapshot.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open snapshot")
}
