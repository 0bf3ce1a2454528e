package hpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

func buildTrackHeap(t *testing.T) (*model.MemHeap, *model.Instance) {
	t.Helper()

	rootClass := &model.JavaClass{Name: "Root"}
	rootClass.Fields = []*model.Field{
		{Name: "a", DeclaringClass: "Root", Reference: true},
		{Name: "num", DeclaringClass: "Root"},
		{Name: "b", DeclaringClass: "Root", Reference: true},
	}
	nodeClass := &model.JavaClass{Name: "Node"}
	nodeClass.Fields = []*model.Field{
		{Name: "next", DeclaringClass: "Node", Reference: true},
		{Name: "payload", DeclaringClass: "Node", Reference: true},
	}
	arrayClass := &model.JavaClass{Name: "java.lang.Object[]"}

	h := model.NewMemHeap()
	h.AddClass(rootClass)
	h.AddClass(nodeClass)
	h.AddClass(arrayClass)

	fields := func(c *model.JavaClass, vals map[string]model.ID) []model.FieldValue {
		var out []model.FieldValue
		for _, f := range c.Fields {
			out = append(out, model.FieldValue{Field: f, ObjectID: vals[f.Name]})
		}
		return out
	}

	root := &model.Instance{ID: 1, Class: rootClass, Size: 32,
		Fields: fields(rootClass, map[string]model.ID{"a": 2, "b": 3})}
	h.AddInstance(root)
	h.AddInstance(&model.Instance{ID: 2, Class: nodeClass, Size: 24,
		Fields: fields(nodeClass, map[string]model.ID{"next": 4})})
	h.AddInstance(&model.Instance{ID: 3, Class: nodeClass, Size: 24,
		Fields: fields(nodeClass, map[string]model.ID{"payload": 5})})
	h.AddInstance(&model.Instance{ID: 4, Class: nodeClass, Size: 24,
		Fields: fields(nodeClass, nil)})
	h.AddInstance(&model.Instance{ID: 5, Class: arrayClass, Size: 48,
		Elements: []model.ID{2, 0, 4, 2}})

	return h, root
}

func trackAll(t *testing.T, h model.Heap, root *model.Instance, path string) []Move {
	t.Helper()
	steps, err := ParsePath(path, true)
	require.NoError(t, err, path)
	var moves []Move
	Track(h, root, steps, func(m Move) bool {
		moves = append(moves, m)
		return true
	})
	return moves
}

func TestTrack(t *testing.T) {
	h, root := buildTrackHeap(t)

	tests := []struct {
		path  string
		ids   []model.ID
		specs []string
	}{
		{"(Root)", []model.ID{1}, []string{""}},
		{"(Node)", nil, nil},
		{"(Root).a", []model.ID{2}, []string{".a"}},
		{"(Root).a.next", []model.ID{4}, []string{".a.next"}},
		{"(Root).*", []model.ID{2, 3}, []string{".a", ".b"}},
		{"(Root).b.next", nil, nil},     // null reference
		{"(Root).missing", nil, nil},    // unknown field
		{"(Root).a.payload", nil, nil},  // null payload
		{"(Root).a.next.next", nil, nil},
		{"(Root).b.payload[*]", []model.ID{2, 4, 2}, []string{".b.payload[0]", ".b.payload[2]", ".b.payload[3]"}},
		{"(Root).b.payload[2]", []model.ID{4}, []string{".b.payload[2]"}},
		{"(Root).b.payload[1]", nil, nil}, // null element
		{"(Root).b.payload[9]", nil, nil}, // out of range
		{"(Root).a(Node).next", []model.ID{4}, []string{".a.next"}},
		{"(Root).a(Root).next", nil, nil}, // mid-path filter rejects
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			moves := trackAll(t, h, root, tt.path)
			require.Len(t, moves, len(tt.ids))
			for i, m := range moves {
				assert.Equal(t, tt.ids[i], m.Instance.ID)
				assert.Equal(t, tt.specs[i], m.PathSpec)
			}
		})
	}
}

func TestTrackStops(t *testing.T) {
	h, root := buildTrackHeap(t)
	steps, err := ParsePath("(Root).*", true)
	require.NoError(t, err)

	count := 0
	Track(h, root, steps, func(Move) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestCollectDeduplicates(t *testing.T) {
	h, root := buildTrackHeap(t)
	steps, err := ParsePath("(Root).b.payload[*]", true)
	require.NoError(t, err)

	got := Collect(h, root, steps)
	var ids []model.ID
	for _, i := range got {
		ids = append(ids, i.ID)
	}
	assert.Equal(t, []model.ID{2, 4}, ids)
}
