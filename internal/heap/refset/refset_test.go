package refset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

func TestGetAndSet(t *testing.T) {
	s := New()

	assert.False(t, s.Get(42))
	assert.False(t, s.GetAndSet(42, true))
	assert.True(t, s.Get(42))
	assert.True(t, s.GetAndSet(42, true))
	assert.EqualValues(t, 1, s.Count())

	assert.True(t, s.GetAndSet(42, false))
	assert.False(t, s.Get(42))
	assert.EqualValues(t, 0, s.Count())

	// clearing an id never seen should not allocate anything
	assert.False(t, s.GetAndSet(1<<33, false))
	assert.EqualValues(t, 0, s.Count())
}

func TestSparseIdentities(t *testing.T) {
	s := New()
	ids := []model.ID{1, 63, 64, 8191, 8192, 1 << 20, 1 << 34, 1<<34 + 1}
	for _, id := range ids {
		s.Set(id, true)
	}
	for _, id := range ids {
		assert.True(t, s.Get(id), "id %d", id)
	}
	assert.EqualValues(t, len(ids), s.Count())
	assert.False(t, s.Get(2))
	assert.False(t, s.Get(8193))
}

func TestSeekOne(t *testing.T) {
	s := New()
	for _, id := range []model.ID{5, 8191, 8192, 100000} {
		s.Set(id, true)
	}

	tests := []struct {
		from model.ID
		want model.ID
		ok   bool
	}{
		{0, 5, true},
		{5, 5, true},
		{6, 8191, true},
		{8192, 8192, true},
		{8193, 100000, true},
		{100000, 100000, true},
		{100001, 0, false},
	}
	for _, tt := range tests {
		got, ok := s.SeekOne(tt.from)
		require.Equal(t, tt.ok, ok, "from %d", tt.from)
		if ok {
			assert.Equal(t, tt.want, got, "from %d", tt.from)
		}
	}
}

func TestForEachAscending(t *testing.T) {
	s := New()
	for _, id := range []model.ID{70000, 3, 8192, 500, 1 << 30} {
		s.Set(id, true)
	}

	var got []model.ID
	s.ForEach(func(id model.ID) bool {
		got = append(got, id)
		return true
	})
	assert.Equal(t, []model.ID{3, 500, 8192, 70000, 1 << 30}, got)
}

func TestForEachStops(t *testing.T) {
	s := New()
	for id := model.ID(1); id <= 10; id++ {
		s.Set(id, true)
	}
	var got []model.ID
	s.ForEach(func(id model.ID) bool {
		got = append(got, id)
		return len(got) < 3
	})
	assert.Equal(t, []model.ID{1, 2, 3}, got)
}

func TestAdd(t *testing.T) {
	a := New()
	b := New()
	a.Set(1, true)
	a.Set(9000, true)
	b.Set(9000, true)
	b.Set(123456, true)

	a.Add(b)
	assert.EqualValues(t, 3, a.Count())
	for _, id := range []model.ID{1, 9000, 123456} {
		assert.True(t, a.Get(id))
	}

	a.Add(nil) // no-op
	assert.EqualValues(t, 3, a.Count())
}

// The set must be usable as a self-draining frontier: insert on discovery,
// clear on dequeue, never expand an id twice.
func TestFrontierDrain(t *testing.T) {
	frontier := New()
	frontier.Set(10, true)

	var drained []model.ID
	n := model.ID(1)
	for {
		id, ok := frontier.SeekOne(n)
		if !ok {
			break
		}
		n = id + 1
		frontier.Set(id, false)
		drained = append(drained, id)
		// discovering while draining
		if id == 10 {
			frontier.Set(4, true) // behind the cursor, picked up on rewind
			frontier.Set(99, true)
		}
		if _, ok := frontier.SeekOne(n); !ok {
			n = 1 // rewind, outer loop of the walk
		}
	}
	assert.Equal(t, []model.ID{10, 99, 4}, drained)
	assert.True(t, frontier.IsEmpty())
}
