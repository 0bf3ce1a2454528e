package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

func TestHistogramOrdering(t *testing.T) {
	h := NewHistogram()
	classes := map[string]*model.JavaClass{}
	for _, name := range []string{"Big", "Small", "TieA", "TieB"} {
		classes[name] = &model.JavaClass{Name: name}
	}
	acc := func(class string, size int64) {
		h.Accumulate(&model.Instance{ID: 1, Class: classes[class], Size: size})
	}
	acc("Small", 10)
	acc("Big", 100)
	acc("Big", 100)
	acc("TieB", 50)
	acc("TieA", 50)

	var names []string
	for _, e := range h.Entries() {
		names = append(names, e.ClassName)
	}
	// size descending, ties broken by class name
	assert.Equal(t, []string{"Big", "TieA", "TieB", "Small"}, names)

	big := h.Entry("Big")
	require.NotNil(t, big)
	assert.EqualValues(t, 2, big.Count)
	assert.EqualValues(t, 200, big.TotalSize)
	assert.Nil(t, h.Entry("Missing"))

	assert.EqualValues(t, 5, h.TotalCount())
	assert.EqualValues(t, 310, h.TotalSize())
}
