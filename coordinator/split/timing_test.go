package split_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/searchgrid/grid/coordinator/split"
)

func TestTimerTree(t *testing.T) {
	assert := assert.New(t)

	root := split.NewTimer("split")
	phase := root.Sub("splitParentCore")
	time.Sleep(2 * time.Millisecond)
	first := phase.Stop()
	assert.GreaterOrEqual(first, 2*time.Millisecond)
	assert.Equal(first, phase.Stop())
	assert.Equal(first, phase.Elapsed())

	root.Sub("finalCommit").Stop()
	root.Stop()

	m := root.ToMap()
	assert.Contains(m, "time")
	assert.Contains(m, "splitParentCore")
	assert.Contains(m, "finalCommit")

	sub, ok := m["splitParentCore"].(map[string]any)
	assert.True(ok)
	assert.GreaterOrEqual(sub["time"], float64(2))
}
