package hashrange_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/stretchr/testify/assert"
)

func TestParseRange(t *testing.T) {
	assert := assert.New(t)

	r, err := hashrange.ParseRange("80000000-bfffffff")
	assert.NoError(err)
	assert.Equal(int32(math.MinInt32), r.Min)
	assert.Equal(int32(-1073741825), r.Max)
	assert.Equal("80000000-bfffffff", r.String())

	_, err = hashrange.ParseRange("zz-00")
	assert.Error(err)

	_, err = hashrange.ParseRange("00000010-00000001")
	assert.Error(err)

	_, err = hashrange.ParseRange("00000001")
	assert.Error(err)
}

func TestParseFormatRanges(t *testing.T) {
	assert := assert.New(t)

	in := "80000000-bfffffff,c0000000-ffffffff,00000000-7fffffff"
	ranges, err := hashrange.ParseRanges(in)
	assert.NoError(err)
	assert.Len(ranges, 3)
	assert.Equal(in, hashrange.FormatRanges(ranges))
}

func TestRangeRelations(t *testing.T) {
	assert := assert.New(t)

	full := hashrange.FullRange()
	low := hashrange.NewRange(math.MinInt32, -1)
	high := hashrange.NewRange(0, math.MaxInt32)

	assert.True(low.IsSubsetOf(full))
	assert.False(full.IsSubsetOf(low))
	assert.False(low.Overlaps(high))
	assert.True(full.Overlaps(high))
	assert.True(high.Includes(0))
	assert.False(high.Includes(-1))
	assert.Equal(int64(1)<<32, full.Size())
}

func TestRangeJSON(t *testing.T) {
	assert := assert.New(t)

	type holder struct {
		Range hashrange.Range `json:"range"`
	}
	data, err := json.Marshal(holder{Range: hashrange.NewRange(0, math.MaxInt32)})
	assert.NoError(err)
	assert.JSONEq(`{"range":"00000000-7fffffff"}`, string(data))

	var h holder
	assert.NoError(json.Unmarshal(data, &h))
	assert.Equal(hashrange.NewRange(0, math.MaxInt32), h.Range)
}
