package coreadmin_test

import (
	"testing"

	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/stretchr/testify/assert"
)

func TestRequestStructRoundTrip(t *testing.T) {
	assert := assert.New(t)

	ranges, err := hashrange.ParseRanges("80000000-ffffffff,0-7fffffff")
	assert.NoError(err)

	req := coreadmin.NewSplitCore("books_shard1_replica_n1", []string{"a", "b"}, ranges, coreadmin.SplitMethodLink)
	req.Set("numSubShards", 2)

	s, err := req.ToStruct()
	assert.NoError(err)

	got, err := coreadmin.RequestFromStruct(s)
	assert.NoError(err)
	assert.Equal(coreadmin.ActionSplit, got.Action)
	assert.Equal("books_shard1_replica_n1", got.Str("core"))
	assert.Equal([]string{"a", "b"}, got.Strings("targetCore"))
	assert.Equal("80000000-ffffffff,00000000-7fffffff", got.Str("ranges"))
	assert.Equal("link", got.Str("splitMethod"))

	n, err := got.Int("numSubShards", 0)
	assert.NoError(err)
	assert.Equal(2, n)
}

func TestRequestFromStructNeedsAction(t *testing.T) {
	req := coreadmin.NewRequest("")
	s, err := req.ToStruct()
	assert.NoError(t, err)

	_, err = coreadmin.RequestFromStruct(s)
	assert.True(t, griderror.IsBadRequest(err))
}

func TestRequestParams(t *testing.T) {
	assert := assert.New(t)

	req := coreadmin.NewRequest(coreadmin.ActionSplitShard).
		Set("numSubShards", "3").
		Set("splitFuzz", "0.25").
		Set("timing", "true").
		Set("createNodeSet", "n1, n2")

	n, err := req.Int("numSubShards", 2)
	assert.NoError(err)
	assert.Equal(3, n)

	n, err = req.Int("missing", 2)
	assert.NoError(err)
	assert.Equal(2, n)

	f, err := req.Float("splitFuzz", 0)
	assert.NoError(err)
	assert.Equal(0.25, f)

	assert.True(req.Bool("timing"))
	assert.False(req.Bool("waitForFinalState"))
	assert.Equal([]string{"n1", "n2"}, req.Strings("createNodeSet"))

	req.Set("numSubShards", "many")
	_, err = req.Int("numSubShards", 2)
	assert.True(griderror.IsBadRequest(err))
}

func TestParseSplitMethod(t *testing.T) {
	assert := assert.New(t)

	m, err := coreadmin.ParseSplitMethod("")
	assert.NoError(err)
	assert.Equal(coreadmin.SplitMethodRewrite, m)

	m, err = coreadmin.ParseSplitMethod("LINK")
	assert.NoError(err)
	assert.Equal(coreadmin.SplitMethodLink, m)

	_, err = coreadmin.ParseSplitMethod("copy")
	assert.True(griderror.IsBadRequest(err))
}
