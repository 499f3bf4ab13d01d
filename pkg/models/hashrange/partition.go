package hashrange

import (
	"math"

	"github.com/searchgrid/grid/pkg/models/griderror"
)

const (
	MinPartitions     = 2
	MaxPartitions     = 8
	DefaultPartitions = 2
)

// Partition cuts r into n contiguous ranges covering it exactly. A non zero
// fuzz shifts each boundary alternately up and down by round(step*fuzz/2)
// so that sub-shards do not split again at the same moment.
func Partition(r Range, n int, fuzz float64) ([]Range, error) {
	if n < MinPartitions || n > MaxPartitions {
		return nil, griderror.Newf(griderror.GRID_INVALID_ARGUMENT,
			"a shard can only be split into %d to %d subshards, requested %d", MinPartitions, MaxPartitions, n)
	}
	if math.IsNaN(fuzz) || fuzz < 0 || fuzz >= 1 {
		return nil, griderror.Newf(griderror.GRID_INVALID_ARGUMENT,
			"split fuzz must be in the range [0, 1), got %v", fuzz)
	}
	if r.Max < r.Min {
		return nil, griderror.Newf(griderror.GRID_INVALID_ARGUMENT, "invalid hash range %s", r)
	}
	if r.Size() < int64(n) {
		return nil, griderror.Newf(griderror.GRID_INVALID_ARGUMENT,
			"hash range %s is too small to be split into %d parts", r, n)
	}

	step := r.Size() / int64(n)
	fuzzStep := int64(math.Round(float64(step) * fuzz / 2))

	ranges := make([]Range, 0, n)
	start := int64(r.Min)
	for i := 0; i < n; i++ {
		end := start + step - 1
		if fuzzStep > 0 {
			if i%2 == 0 {
				end += fuzzStep
			} else {
				end -= fuzzStep
			}
		}
		if i == n-1 {
			end = int64(r.Max)
		}
		ranges = append(ranges, Range{Min: int32(start), Max: int32(end)})
		start = end + 1
	}
	return ranges, nil
}

// ValidateExplicitRanges checks caller supplied sub-ranges against parent
// and returns them in their original order.
func ValidateExplicitRanges(parent Range, proposed []Range) ([]Range, error) {
	if len(proposed) < 2 {
		return nil, griderror.New(griderror.GRID_BAD_REQUEST,
			"There must be at least two ranges specified to split a shard")
	}
	for _, r := range proposed {
		if !r.IsSubsetOf(parent) {
			return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
				"Specified hash range: %s is not a subset of parent shard's range: %s", r, parent)
		}
	}

	sorted := make([]Range, len(proposed))
	copy(sorted, proposed)
	SortRanges(sorted)

	if sorted[0].Min != parent.Min || sorted[len(sorted)-1].Max != parent.Max {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"Specified hash ranges: %s do not cover the entire range of parent shard: %s",
			FormatRanges(proposed), parent)
	}
	for i := 1; i < len(sorted); i++ {
		if int64(sorted[i-1].Max)+1 != int64(sorted[i].Min) {
			return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
				"Specified hash ranges: %s either overlap with each other or do not cover the entire range of parent shard: %s",
				FormatRanges(proposed), parent)
		}
	}

	out := make([]Range, len(proposed))
	copy(out, proposed)
	return out, nil
}

// PartitionByKey cuts r around the hash range owned by a composite route
// key: the part below it, the key range itself, and the part above it.
func PartitionByKey(r Range, key string, router Router) ([]Range, error) {
	if !router.IsRangeAware() {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"Split by route key can only be used with compositeId router. Found router: %s", router.Name())
	}
	kr, err := router.KeyRange(key)
	if err != nil {
		return nil, err
	}
	if !kr.Overlaps(r) {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"The split.key: %s does not map to a hash inside range %s", key, r)
	}

	var ranges []Range
	if r.Min < kr.Min {
		ranges = append(ranges, Range{Min: r.Min, Max: kr.Min - 1})
	}
	mid := Range{Min: max(r.Min, kr.Min), Max: min(r.Max, kr.Max)}
	ranges = append(ranges, mid)
	if kr.Max < r.Max {
		ranges = append(ranges, Range{Min: kr.Max + 1, Max: r.Max})
	}

	if len(ranges) == 1 {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"The split.key: %s has a hash range that is exactly equal to hash range of shard", key)
	}
	for _, sub := range ranges {
		if sub.Min == sub.Max {
			return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
				"The split.key: %s must be a compositeId", key)
		}
	}
	return ranges, nil
}
