package hashrange

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/searchgrid/grid/pkg/models/griderror"
)

// Range is an inclusive interval of the signed 32 bit hash space.
type Range struct {
	Min int32
	Max int32
}

func NewRange(min, max int32) Range {
	return Range{Min: min, Max: max}
}

func FullRange() Range {
	return Range{Min: math.MinInt32, Max: math.MaxInt32}
}

func (r Range) Includes(h int32) bool {
	return r.Min <= h && h <= r.Max
}

func (r Range) IsSubsetOf(o Range) bool {
	return o.Min <= r.Min && r.Max <= o.Max
}

func (r Range) Overlaps(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// Size is the number of hash points in r.
func (r Range) Size() int64 {
	return int64(r.Max) - int64(r.Min) + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%08x-%08x", uint32(r.Min), uint32(r.Max))
}

func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRange parses "min-max" where both bounds are unsigned hex renderings
// of int32 values.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid hash range: %s", s)
	}
	min, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid hash range: %s", s)
	}
	max, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid hash range: %s", s)
	}
	r := Range{Min: int32(uint32(min)), Max: int32(uint32(max))}
	if r.Max < r.Min {
		return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid hash range: %s, min is greater than max", s)
	}
	return r, nil
}

// ParseRanges parses a comma separated list of ranges.
func ParseRanges(s string) ([]Range, error) {
	var ranges []Range
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := ParseRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func FormatRanges(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// SortRanges orders ranges by Min, then by Max.
func SortRanges(ranges []Range) {
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Min != ranges[j].Min {
			return ranges[i].Min < ranges[j].Min
		}
		return ranges[i].Max < ranges[j].Max
	})
}
