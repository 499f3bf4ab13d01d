package hashrange

import (
	"strconv"
	"strings"

	"github.com/searchgrid/grid/pkg/models/griderror"
)

const (
	RouterCompositeID = "compositeId"
	RouterPlain       = "plain"

	RouteKeySeparator = "!"
	DefaultRouteBits  = 16
)

type Router interface {
	Name() string
	FullRange() Range
	// IsRangeAware reports whether documents are placed by hash range.
	IsRangeAware() bool
	// KeyRange returns the hash range a route key owns. Plain ids own a
	// single hash point.
	KeyRange(key string) (Range, error)
	// Hash returns the hash used to place a single document id.
	Hash(id string) int32
}

type CompositeIDRouter struct {
	HashFunction HashFunctionType
}

var _ Router = &CompositeIDRouter{}

func (c *CompositeIDRouter) Name() string {
	return RouterCompositeID
}

func (c *CompositeIDRouter) FullRange() Range {
	return FullRange()
}

func (c *CompositeIDRouter) IsRangeAware() bool {
	return true
}

// Hash places "prefix!rest" with the top DefaultRouteBits bits taken from
// the prefix hash and the rest from the full id hash.
func (c *CompositeIDRouter) Hash(id string) int32 {
	idx := strings.Index(id, RouteKeySeparator)
	if idx <= 0 {
		return c.HashFunction.Sum(id)
	}
	prefix, bits := splitBits(id[:idx])
	if bits == 0 {
		return c.HashFunction.Sum(id[idx+1:])
	}
	mask := ^uint32(0) << (32 - bits)
	high := uint32(c.HashFunction.Sum(prefix)) & mask
	low := uint32(c.HashFunction.Sum(id[idx+1:])) &^ mask
	return int32(high | low)
}

func (c *CompositeIDRouter) KeyRange(key string) (Range, error) {
	idx := strings.Index(key, RouteKeySeparator)
	if idx < 0 {
		h := c.HashFunction.Sum(key)
		return Range{Min: h, Max: h}, nil
	}
	if idx == 0 {
		return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST, "empty route key prefix in %s", key)
	}
	prefix, bits := splitBits(key[:idx])
	if bits == 0 {
		return FullRange(), nil
	}
	mask := ^uint32(0) << (32 - bits)
	h := uint32(c.HashFunction.Sum(prefix))
	return Range{Min: int32(h & mask), Max: int32(h | ^mask)}, nil
}

// splitBits parses "prefix/bits" and falls back to DefaultRouteBits.
func splitBits(prefix string) (string, uint) {
	slash := strings.LastIndex(prefix, "/")
	if slash <= 0 {
		return prefix, DefaultRouteBits
	}
	bits, err := strconv.Atoi(prefix[slash+1:])
	if err != nil || bits < 0 || bits > 32 {
		return prefix, DefaultRouteBits
	}
	return prefix[:slash], uint(bits)
}

// PlainRouter spreads nothing by hash; shards are addressed by name only.
type PlainRouter struct{}

var _ Router = &PlainRouter{}

func (p *PlainRouter) Name() string {
	return RouterPlain
}

func (p *PlainRouter) FullRange() Range {
	return FullRange()
}

func (p *PlainRouter) IsRangeAware() bool {
	return false
}

func (p *PlainRouter) Hash(id string) int32 {
	return HashFunctionMurmur.Sum(id)
}

func (p *PlainRouter) KeyRange(key string) (Range, error) {
	return Range{}, griderror.Newf(griderror.GRID_BAD_REQUEST,
		"router %s does not support route keys", RouterPlain)
}

// RouterByName builds the router a collection is configured with. An empty
// name selects compositeId.
func RouterByName(name string, hf HashFunctionType) (Router, error) {
	switch name {
	case "", RouterCompositeID:
		return &CompositeIDRouter{HashFunction: hf}, nil
	case RouterPlain, "implicit":
		return &PlainRouter{}, nil
	default:
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "unknown router: %s", name)
	}
}
