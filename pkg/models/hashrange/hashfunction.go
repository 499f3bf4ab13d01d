package hashrange

import (
	"fmt"
	"strings"

	"github.com/go-faster/city"
	"github.com/spaolacci/murmur3"
)

type HashFunctionType int

const (
	HashFunctionMurmur = HashFunctionType(0)
	HashFunctionCity   = HashFunctionType(1)
)

// Sum returns the routing hash of s as a signed 32 bit value, which is the
// domain every Range lives in.
func (hf HashFunctionType) Sum(s string) int32 {
	switch hf {
	case HashFunctionCity:
		return int32(city.Hash32([]byte(s)))
	default:
		return int32(murmur3.Sum32([]byte(s)))
	}
}

func (hf HashFunctionType) String() string {
	switch hf {
	case HashFunctionCity:
		return "city"
	default:
		return "murmur3"
	}
}

// HashFunctionByName resolves a configured hash function name. An empty
// name selects murmur3.
func HashFunctionByName(hfn string) (HashFunctionType, error) {
	switch strings.ToLower(hfn) {
	case "", "murmur", "murmur3":
		return HashFunctionMurmur, nil
	case "city":
		return HashFunctionCity, nil
	default:
		return 0, fmt.Errorf("unknown hash function name: %s", hfn)
	}
}
