package topology

import (
	"fmt"
	"strings"
)

type ReplicaCount map[ReplicaType]int

func (rc ReplicaCount) Get(t ReplicaType) int {
	return rc[t]
}

func (rc ReplicaCount) Increment(t ReplicaType) {
	rc[t]++
}

// Decrement lowers the count of t, never below zero.
func (rc ReplicaCount) Decrement(t ReplicaType) {
	if rc[t] > 0 {
		rc[t]--
	}
}

func (rc ReplicaCount) Total() int {
	total := 0
	for _, n := range rc {
		total += n
	}
	return total
}

func (rc ReplicaCount) Copy() ReplicaCount {
	ret := make(ReplicaCount, len(rc))
	for t, n := range rc {
		ret[t] = n
	}
	return ret
}

func (rc ReplicaCount) String() string {
	parts := make([]string, 0, len(ReplicaTypes))
	for _, t := range ReplicaTypes {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(string(t)), rc[t]))
	}
	return strings.Join(parts, ",")
}
