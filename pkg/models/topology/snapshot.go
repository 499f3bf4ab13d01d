package topology

import "sort"

// Snapshot is a versioned view of one collection together with the live
// node registry at the time it was read.
type Snapshot struct {
	Collection *Collection
	LiveNodes  map[string]int64
}

func (s *Snapshot) Version() int64 {
	if s == nil || s.Collection == nil {
		return 0
	}
	return s.Collection.Version
}

func (s *Snapshot) IsLive(node string) bool {
	_, ok := s.LiveNodes[node]
	return ok
}

// SortedLiveNodes returns live node names in lexical order.
func (s *Snapshot) SortedLiveNodes() []string {
	ret := make([]string, 0, len(s.LiveNodes))
	for node := range s.LiveNodes {
		ret = append(ret, node)
	}
	sort.Strings(ret)
	return ret
}
