package topology

import (
	"sort"

	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/qdb"
)

type Replica struct {
	Name   string
	Core   string
	Node   string
	Type   ReplicaType
	State  ReplicaState
	Leader bool
}

func (r *Replica) IsActive(liveNodes map[string]int64) bool {
	if r.State != ReplicaActive {
		return false
	}
	_, live := liveNodes[r.Node]
	return live
}

type Shard struct {
	Name     string
	Range    hashrange.Range
	State    ShardState
	Replicas map[string]*Replica

	Parent        string
	ParentNode    string
	ParentSession int64
}

func NewShard(name string, r hashrange.Range, state ShardState) *Shard {
	return &Shard{
		Name:     name,
		Range:    r,
		State:    state,
		Replicas: map[string]*Replica{},
	}
}

// Leader returns the leader replica, or nil if the shard has none.
func (s *Shard) Leader() *Replica {
	for _, r := range s.Replicas {
		if r.Leader {
			return r
		}
	}
	return nil
}

// ReplicaCount counts replicas by type.
func (s *Shard) ReplicaCount() ReplicaCount {
	rc := ReplicaCount{}
	for _, r := range s.Replicas {
		rc.Increment(r.Type)
	}
	return rc
}

func (s *Shard) ReplicaByCore(node, core string) *Replica {
	for _, r := range s.Replicas {
		if r.Node == node && r.Core == core {
			return r
		}
	}
	return nil
}

// SortedReplicas returns replicas ordered by name.
func (s *Shard) SortedReplicas() []*Replica {
	ret := make([]*Replica, 0, len(s.Replicas))
	for _, r := range s.Replicas {
		ret = append(ret, r)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

type Collection struct {
	Name         string
	Router       string
	HashFunction string
	Replication  ReplicaCount
	Shards       map[string]*Shard

	Version int64
}

func (c *Collection) Shard(name string) *Shard {
	return c.Shards[name]
}

// ActiveShards returns the ACTIVE shards ordered by range start.
func (c *Collection) ActiveShards() []*Shard {
	var ret []*Shard
	for _, s := range c.Shards {
		if s.State == ShardActive {
			ret = append(ret, s)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Range.Min < ret[j].Range.Min })
	return ret
}

// Children returns the shards created by splitting parent.
func (c *Collection) Children(parent string) []*Shard {
	var ret []*Shard
	for _, s := range c.Shards {
		if s.Parent == parent {
			ret = append(ret, s)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

func (c *Collection) RouterImpl() (hashrange.Router, error) {
	hf, err := hashrange.HashFunctionByName(c.HashFunction)
	if err != nil {
		return nil, err
	}
	return hashrange.RouterByName(c.Router, hf)
}

// ShardsForKey returns the active shards owning part of the hash range of
// a route key.
func (c *Collection) ShardsForKey(key string) ([]*Shard, error) {
	router, err := c.RouterImpl()
	if err != nil {
		return nil, err
	}
	kr, err := router.KeyRange(key)
	if err != nil {
		return nil, err
	}
	var ret []*Shard
	for _, s := range c.ActiveShards() {
		if s.Range.Overlaps(kr) {
			ret = append(ret, s)
		}
	}
	return ret, nil
}

// ReplicasPerNode counts replicas of the collection on each node.
func (c *Collection) ReplicasPerNode() map[string]int {
	ret := map[string]int{}
	for _, s := range c.Shards {
		for _, r := range s.Replicas {
			ret[r.Node]++
		}
	}
	return ret
}

func (c *Collection) Clone() *Collection {
	return CollectionFromDB(c.ToDB())
}

func CollectionFromDB(c *qdb.Collection) *Collection {
	ret := &Collection{
		Name:         c.Name,
		Router:       c.Router,
		HashFunction: c.HashFunction,
		Replication: ReplicaCount{
			ReplicaNRT:  c.NrtReplicas,
			ReplicaTLOG: c.TlogReplicas,
			ReplicaPULL: c.PullReplicas,
		},
		Shards:  make(map[string]*Shard, len(c.Shards)),
		Version: c.Version,
	}
	for name, s := range c.Shards {
		ret.Shards[name] = ShardFromDB(s)
	}
	return ret
}

func (c *Collection) ToDB() *qdb.Collection {
	ret := &qdb.Collection{
		Name:         c.Name,
		Router:       c.Router,
		HashFunction: c.HashFunction,
		NrtReplicas:  c.Replication.Get(ReplicaNRT),
		TlogReplicas: c.Replication.Get(ReplicaTLOG),
		PullReplicas: c.Replication.Get(ReplicaPULL),
		Shards:       make(map[string]*qdb.Shard, len(c.Shards)),
		Version:      c.Version,
	}
	for name, s := range c.Shards {
		ret.Shards[name] = s.ToDB()
	}
	return ret
}

func ShardFromDB(s *qdb.Shard) *Shard {
	ret := &Shard{
		Name:          s.Name,
		State:         ShardState(s.State),
		Parent:        s.Parent,
		ParentNode:    s.ParentNode,
		ParentSession: s.ParentSession,
		Replicas:      make(map[string]*Replica, len(s.Replicas)),
	}
	if r, err := hashrange.ParseRange(s.Range); err == nil {
		ret.Range = r
	}
	for name, r := range s.Replicas {
		ret.Replicas[name] = &Replica{
			Name:   r.Name,
			Core:   r.Core,
			Node:   r.Node,
			Type:   ReplicaType(r.Type),
			State:  ReplicaState(r.State),
			Leader: r.Leader,
		}
	}
	return ret
}

func (s *Shard) ToDB() *qdb.Shard {
	ret := &qdb.Shard{
		Name:          s.Name,
		Range:         s.Range.String(),
		State:         string(s.State),
		Parent:        s.Parent,
		ParentNode:    s.ParentNode,
		ParentSession: s.ParentSession,
		Replicas:      make(map[string]*qdb.Replica, len(s.Replicas)),
	}
	for name, r := range s.Replicas {
		ret.Replicas[name] = &qdb.Replica{
			Name:   r.Name,
			Core:   r.Core,
			Node:   r.Node,
			Type:   string(r.Type),
			State:  string(r.State),
			Leader: r.Leader,
		}
	}
	return ret
}
