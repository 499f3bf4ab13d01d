package placement

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
)

type Request struct {
	Collection string
	Shards     []string
	// Counts is the number of replicas of each type to place per shard.
	Counts topology.ReplicaCount
	// Nodes are the candidate nodes.
	Nodes []string
	// Load is the number of replicas each node already hosts.
	Load map[string]int
	// Existing lists, per shard, the nodes already hosting one of its
	// replicas.
	Existing map[string][]string
	// MaxPerNode caps the replicas a node may host. Zero means no limit.
	MaxPerNode int
	// Seed drives tie-breaking between equally loaded nodes. Zero picks a
	// random seed.
	Seed int64
	// StartIndex is the first replica index used for core names.
	StartIndex int
}

type ReplicaPosition struct {
	Shard string
	Node  string
	Type  topology.ReplicaType
	Index int
}

func (p ReplicaPosition) CoreName(collection string) string {
	return BuildCoreName(collection, p.Shard, p.Type, p.Index)
}

func (p ReplicaPosition) String() string {
	return fmt.Sprintf("%s/%s on %s", p.Shard, p.Type, p.Node)
}

// BuildCoreName returns <collection>_<shard>_replica_<t><index>.
func BuildCoreName(collection, shard string, t topology.ReplicaType, index int) string {
	return fmt.Sprintf("%s_%s_replica_%s%d", collection, shard, t.Letter(), index)
}

type candidate struct {
	node  string
	load  int
	order int
}

// Assign places Counts replicas of every shard on the candidate nodes,
// least loaded first. A node never receives two replicas of one shard
// unless every node below the cap already hosts that shard. If the cap
// leaves no room, Assign fails instead of placing fewer replicas.
func Assign(req *Request) ([]ReplicaPosition, error) {
	total := req.Counts.Total() * len(req.Shards)
	if total == 0 {
		return nil, nil
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	nodes := dedup(req.Nodes)
	if len(nodes) == 0 {
		return nil, griderror.Newf(griderror.GRID_INSUFFICIENT_NODES,
			"no live nodes to place %d replicas of collection %s", total, req.Collection)
	}
	rng.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	candidates := make([]*candidate, len(nodes))
	for i, node := range nodes {
		candidates[i] = &candidate{node: node, load: req.Load[node], order: i}
	}

	if req.MaxPerNode > 0 {
		capacity := 0
		for _, c := range candidates {
			if c.load < req.MaxPerNode {
				capacity += req.MaxPerNode - c.load
			}
		}
		if capacity < total {
			return nil, griderror.Newf(griderror.GRID_INSUFFICIENT_NODES,
				"cannot place %d replicas of collection %s: %d live nodes allow only %d more with max %d replicas per node",
				total, req.Collection, len(nodes), capacity, req.MaxPerNode)
		}
	}

	var ret []ReplicaPosition
	for _, shard := range req.Shards {
		hosting := map[string]bool{}
		for _, node := range req.Existing[shard] {
			hosting[node] = true
		}

		index := req.StartIndex
		for _, t := range topology.ReplicaTypes {
			for i := 0; i < req.Counts.Get(t); i++ {
				c := pick(candidates, hosting, req.MaxPerNode)
				if c == nil {
					return nil, griderror.Newf(griderror.GRID_INSUFFICIENT_NODES,
						"no node can host another replica of %s/%s", req.Collection, shard)
				}
				c.load++
				hosting[c.node] = true

				ret = append(ret, ReplicaPosition{
					Shard: shard,
					Node:  c.node,
					Type:  t,
					Index: index,
				})
				index++
			}
		}
	}

	gridlog.Zero.Debug().
		Str("collection", req.Collection).
		Int("replicas", len(ret)).
		Int64("seed", seed).
		Msg("placement: assigned replicas")
	return ret, nil
}

func pick(candidates []*candidate, hosting map[string]bool, maxPerNode int) *candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].load != candidates[j].load {
			return candidates[i].load < candidates[j].load
		}
		return candidates[i].order < candidates[j].order
	})

	var fallback *candidate
	for _, c := range candidates {
		if maxPerNode > 0 && c.load >= maxPerNode {
			continue
		}
		if !hosting[c.node] {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

func dedup(nodes []string) []string {
	seen := make(map[string]struct{}, len(nodes))
	ret := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n]; ok || n == "" {
			continue
		}
		seen[n] = struct{}{}
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret
}
