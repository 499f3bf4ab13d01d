package clusterstate

import (
	"sort"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/topology"
)

// completeSplits finishes splits whose sub-shards have fully recovered: an
// ACTIVE parent whose children are all in RECOVERY with every replica
// ACTIVE becomes INACTIVE and the children become ACTIVE. If the parent
// leader's session differs from the one captured when the children were
// created, the children are moved to RECOVERY_FAILED instead. It returns
// the parents that were retired.
func completeSplits(c *topology.Collection, liveNodes map[string]int64) []string {
	parents := map[string]struct{}{}
	for _, s := range c.Shards {
		if s.Parent != "" && s.State == topology.ShardRecovery {
			parents[s.Parent] = struct{}{}
		}
	}

	var retired []string
	for name := range parents {
		parent, ok := c.Shards[name]
		if !ok || parent.State != topology.ShardActive {
			continue
		}
		children := c.Children(name)
		if !allRecovered(children) {
			continue
		}

		if sessionChanged(children, liveNodes) {
			gridlog.Zero.Warn().
				Str("collection", c.Name).
				Str("shard", name).
				Msg("clusterstate: parent leader session changed, marking sub-shards recovery_failed")
			for _, child := range children {
				child.State = topology.ShardRecoveryFailed
			}
			continue
		}

		gridlog.Zero.Info().
			Str("collection", c.Name).
			Str("shard", name).
			Int("sub-shards", len(children)).
			Msg("clusterstate: all sub-shards recovered, switching parent to inactive")
		parent.State = topology.ShardInactive
		for _, child := range children {
			child.State = topology.ShardActive
		}
		retired = append(retired, name)
	}
	sort.Strings(retired)
	return retired
}

func allRecovered(children []*topology.Shard) bool {
	if len(children) == 0 {
		return false
	}
	for _, child := range children {
		if child.State != topology.ShardRecovery || len(child.Replicas) == 0 {
			return false
		}
		for _, r := range child.Replicas {
			if r.State != topology.ReplicaActive {
				return false
			}
		}
	}
	return true
}

func sessionChanged(children []*topology.Shard, liveNodes map[string]int64) bool {
	if liveNodes == nil {
		return false
	}
	for _, child := range children {
		if child.ParentNode == "" {
			continue
		}
		session, live := liveNodes[child.ParentNode]
		if !live || session != child.ParentSession {
			return true
		}
	}
	return false
}
