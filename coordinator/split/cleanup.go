package split

import (
	"context"

	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
)

// cleanup restores the parent after a failed attempt and removes the
// sub-shards it created. Failures are logged and never returned.
func (o *Orchestrator) cleanup(ctx context.Context, a *attempt) {
	if a.leaderChanged {
		gridlog.Zero.Warn().
			Str("collection", a.collection).
			Str("shard", a.parent.Name).
			Strs("sub-shards", a.subShards).
			Msg("split: parent leader changed, leaving sub-shards recovery_failed")
		return
	}
	if len(a.subShards) == 0 {
		return
	}
	gridlog.Zero.Info().
		Str("collection", a.collection).
		Str("shard", a.parent.Name).
		Msg("split: cleaning up after a failed split")

	snap, err := o.reader.Snapshot(ctx, a.collection)
	if err != nil {
		if !griderror.IsNotFound(err) {
			gridlog.Zero.Warn().
				Err(err).
				Str("collection", a.collection).
				Str("shard", a.parent.Name).
				Msg("split: cleanup failed to read cluster state")
		}
		return
	}
	coll := snap.Collection

	// a completed split must not be rolled back
	parent := coll.Shard(a.parent.Name)
	if parent != nil && parent.State == topology.ShardInactive && allActive(coll, a.subShards) {
		return
	}

	states := map[string]topology.ShardState{}
	for _, name := range a.subShards {
		if coll.Shard(name) != nil {
			states[name] = topology.ShardConstruction
		}
	}
	if parent != nil && parent.State == topology.ShardInactive {
		states[parent.Name] = topology.ShardActive
	}
	for _, name := range offlineSiblings(coll, a.siblings) {
		states[name] = topology.ShardActive
	}
	if len(states) > 0 {
		if err := o.mutator.Mutate(ctx, a.collection, &clusterstate.UpdateShardState{States: states}); err != nil {
			gridlog.Zero.Warn().
				Err(err).
				Str("collection", a.collection).
				Str("shard", a.parent.Name).
				Msg("split: cleanup failed to update shard states")
		}
	}

	for _, name := range a.subShards {
		if coll.Shard(name) == nil {
			continue
		}
		if err := o.deleteShard(ctx, snap, name); err != nil {
			gridlog.Zero.Warn().
				Err(err).
				Str("collection", a.collection).
				Str("shard", a.parent.Name).
				Str("sub-shard", name).
				Msg("split: cleanup failed to delete sub-shard")
		}
	}
}

func allActive(coll *topology.Collection, names []string) bool {
	for _, name := range names {
		s := coll.Shard(name)
		if s == nil || s.State != topology.ShardActive {
			return false
		}
	}
	return true
}

// offlineSiblings returns shards that were ACTIVE when the split started
// and are now INACTIVE without having been split themselves.
func offlineSiblings(coll *topology.Collection, siblings []string) []string {
	var ret []string
	for _, name := range siblings {
		s := coll.Shard(name)
		if s == nil || s.State != topology.ShardInactive {
			continue
		}
		if children := coll.Children(name); len(children) > 0 && allInState(children, topology.ShardActive) {
			continue
		}
		ret = append(ret, name)
	}
	return ret
}

// deleteShard unloads the cores of a shard, best effort, then removes the
// shard from cluster state and waits until it is gone.
func (o *Orchestrator) deleteShard(ctx context.Context, snap *topology.Snapshot, name string) error {
	coll := snap.Collection.Name
	shard := snap.Collection.Shard(name)
	if shard == nil {
		return nil
	}

	uctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()
	tracker := coreadmin.NewTracker(uctx, o.client, o.cfg.Retry, "")
	defer tracker.Close()
	for _, r := range shard.SortedReplicas() {
		if !snap.IsLive(r.Node) {
			continue
		}
		tracker.Send(r.Node, coreadmin.NewUnload(r.Core))
	}
	if err := tracker.ProcessResponses(coreadmin.NewResults(), false, "failed to unload cores of shard "+name); err != nil {
		gridlog.Zero.Warn().
			Err(err).
			Str("collection", coll).
			Str("shard", name).
			Msg("split: unloading cores failed, removing shard anyway")
	}

	if err := o.mutator.Mutate(ctx, coll, &clusterstate.DeleteShard{Name: name}); err != nil {
		return err
	}
	_, err := o.reader.WaitForState(ctx, coll, o.cfg.RequestTimeout, func(s *topology.Snapshot) bool {
		return s.Collection.Shard(name) == nil
	})
	return err
}
