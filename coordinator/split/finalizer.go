package split

import (
	"context"
	"time"

	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/pkg/splitlock"
)

const DefaultFinalizeInterval = 5 * time.Second

// Finalizer releases split locks whose split has completed after the
// orchestrator returned, and nudges splits whose sub-shards recovered but
// were not retired yet.
type Finalizer struct {
	reader   *clusterstate.Reader
	mutator  clusterstate.Mutator
	locks    *splitlock.SplitLock
	interval time.Duration
}

func NewFinalizer(reader *clusterstate.Reader, mutator clusterstate.Mutator, locks *splitlock.SplitLock, interval time.Duration) *Finalizer {
	if interval <= 0 {
		interval = DefaultFinalizeInterval
	}
	return &Finalizer{
		reader:   reader,
		mutator:  mutator,
		locks:    locks,
		interval: interval,
	}
}

// Run calls RunOnce every interval until ctx is done.
func (f *Finalizer) Run(ctx context.Context) {
	gridlog.Zero.Debug().Dur("interval", f.interval).Msg("finalizer: started")
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := f.RunOnce(ctx); err != nil {
			gridlog.Zero.Error().Err(err).Msg("finalizer: iteration failed")
		}
	}
}

func (f *Finalizer) RunOnce(ctx context.Context) error {
	collections, err := f.reader.Collections(ctx)
	if err != nil {
		return err
	}
	for _, coll := range collections {
		held, err := f.locks.Held(ctx, coll)
		if err != nil {
			return err
		}
		if len(held) == 0 {
			continue
		}
		if err := f.finalize(ctx, coll, held); err != nil {
			gridlog.Zero.Warn().
				Err(err).
				Str("collection", coll).
				Msg("finalizer: failed to finalize splits")
		}
	}
	return nil
}

func (f *Finalizer) finalize(ctx context.Context, coll string, held []string) error {
	snap, err := f.reader.Snapshot(ctx, coll)
	if err != nil {
		if griderror.IsNotFound(err) {
			_, err = f.locks.ReleaseAll(ctx, coll)
		}
		return err
	}

	for _, shard := range held {
		parent := snap.Collection.Shard(shard)
		children := snap.Collection.Children(shard)

		switch {
		case parent == nil:
			gridlog.Zero.Info().
				Str("collection", coll).
				Str("shard", shard).
				Msg("finalizer: shard is gone, releasing split lock")
			if err := f.locks.Release(ctx, coll, shard); err != nil {
				return err
			}
		case parent.State == topology.ShardInactive && len(children) > 0 && allInState(children, topology.ShardActive):
			gridlog.Zero.Info().
				Str("collection", coll).
				Str("shard", shard).
				Msg("finalizer: split completed, releasing split lock")
			if err := f.locks.Release(ctx, coll, shard); err != nil {
				return err
			}
		case parent.State == topology.ShardActive && len(children) > 0 && recovered(children):
			gridlog.Zero.Info().
				Str("collection", coll).
				Str("shard", shard).
				Msg("finalizer: sub-shards recovered, completing split")
			if err := f.mutator.Mutate(ctx, coll, &clusterstate.Reconcile{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func allInState(shards []*topology.Shard, state topology.ShardState) bool {
	for _, s := range shards {
		if s.State != state {
			return false
		}
	}
	return true
}

func recovered(children []*topology.Shard) bool {
	if !allInState(children, topology.ShardRecovery) {
		return false
	}
	for _, c := range children {
		if len(c.Replicas) == 0 {
			return false
		}
		for _, r := range c.Replicas {
			if r.State != topology.ReplicaActive {
				return false
			}
		}
	}
	return true
}
