package splitlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/qdb"
)

// SplitLock guards a parent shard against concurrent splits. The marker is
// bound to the metadata session and vanishes with it.
type SplitLock struct {
	db    qdb.QDB
	owner string
}

func New(db qdb.QDB) *SplitLock {
	return &SplitLock{
		db:    db,
		owner: uuid.NewString(),
	}
}

// Acquire returns false without error when another split holds the lock.
func (l *SplitLock) Acquire(ctx context.Context, collection, shard string) (bool, error) {
	ok, err := l.db.TryLockShard(ctx, collection, shard, &qdb.ShardLock{
		Timestamp: time.Now().UnixNano(),
		Owner:     l.owner,
	})
	if err != nil {
		return false, griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "failed to acquire split lock")
	}
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Bool("acquired", ok).
		Msg("splitlock: acquire")
	return ok, nil
}

// Release removes the lock. Releasing an absent lock is not an error.
func (l *SplitLock) Release(ctx context.Context, collection, shard string) error {
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Msg("splitlock: release")
	if err := l.db.UnlockShard(ctx, collection, shard); err != nil {
		return griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "failed to release split lock")
	}
	return nil
}

// ReleaseAll removes every split lock of the collection, attempting all of
// them even when some fail.
func (l *SplitLock) ReleaseAll(ctx context.Context, collection string) ([]string, error) {
	shards, err := l.db.ListShardLocks(ctx, collection)
	if err != nil {
		return nil, griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "failed to list split locks")
	}

	var (
		released []string
		errs     []error
	)
	for _, shard := range shards {
		if err := l.db.UnlockShard(ctx, collection, shard); err != nil {
			gridlog.Zero.Warn().
				Err(err).
				Str("collection", collection).
				Str("shard", shard).
				Msg("splitlock: failed to release lock")
			errs = append(errs, err)
			continue
		}
		released = append(released, shard)
	}
	if len(errs) > 0 {
		return released, griderror.Wrap(griderror.GRID_SERVER_ERROR, errors.Join(errs...), "failed to release split locks")
	}
	return released, nil
}

func (l *SplitLock) IsLocked(ctx context.Context, collection, shard string) (bool, error) {
	lock, err := l.db.GetShardLock(ctx, collection, shard)
	if err != nil {
		return false, err
	}
	return lock != nil, nil
}

// Held lists the shards of a collection that currently carry a lock.
func (l *SplitLock) Held(ctx context.Context, collection string) ([]string, error) {
	return l.db.ListShardLocks(ctx, collection)
}

// OnSplitFinalized releases the lock of a parent whose split was completed
// by the cluster state machine.
func (l *SplitLock) OnSplitFinalized(ctx context.Context, collection, parent string) {
	if err := l.Release(ctx, collection, parent); err != nil {
		gridlog.Zero.Error().
			Err(err).
			Str("collection", collection).
			Str("shard", parent).
			Msg("splitlock: failed to release lock of finalized split")
	}
}
