package clusterstate

import (
	"context"
	"time"

	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/qdb"
)

const defaultPollInterval = 50 * time.Millisecond

// Reader reads collection snapshots straight from the metadata store and
// polls it to wait for conditions.
type Reader struct {
	db           qdb.QDB
	pollInterval time.Duration
}

func NewReader(db qdb.QDB) *Reader {
	return &Reader{db: db, pollInterval: defaultPollInterval}
}

func (r *Reader) WithPollInterval(d time.Duration) *Reader {
	r.pollInterval = d
	return r
}

// Snapshot always reads from the store; nothing is cached.
func (r *Reader) Snapshot(ctx context.Context, collection string) (*topology.Snapshot, error) {
	dbc, err := r.db.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	live, err := r.db.ListLiveNodes(ctx)
	if err != nil {
		return nil, err
	}
	return &topology.Snapshot{
		Collection: topology.CollectionFromDB(dbc),
		LiveNodes:  live,
	}, nil
}

// WaitForState polls until pred holds or timeout elapses. Timing out is a
// GRID_SERVER_ERROR.
func (r *Reader) WaitForState(ctx context.Context, collection string, timeout time.Duration, pred func(*topology.Snapshot) bool) (*topology.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		snap, err := r.Snapshot(ctx, collection)
		if err == nil && pred(snap) {
			return snap, nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, griderror.Wrap(griderror.GRID_SERVER_ERROR, lastErr,
					"timed out waiting for state of collection "+collection)
			}
			return nil, griderror.Newf(griderror.GRID_SERVER_ERROR,
				"timed out waiting for state of collection %s after %s", collection, timeout)
		case <-ticker.C:
		}
	}
}

func (r *Reader) WaitForNewShard(ctx context.Context, collection, shard string, timeout time.Duration) (*topology.Snapshot, error) {
	snap, err := r.WaitForState(ctx, collection, timeout, func(s *topology.Snapshot) bool {
		return s.Collection.Shard(shard) != nil
	})
	if err != nil {
		return nil, griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "Could not find new slice "+shard+" in collection "+collection)
	}
	return snap, nil
}

// WaitForCoreNodeName waits until a replica hosting core on node shows up
// in any shard and returns its name.
func (r *Reader) WaitForCoreNodeName(ctx context.Context, collection, node, core string, timeout time.Duration) (string, error) {
	var name string
	_, err := r.WaitForState(ctx, collection, timeout, func(s *topology.Snapshot) bool {
		for _, shard := range s.Collection.Shards {
			if rep := shard.ReplicaByCore(node, core); rep != nil {
				name = rep.Name
				return true
			}
		}
		return false
	})
	if err != nil {
		return "", griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "could not find replica for core "+core+" on node "+node)
	}
	return name, nil
}

// ResolveLeader waits for an ACTIVE leader of shard on a live node.
func (r *Reader) ResolveLeader(ctx context.Context, collection, shard string, timeout time.Duration) (*topology.Replica, *topology.Snapshot, error) {
	var leader *topology.Replica
	snap, err := r.WaitForState(ctx, collection, timeout, func(s *topology.Snapshot) bool {
		sh := s.Collection.Shard(shard)
		if sh == nil {
			return false
		}
		l := sh.Leader()
		if l == nil || !l.IsActive(s.LiveNodes) {
			return false
		}
		leader = l
		return true
	})
	if err != nil {
		return nil, nil, griderror.Wrap(griderror.GRID_SERVER_ERROR, err,
			"no active leader found for shard "+collection+"/"+shard)
	}
	return leader, snap, nil
}

// LiveSession returns the session a node is currently registered with.
func (r *Reader) LiveSession(ctx context.Context, node string) (int64, bool, error) {
	return r.db.GetLiveNodeSession(ctx, node)
}

func (r *Reader) Collections(ctx context.Context) ([]string, error) {
	return r.db.ListCollections(ctx)
}
