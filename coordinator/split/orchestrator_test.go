package split_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrid/grid/coordinator/split"
	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/diskspace"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/pkg/splitlock"
	"github.com/searchgrid/grid/test/gridmock"
)

const collection = "books"

func testConfig() split.Config {
	return split.Config{
		RequestTimeout:       5 * time.Second,
		LeaderLookupTimeout:  2 * time.Second,
		RecoveryStateTimeout: 5 * time.Second,
		FinalStateTimeout:    5 * time.Second,
		Retry:                coreadmin.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		PlacementSeed:        1,
		AsyncPollInterval:    5 * time.Millisecond,
	}
}

func setup(t *testing.T, cfg split.Config, counts topology.ReplicaCount, nodes ...string) (*gridmock.Cluster, *split.Orchestrator) {
	t.Helper()
	return setupBackend(t, gridmock.BackendDirect, cfg, counts, nodes...)
}

func setupBackend(t *testing.T, backend gridmock.Backend, cfg split.Config, counts topology.ReplicaCount, nodes ...string) (*gridmock.Cluster, *split.Orchestrator) {
	t.Helper()
	ctx := context.Background()
	c, err := gridmock.NewWithBackend(ctx, backend, nodes...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.CreateCollection(ctx, collection, 1, counts))
	o := split.NewOrchestrator(c.Reader, c.Mutator, c.Locks, c, diskspace.NewNodeMetrics(c, cfg.Retry), cfg)
	return c, o
}

func docIDs(prefix string, n int) []string {
	ret := make([]string, n)
	for i := range ret {
		ret[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return ret
}

func snapshot(t *testing.T, c *gridmock.Cluster) *topology.Snapshot {
	t.Helper()
	snap, err := c.Reader.Snapshot(context.Background(), collection)
	require.NoError(t, err)
	return snap
}

func version(t *testing.T, c *gridmock.Cluster) int64 {
	t.Helper()
	dbc, err := c.DB.GetCollection(context.Background(), collection)
	require.NoError(t, err)
	return dbc.Version
}

func isLocked(t *testing.T, c *gridmock.Cluster, shard string) bool {
	t.Helper()
	locked, err := c.Locks.IsLocked(context.Background(), collection, shard)
	require.NoError(t, err)
	return locked
}

// expectedDocs returns the ids hashing into r, sorted.
func expectedDocs(t *testing.T, snap *topology.Snapshot, ids []string, r hashrange.Range) []string {
	t.Helper()
	router, err := snap.Collection.RouterImpl()
	require.NoError(t, err)
	ret := []string{}
	for _, id := range ids {
		if r.Includes(router.Hash(id)) {
			ret = append(ret, id)
		}
	}
	sort.Strings(ret)
	return ret
}

// assertSplitDone checks that shard1 is retired and every sub-shard holds
// exactly the documents of its range on every replica.
func assertSplitDone(t *testing.T, c *gridmock.Cluster, ids []string, subShards, replicas int) {
	t.Helper()
	assert := assert.New(t)

	snap := snapshot(t, c)
	assert.Equal(topology.ShardInactive, snap.Collection.Shard("shard1").State)

	children := snap.Collection.Children("shard1")
	assert.Len(children, subShards)
	total := 0
	for _, child := range children {
		assert.Equal(topology.ShardActive, child.State, child.Name)
		assert.Len(child.Replicas, replicas, child.Name)

		want := expectedDocs(t, snap, ids, child.Range)
		total += len(want)
		for _, r := range child.Replicas {
			assert.Equal(topology.ReplicaActive, r.State, r.Core)
			got := c.Docs(r.Node, r.Core)
			if len(want) == 0 {
				assert.Empty(got, r.Core)
			} else {
				assert.Equal(want, got, r.Core)
			}
		}
	}
	assert.Equal(len(ids), total)
}

func TestSplitSingleReplica(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	ids := docIDs("doc", 100)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	require.NoError(t, err)

	assert.Equal([]string{"shard1_0", "shard1_1"}, res.SubShards)
	assert.Equal("shard1", res.Parent)
	assert.False(res.LockHeld)
	assert.Len(res.Ranges, 2)
	assert.False(isLocked(t, c, "shard1"))
	assert.True(c.HasCore("node1", "books_shard1_0_replica_n1"))
	assert.True(c.HasCore("node1", "books_shard1_1_replica_n1"))

	assertSplitDone(t, c, ids, 2, 1)

	snap := snapshot(t, c)
	for _, child := range snap.Collection.Children("shard1") {
		assert.Equal("node1", child.ParentNode)
		assert.NotZero(child.ParentSession)
		assert.NotNil(child.Leader())
	}
}

func TestSplitReplicationFactorTwo(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	ids := docIDs("doc", 200)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", WaitForFinalState: true})
	require.NoError(t, err)
	assert.False(res.LockHeld)
	assert.False(isLocked(t, c, "shard1"))

	assertSplitDone(t, c, ids, 2, 2)

	snap := snapshot(t, c)
	for _, child := range snap.Collection.Children("shard1") {
		nodes := map[string]bool{}
		for _, r := range child.Replicas {
			nodes[r.Node] = true
		}
		assert.Len(nodes, 2, "replicas of %s share a node", child.Name)
	}
	assert.True(c.HasCore("node2", "books_shard1_0_replica_n2"))
	assert.True(c.HasCore("node2", "books_shard1_1_replica_n2"))
}

func TestSplitKeepsUpdatesAcceptedDuringSplit(t *testing.T) {
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	ids := docIDs("doc", 100)
	require.NoError(t, c.Index(ctx, collection, ids...))

	late := docIDs("late", 50)
	var once sync.Once
	c.Intercept(func(_ string, req *coreadmin.Request) error {
		if req.Action != coreadmin.ActionRequestApplyUpdates {
			return nil
		}
		var err error
		once.Do(func() {
			err = c.Index(ctx, collection, late...)
		})
		return err
	})

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", WaitForFinalState: true})
	require.NoError(t, err)

	assertSplitDone(t, c, append(ids, late...), 2, 2)
}

func TestSplitIntoFourWithFuzz(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1", "node2")
	ids := docIDs("doc", 100)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", NumSubShards: 4, SplitFuzz: 0.2})
	require.NoError(t, err)
	assert.Len(res.SubShards, 4)

	assertSplitDone(t, c, ids, 4, 1)
}

func TestSplitExplicitRanges(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	ids := docIDs("doc", 100)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{
		Collection: collection,
		Shard:      "shard1",
		Ranges:     "80000000-bfffffff,c0000000-ffffffff,0-7fffffff",
	})
	require.NoError(t, err)
	assert.Equal("80000000-bfffffff,c0000000-ffffffff,00000000-7fffffff", hashrange.FormatRanges(res.Ranges))

	assertSplitDone(t, c, ids, 3, 1)
}

func TestSplitByRouteKey(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	ids := append(docIDs("tenant!doc", 50), docIDs("other!doc", 50)...)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{Collection: collection, SplitKey: "tenant!"})
	require.NoError(t, err)
	assert.Equal("shard1", res.Parent)
	assert.Len(res.SubShards, 3)

	router, err := snapshot(t, c).Collection.RouterImpl()
	require.NoError(t, err)
	kr, err := router.KeyRange("tenant!")
	require.NoError(t, err)
	assert.Equal(kr, res.Ranges[1])

	assertSplitDone(t, c, ids, 3, 1)
}

func TestSplitRejectsInactiveParent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	require.NoError(t, c.Mutator.Mutate(ctx, collection, &clusterstate.UpdateShardState{
		States: map[string]topology.ShardState{"shard1": topology.ShardInactive},
	}))
	before := version(t, c)

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.Error(err)
	assert.True(griderror.IsInvalidState(err), err)
	assert.Contains(err.Error(), "Parent slice is not active")

	assert.Equal(before, version(t, c))
	assert.Zero(c.Requests())
	assert.False(isLocked(t, c, "shard1"))
}

func TestSplitAlreadySplitShard(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	require.NoError(t, err)

	before := version(t, c)
	requests := c.Requests()

	_, err = o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.Error(err)
	assert.True(griderror.IsBadRequest(err), err)
	assert.Contains(err.Error(), "exists in active state")

	assert.Equal(before, version(t, c))
	assert.Equal(requests, c.Requests())
	assertSplitDone(t, c, nil, 2, 1)
}

func TestSplitWhileAnotherSplitHoldsLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	other := splitlock.New(c.DB)
	ok, err := other.Acquire(ctx, collection, "shard1")
	require.NoError(t, err)
	require.True(t, ok)

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.Error(err)
	assert.True(griderror.IsInvalidState(err), err)
	assert.Contains(err.Error(), "another split operation running")
	assert.Empty(res.SubShards)

	assert.True(isLocked(t, c, "shard1"))
	assert.Empty(snapshot(t, c).Collection.Children("shard1"))
	assert.Equal(topology.ShardActive, snapshot(t, c).Collection.Shard("shard1").State)
}

func TestSplitFailureRestoresParent(t *testing.T) {
	for _, tt := range []struct {
		name   string
		action coreadmin.Action
		match  func(req *coreadmin.Request) bool
		msg    string
	}{
		{
			name:   "sub-shard leader creation",
			action: coreadmin.ActionCreate,
			match: func(req *coreadmin.Request) bool {
				return req.Str("name") == "books_shard1_1_replica_n1"
			},
			msg: "SPLITSHARD failed to create subshard leaders",
		},
		{
			name:   "index split",
			action: coreadmin.ActionSplit,
			msg:    "SPLITSHARD failed to invoke SPLIT core admin command",
		},
		{
			name:   "buffered updates",
			action: coreadmin.ActionRequestApplyUpdates,
			msg:    "SPLITSHARD failed while asking sub shard leaders to apply buffered updates",
		},
		{
			name:   "sub-shard replica creation",
			action: coreadmin.ActionCreate,
			match: func(req *coreadmin.Request) bool {
				return req.Str("name") == "books_shard1_1_replica_n2"
			},
			msg: "SPLITSHARD failed to create subshard replicas",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
			ids := docIDs("doc", 50)
			require.NoError(t, c.Index(ctx, collection, ids...))
			c.FailAction(tt.action, tt.match)

			_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
			assert.Error(err)
			assert.True(griderror.IsServerError(err), err)
			assert.Contains(err.Error(), tt.msg)
			assert.Contains(err.Error(), "injected failure")

			snap := snapshot(t, c)
			assert.Equal(topology.ShardActive, snap.Collection.Shard("shard1").State)
			assert.Empty(snap.Collection.Children("shard1"))
			assert.Len(snap.Collection.Shards, 1)
			assert.False(isLocked(t, c, "shard1"))

			for _, core := range []string{"books_shard1_0_replica_n1", "books_shard1_1_replica_n1"} {
				assert.False(c.HasCore("node1", core), core)
			}
			for _, core := range []string{"books_shard1_0_replica_n2", "books_shard1_1_replica_n2"} {
				assert.False(c.HasCore("node2", core), core)
			}
			assert.Len(c.Docs("node1", "books_shard1_replica_n1"), len(ids))
		})
	}
}

func TestSplitLeaderSessionChanged(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	var once sync.Once
	c.Intercept(func(node string, req *coreadmin.Request) error {
		var err error
		if req.Action == coreadmin.ActionRequestApplyUpdates {
			once.Do(func() {
				err = c.RestartNode(ctx, node)
			})
		}
		return err
	})

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.Error(err)
	assert.True(griderror.IsServerError(err), err)
	assert.Contains(err.Error(), "The session id for shard leader node: node1 has changed from")

	snap := snapshot(t, c)
	assert.Equal(topology.ShardActive, snap.Collection.Shard("shard1").State)
	children := snap.Collection.Children("shard1")
	assert.Len(children, 2)
	for _, child := range children {
		assert.Equal(topology.ShardRecoveryFailed, child.State, child.Name)
	}
	assert.False(isLocked(t, c, "shard1"))
	assert.Zero(c.Calls(coreadmin.ActionUnload))
}

func TestSplitDiskSpace(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.CheckDiskSpace = true
	c, o := setup(t, cfg, topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	c.SetMetrics("node1", map[string]float64{
		diskspace.MetricIndexSize:   100,
		diskspace.MetricUsableSpace: 150,
	})
	before := version(t, c)

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", Method: coreadmin.SplitMethodRewrite})
	assert.Error(err)
	assert.True(griderror.IsServerError(err), err)
	assert.Contains(err.Error(), "required: 200")
	assert.Equal(before, version(t, c))
	assert.False(isLocked(t, c, "shard1"))

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", Method: coreadmin.SplitMethodLink, Timing: true})
	assert.NoError(err)
	assert.Contains(res.ToMap()["timing"], "checkDiskSpace")
}

func TestSplitDeletesStaleSubShard(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	stale := topology.NewShard("shard1_0", hashrange.NewRange(0, 10), topology.ShardConstruction)
	stale.Parent = "shard1"
	require.NoError(t, c.Mutator.Mutate(ctx, collection, &clusterstate.CreateShard{Shard: stale}))

	ids := docIDs("doc", 40)
	require.NoError(t, c.Index(ctx, collection, ids...))

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.NoError(err)
	assertSplitDone(t, c, ids, 2, 1)
}

func TestSplitInvalidRangesReleaseLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", Ranges: "80000000-0000ffff,00000000-7fffffff"})
	assert.Error(err)
	assert.True(griderror.IsBadRequest(err), err)
	assert.Contains(err.Error(), "either overlap with each other")
	assert.False(isLocked(t, c, "shard1"))
	assert.Len(snapshot(t, c).Collection.Shards, 1)
}

func TestSplitUnknownShardOrCollection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")

	_, err := o.Split(ctx, &split.Request{Collection: "missing", Shard: "shard1"})
	assert.True(griderror.IsBadRequest(err), err)
	assert.Contains(err.Error(), "Could not find collection : missing")

	_, err = o.Split(ctx, &split.Request{Collection: collection, Shard: "shard9"})
	assert.True(griderror.IsBadRequest(err), err)
	assert.Contains(err.Error(), "No shard with the specified name exists: shard9")
}

func TestSplitWithNodeSideAsyncRequests(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	ids := docIDs("doc", 60)
	require.NoError(t, c.Index(ctx, collection, ids...))

	res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", AsyncID: "split-42", WaitForFinalState: true})
	require.NoError(t, err)
	assert.NotZero(c.Calls(coreadmin.ActionRequestStatus))
	assert.NotEmpty(res.Results.Success)

	assertSplitDone(t, c, ids, 2, 2)
}

func TestSplitCreateNodeSet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2", "node3")
	_, err := o.Split(ctx, &split.Request{
		Collection:        collection,
		Shard:             "shard1",
		CreateNodeSet:     []string{"node3"},
		WaitForFinalState: true,
	})
	require.NoError(t, err)

	snap := snapshot(t, c)
	leader := snap.Collection.Shard("shard1").Leader()
	for _, child := range snap.Collection.Children("shard1") {
		for _, r := range child.Replicas {
			if r.Leader {
				assert.Equal(leader.Node, r.Node)
			} else {
				assert.Equal("node3", r.Node)
			}
		}
	}
}

// assertParentRestored checks that a failed split left shard1 ACTIVE with
// all of its documents and nothing of the sub-shards behind.
func assertParentRestored(t *testing.T, c *gridmock.Cluster, docs int) {
	t.Helper()
	assert := assert.New(t)

	snap := snapshot(t, c)
	assert.Equal(topology.ShardActive, snap.Collection.Shard("shard1").State)
	assert.Empty(snap.Collection.Children("shard1"))
	assert.Len(snap.Collection.Shards, 1)
	assert.False(isLocked(t, c, "shard1"))
	for _, node := range []string{"node1", "node2"} {
		for _, core := range []string{"books_shard1_0_replica_n1", "books_shard1_1_replica_n1", "books_shard1_0_replica_n2", "books_shard1_1_replica_n2"} {
			assert.False(c.HasCore(node, core), node+"/"+core)
		}
	}
	assert.Len(c.Docs("node1", "books_shard1_replica_n1"), docs)
}

func TestSplitOnEachStateBackend(t *testing.T) {
	rf2 := topology.ReplicaCount{topology.ReplicaNRT: 2}

	for _, backend := range gridmock.Backends {
		t.Run(string(backend)+"/success", func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			c, o := setupBackend(t, backend, testConfig(), rf2, "node1", "node2")
			ids := docIDs("doc", 60)
			require.NoError(t, c.Index(ctx, collection, ids...))

			res, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", WaitForFinalState: true})
			require.NoError(t, err)
			assert.False(res.LockHeld)
			require.NoError(t, c.Sync(ctx))

			assertSplitDone(t, c, ids, 2, 2)
			assert.False(isLocked(t, c, "shard1"))
		})

		for _, action := range []coreadmin.Action{coreadmin.ActionSplit, coreadmin.ActionRequestApplyUpdates} {
			t.Run(string(backend)+"/failed "+string(action), func(t *testing.T) {
				ctx := context.Background()

				c, o := setupBackend(t, backend, testConfig(), rf2, "node1", "node2")
				ids := docIDs("doc", 30)
				require.NoError(t, c.Index(ctx, collection, ids...))
				c.FailAction(action, nil)

				_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
				assert.True(t, griderror.IsServerError(err), err)
				require.NoError(t, c.Sync(ctx))

				assertParentRestored(t, c, len(ids))
			})
		}

		t.Run(string(backend)+"/cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			c, o := setupBackend(t, backend, testConfig(), rf2, "node1", "node2")
			ids := docIDs("doc", 30)
			require.NoError(t, c.Index(ctx, collection, ids...))
			c.Intercept(func(node string, req *coreadmin.Request) error {
				if req.Action == coreadmin.ActionSplit {
					cancel()
				}
				return nil
			})

			_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
			assert.Error(t, err)
			require.NoError(t, c.Sync(context.Background()))

			assertParentRestored(t, c, len(ids))
		})
	}
}

func TestSplitLeaderLookupTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.LeaderLookupTimeout = 50 * time.Millisecond
	c, o := setup(t, cfg, topology.ReplicaCount{topology.ReplicaNRT: 1}, "node1")
	require.NoError(t, c.StopNode(ctx, "node1"))
	before := version(t, c)

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.True(griderror.IsServerError(err), err)
	assert.Contains(err.Error(), "no active leader found for shard books/shard1")

	assert.Equal(before, version(t, c))
	assert.Zero(c.Requests())
	assert.False(isLocked(t, c, "shard1"))
}

func TestSplitLeaderNodeGone(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	var once sync.Once
	c.Intercept(func(node string, req *coreadmin.Request) error {
		var err error
		if req.Action == coreadmin.ActionRequestApplyUpdates {
			once.Do(func() {
				err = c.DB.DeregisterLiveNode(ctx, node)
			})
		}
		return err
	})

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1"})
	assert.True(griderror.IsServerError(err), err)
	assert.Contains(err.Error(), "The shard leader node: node1 is not live anymore!")

	snap := snapshot(t, c)
	assert.Equal(topology.ShardActive, snap.Collection.Shard("shard1").State)
	children := snap.Collection.Children("shard1")
	assert.Len(children, 2)
	for _, child := range children {
		assert.Equal(topology.ShardRecoveryFailed, child.State, child.Name)
	}
	assert.False(isLocked(t, c, "shard1"))
}

func TestSplitInsufficientNodesAfterLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	c, o := setup(t, testConfig(), topology.ReplicaCount{topology.ReplicaNRT: 2}, "node1", "node2")
	ids := docIDs("doc", 20)
	require.NoError(t, c.Index(ctx, collection, ids...))

	_, err := o.Split(ctx, &split.Request{Collection: collection, Shard: "shard1", CreateNodeSet: []string{"node9"}})
	assert.Equal(griderror.GRID_INSUFFICIENT_NODES, griderror.CodeOf(err), err)
	assert.Contains(err.Error(), "no live nodes to place")

	assert.NotZero(c.Calls(coreadmin.ActionSplit))
	assertParentRestored(t, c, len(ids))
}
