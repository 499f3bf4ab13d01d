package topology_test

import (
	"math"
	"testing"

	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/qdb"
	"github.com/stretchr/testify/assert"
)

func sampleCollection() *topology.Collection {
	s1 := topology.NewShard("shard1", hashrange.NewRange(math.MinInt32, -1), topology.ShardActive)
	s1.Replicas["r1"] = &topology.Replica{Name: "r1", Core: "c_shard1_replica_n1", Node: "node1", Type: topology.ReplicaNRT, State: topology.ReplicaActive, Leader: true}
	s1.Replicas["r2"] = &topology.Replica{Name: "r2", Core: "c_shard1_replica_t2", Node: "node2", Type: topology.ReplicaTLOG, State: topology.ReplicaActive}
	s2 := topology.NewShard("shard2", hashrange.NewRange(0, math.MaxInt32), topology.ShardActive)
	s3 := topology.NewShard("shard1_0", hashrange.NewRange(math.MinInt32, -1073741825), topology.ShardConstruction)
	s3.Parent = "shard1"
	s3.ParentNode = "node1"
	s3.ParentSession = 7

	return &topology.Collection{
		Name:        "c",
		Router:      hashrange.RouterCompositeID,
		Replication: topology.ReplicaCount{topology.ReplicaNRT: 1, topology.ReplicaTLOG: 1, topology.ReplicaPULL: 0},
		Shards:      map[string]*topology.Shard{"shard1": s1, "shard2": s2, "shard1_0": s3},
		Version:     12,
	}
}

func TestCollectionDBRoundTrip(t *testing.T) {
	assert := assert.New(t)

	c := sampleCollection()
	db := c.ToDB()
	assert.Equal("80000000-ffffffff", db.Shards["shard1"].Range)
	assert.Equal(1, db.TlogReplicas)
	assert.Equal(int64(7), db.Shards["shard1_0"].ParentSession)

	back := topology.CollectionFromDB(db)
	assert.Equal(c, back)
}

func TestCloneIsDeep(t *testing.T) {
	assert := assert.New(t)

	c := sampleCollection()
	cp := c.Clone()
	cp.Shards["shard1"].State = topology.ShardInactive
	cp.Shards["shard1"].Replicas["r1"].Leader = false

	assert.Equal(topology.ShardActive, c.Shards["shard1"].State)
	assert.True(c.Shards["shard1"].Replicas["r1"].Leader)
}

func TestShardHelpers(t *testing.T) {
	assert := assert.New(t)

	c := sampleCollection()
	s1 := c.Shard("shard1")

	assert.Equal("r1", s1.Leader().Name)
	assert.Nil(c.Shard("shard2").Leader())

	rc := s1.ReplicaCount()
	assert.Equal(1, rc.Get(topology.ReplicaNRT))
	assert.Equal(1, rc.Get(topology.ReplicaTLOG))
	assert.Equal(2, rc.Total())
	assert.Equal("nrt=1,tlog=1,pull=0", rc.String())

	assert.Equal("r2", s1.ReplicaByCore("node2", "c_shard1_replica_t2").Name)
	assert.Nil(s1.ReplicaByCore("node1", "c_shard1_replica_t2"))

	active := c.ActiveShards()
	assert.Len(active, 2)
	assert.Equal("shard1", active[0].Name)

	children := c.Children("shard1")
	assert.Len(children, 1)
	assert.Equal("shard1_0", children[0].Name)

	assert.Equal(map[string]int{"node1": 1, "node2": 1}, c.ReplicasPerNode())
}

func TestReplicaCountDecrement(t *testing.T) {
	assert := assert.New(t)

	rc := topology.ReplicaCount{topology.ReplicaNRT: 1}
	cp := rc.Copy()
	cp.Decrement(topology.ReplicaNRT)
	cp.Decrement(topology.ReplicaNRT)
	assert.Equal(0, cp.Get(topology.ReplicaNRT))
	assert.Equal(1, rc.Get(topology.ReplicaNRT))
}

func TestReplicaTypes(t *testing.T) {
	assert := assert.New(t)

	rt, err := topology.ParseReplicaType("tlog")
	assert.NoError(err)
	assert.Equal(topology.ReplicaTLOG, rt)
	assert.Equal("t", rt.Letter())
	assert.False(topology.ReplicaPULL.CanBeLeader())

	_, err = topology.ParseReplicaType("bogus")
	assert.Error(err)
}

func TestReplicaIsActive(t *testing.T) {
	assert := assert.New(t)

	r := &topology.Replica{Node: "node1", State: topology.ReplicaActive}
	assert.True(r.IsActive(map[string]int64{"node1": 3}))
	assert.False(r.IsActive(map[string]int64{}))

	snap := &topology.Snapshot{Collection: topology.CollectionFromDB(&qdb.Collection{Name: "x", Version: 4}), LiveNodes: map[string]int64{"b": 1, "a": 2}}
	assert.Equal(int64(4), snap.Version())
	assert.Equal([]string{"a", "b"}, snap.SortedLiveNodes())
	assert.True(snap.IsLive("a"))
}

func TestShardsForKey(t *testing.T) {
	assert := assert.New(t)
	c := sampleCollection()

	shards, err := c.ShardsForKey("tenant!")
	assert.NoError(err)
	assert.Len(shards, 1)

	shards, err = c.ShardsForKey("tenant/0!")
	assert.NoError(err)
	assert.Len(shards, 2)

	c.Router = hashrange.RouterPlain
	_, err = c.ShardsForKey("tenant!")
	assert.Error(err)
}
