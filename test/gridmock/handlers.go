package gridmock

import (
	"context"
	"time"

	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
)

const waitForStateTimeout = time.Minute

func (c *Cluster) handle(ctx context.Context, nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	switch req.Action {
	case coreadmin.ActionCreate:
		return c.create(ctx, nodeName, req)
	case coreadmin.ActionWaitForState:
		return c.waitForState(ctx, req)
	case coreadmin.ActionSplit:
		return c.split(ctx, nodeName, req)
	case coreadmin.ActionRequestApplyUpdates:
		return c.applyUpdates(nodeName, req)
	case coreadmin.ActionCommit:
		return c.commit(nodeName, req)
	case coreadmin.ActionUnload:
		c.mu.Lock()
		delete(c.nodes[nodeName].cores, req.Str("core"))
		c.mu.Unlock()
		return coreadmin.Response{}, nil
	case coreadmin.ActionRequestStatus:
		c.mu.Lock()
		defer c.mu.Unlock()
		if st, ok := c.async[req.Str("requestid")]; ok {
			return st, nil
		}
		return coreadmin.Response{"STATUS": coreadmin.AsyncNotFound}, nil
	case coreadmin.ActionMetrics:
		c.mu.Lock()
		defer c.mu.Unlock()
		resp := coreadmin.Response{}
		for _, key := range req.Strings("key") {
			if v, ok := c.nodes[nodeName].metrics[key]; ok {
				resp[key] = v
			}
		}
		return resp, nil
	default:
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "unsupported action %s", req.Action)
	}
}

// create starts the core of a replica already present in cluster state.
// The first core of a shard under construction becomes its leader and
// buffers updates. Any other core copies the documents of its leader.
func (c *Cluster) create(ctx context.Context, nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	coreName, collection, shardName := req.Str("name"), req.Str("collection"), req.Str("shard")

	snap, err := c.Reader.Snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	shard := snap.Collection.Shard(shardName)
	if shard == nil {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "shard %s not found in collection %s", shardName, collection)
	}
	rep := shard.ReplicaByCore(nodeName, coreName)
	if rep == nil {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "no replica for core %s on %s", coreName, nodeName)
	}

	co := &core{collection: collection, shard: shardName, docs: map[string]struct{}{}}
	rec := c.Mutator.BeginBatch(collection)

	if shard.State == topology.ShardConstruction {
		co.buffering = true
		rec.Record(&clusterstate.SetLeader{Shard: shardName, Name: rep.Name})
	} else {
		leader := shard.Leader()
		if leader == nil {
			return nil, griderror.Newf(griderror.GRID_INVALID_STATE, "shard %s has no leader to recover from", shardName)
		}
		c.mu.Lock()
		src := c.core(leader.Node, leader.Core)
		if src != nil {
			for id := range src.docs {
				co.docs[id] = struct{}{}
			}
		}
		c.mu.Unlock()
		if src == nil {
			return nil, griderror.Newf(griderror.GRID_SERVER_ERROR, "leader core %s of shard %s is not loaded", leader.Core, shardName)
		}
	}

	c.mu.Lock()
	c.nodes[nodeName].cores[coreName] = co
	c.mu.Unlock()

	rec.Record(&clusterstate.UpdateReplicaState{Shard: shardName, Name: rep.Name, State: topology.ReplicaActive})
	if err := rec.Flush(ctx); err != nil {
		return nil, err
	}
	return coreadmin.Response{"core": coreName}, nil
}

func (c *Cluster) waitForState(ctx context.Context, req *coreadmin.Request) (coreadmin.Response, error) {
	collection, coreName, nodeName := req.Str("collection"), req.Str("core"), req.Str("nodeName")
	want := topology.ReplicaState(req.Str("state"))
	checkLive, onlyIfLeader := req.Bool("checkLive"), req.Bool("onlyIfLeader")

	_, err := c.Reader.WaitForState(ctx, collection, waitForStateTimeout, func(s *topology.Snapshot) bool {
		if checkLive && !s.IsLive(nodeName) {
			return false
		}
		for _, shard := range s.Collection.Shards {
			if r := shard.ReplicaByCore(nodeName, coreName); r != nil {
				return r.State == want && (!onlyIfLeader || r.Leader)
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return coreadmin.Response{}, nil
}

// split copies the documents of a core into the target cores by hash.
func (c *Cluster) split(ctx context.Context, nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	targets := req.Strings("targetCore")
	ranges, err := hashrange.ParseRanges(req.Str("ranges"))
	if err != nil {
		return nil, err
	}
	if len(targets) != len(ranges) {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "%d target cores for %d ranges", len(targets), len(ranges))
	}

	c.mu.Lock()
	parent := c.core(nodeName, req.Str("core"))
	c.mu.Unlock()
	if parent == nil {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "core %s is not loaded on %s", req.Str("core"), nodeName)
	}

	snap, err := c.Reader.Snapshot(ctx, parent.collection)
	if err != nil {
		return nil, err
	}
	router, err := snap.Collection.RouterImpl()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	dst := make([]*core, len(targets))
	for i, name := range targets {
		if dst[i] = c.core(nodeName, name); dst[i] == nil {
			return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "target core %s is not loaded on %s", name, nodeName)
		}
	}
	for id := range parent.docs {
		h := router.Hash(id)
		for i, r := range ranges {
			if r.Includes(h) {
				dst[i].docs[id] = struct{}{}
			}
		}
	}
	return coreadmin.Response{}, nil
}

func (c *Cluster) applyUpdates(nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	co := c.core(nodeName, req.Str("name"))
	if co == nil {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "core %s is not loaded on %s", req.Str("name"), nodeName)
	}
	for _, id := range co.buffer {
		co.docs[id] = struct{}{}
	}
	co.buffer = nil
	co.buffering = false
	return coreadmin.Response{}, nil
}

func (c *Cluster) commit(nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.core(nodeName, req.Str("core")) == nil {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "core %s is not loaded on %s", req.Str("core"), nodeName)
	}
	return coreadmin.Response{}, nil
}
