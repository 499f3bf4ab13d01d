// Package gridmock runs an in-memory search cluster: a metadata store,
// a state mutator of either backend and nodes that serve core admin requests on
// in-memory document sets.
package gridmock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/pkg/placement"
	"github.com/searchgrid/grid/pkg/splitlock"
	"github.com/searchgrid/grid/qdb"
)

// Interceptor sees every request before its node handles it. A non nil
// error is returned to the caller instead of handling the request.
type Interceptor func(node string, req *coreadmin.Request) error

type core struct {
	collection string
	shard      string
	docs       map[string]struct{}
	buffer     []string
	buffering  bool
}

type node struct {
	name  string
	up    bool
	cores map[string]*core

	metrics map[string]float64
}

// Backend selects how the cluster applies state changes.
type Backend string

const (
	BackendDirect    = Backend("direct")
	BackendSequencer = Backend("sequencer")
)

var Backends = []Backend{BackendDirect, BackendSequencer}

type Cluster struct {
	DB      *qdb.MemQDB
	Mutator clusterstate.Mutator
	Reader  *clusterstate.Reader
	Locks   *splitlock.SplitLock

	seq *clusterstate.Sequencer

	mu           sync.Mutex
	nodes        map[string]*node
	interceptors []Interceptor
	async        map[string]coreadmin.Response
	calls        map[coreadmin.Action]int

	requests atomic.Int64
}

var _ coreadmin.NodeClient = &Cluster{}

func New(ctx context.Context, nodes ...string) (*Cluster, error) {
	return NewWithBackend(ctx, BackendDirect, nodes...)
}

// NewWithBackend creates a cluster whose state changes go through the
// given backend. A sequencer runs until Close is called, independent of
// ctx.
func NewWithBackend(ctx context.Context, backend Backend, nodes ...string) (*Cluster, error) {
	db, err := qdb.NewMemQDB("")
	if err != nil {
		return nil, err
	}
	locks := splitlock.New(db)
	opts := []clusterstate.Option{
		clusterstate.WithFinalizeHook(locks.OnSplitFinalized),
		clusterstate.WithConflictRetries(64, time.Millisecond),
	}
	c := &Cluster{
		DB:     db,
		Reader: clusterstate.NewReader(db).WithPollInterval(5 * time.Millisecond),
		Locks:  locks,
		nodes:  map[string]*node{},
		async:  map[string]coreadmin.Response{},
		calls:  map[coreadmin.Action]int{},
	}
	switch backend {
	case BackendSequencer:
		c.seq = clusterstate.NewSequencer(db, 0, opts...)
		c.seq.Start(context.Background())
		c.Mutator = c.seq
	default:
		c.Mutator = clusterstate.NewDirect(db, opts...)
	}
	for _, name := range nodes {
		if err := c.AddNode(ctx, name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Sync waits until every state change queued so far has been applied.
func (c *Cluster) Sync(ctx context.Context) error {
	if c.seq == nil {
		return nil
	}
	return c.seq.Sync(ctx)
}

func (c *Cluster) Close() {
	if c.seq != nil {
		c.seq.Stop()
	}
}

func (c *Cluster) AddNode(ctx context.Context, name string) error {
	c.mu.Lock()
	c.nodes[name] = &node{name: name, up: true, cores: map[string]*core{}}
	c.mu.Unlock()
	_, err := c.DB.RegisterLiveNode(ctx, name)
	return err
}

// RestartNode re-registers a node, which gives it a new session. Its cores
// survive.
func (c *Cluster) RestartNode(ctx context.Context, name string) error {
	c.mu.Lock()
	n, ok := c.nodes[name]
	if ok {
		n.up = true
	}
	c.mu.Unlock()
	if !ok {
		return griderror.Newf(griderror.GRID_NOT_FOUND, "unknown node %s", name)
	}
	_, err := c.DB.RegisterLiveNode(ctx, name)
	return err
}

// StopNode makes a node unreachable and removes its live registration.
func (c *Cluster) StopNode(ctx context.Context, name string) error {
	c.mu.Lock()
	if n, ok := c.nodes[name]; ok {
		n.up = false
	}
	c.mu.Unlock()
	return c.DB.DeregisterLiveNode(ctx, name)
}

// SetMetrics sets metric values a node reports for any core.
func (c *Cluster) SetMetrics(name string, metrics map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[name]; ok {
		n.metrics = metrics
	}
}

func (c *Cluster) Intercept(f Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, f)
}

// FailAction makes requests of action fail on every node. A nil match
// fails all of them.
func (c *Cluster) FailAction(action coreadmin.Action, match func(req *coreadmin.Request) bool) {
	c.Intercept(func(node string, req *coreadmin.Request) error {
		if req.Action != action || (match != nil && !match(req)) {
			return nil
		}
		return griderror.Newf(griderror.GRID_SERVER_ERROR, "injected failure of %s on %s", action, node)
	})
}

// Calls returns how many requests of action reached a node.
func (c *Cluster) Calls(action coreadmin.Action) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[action]
}

func (c *Cluster) Requests() int64 {
	return c.requests.Load()
}

// CreateCollection creates a collection whose shards evenly cover the
// hash space. Replicas are spread round robin over the nodes, the first
// replica of every shard leads it.
func (c *Cluster) CreateCollection(ctx context.Context, name string, numShards int, counts topology.ReplicaCount) error {
	ranges := []hashrange.Range{hashrange.FullRange()}
	if numShards > 1 {
		var err error
		if ranges, err = hashrange.Partition(hashrange.FullRange(), numShards, 0); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]string, 0, len(c.nodes))
	for n := range c.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	if len(nodes) == 0 {
		return griderror.New(griderror.GRID_INSUFFICIENT_NODES, "cluster has no nodes")
	}

	coll := &topology.Collection{
		Name:        name,
		Router:      hashrange.RouterCompositeID,
		Replication: counts.Copy(),
		Shards:      map[string]*topology.Shard{},
	}
	next := 0
	for i, r := range ranges {
		shardName := fmt.Sprintf("shard%d", i+1)
		shard := topology.NewShard(shardName, r, topology.ShardActive)
		index := 1
		hasLeader := false
		for _, t := range topology.ReplicaTypes {
			for k := 0; k < counts.Get(t); k++ {
				nodeName := nodes[next%len(nodes)]
				next++
				coreName := placement.BuildCoreName(name, shardName, t, index)
				index++
				leader := !hasLeader && t.CanBeLeader()
				hasLeader = hasLeader || leader
				shard.Replicas[coreName] = &topology.Replica{
					Name:   coreName,
					Core:   coreName,
					Node:   nodeName,
					Type:   t,
					State:  topology.ReplicaActive,
					Leader: leader,
				}
				c.nodes[nodeName].cores[coreName] = &core{
					collection: name,
					shard:      shardName,
					docs:       map[string]struct{}{},
				}
			}
		}
		coll.Shards[shardName] = shard
	}
	return c.DB.CreateCollection(ctx, coll.ToDB())
}

// Index writes documents to every core of every shard owning their hash,
// including sub-shards still under construction. Buffering cores keep
// the documents aside until their buffered updates are applied.
func (c *Cluster) Index(ctx context.Context, collection string, ids ...string) error {
	snap, err := c.Reader.Snapshot(ctx, collection)
	if err != nil {
		return err
	}
	router, err := snap.Collection.RouterImpl()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		h := router.Hash(id)
		written := false
		for _, shard := range snap.Collection.Shards {
			if !shard.Range.Includes(h) || !acceptsUpdates(shard.State) {
				continue
			}
			for _, r := range shard.Replicas {
				co := c.core(r.Node, r.Core)
				if co == nil {
					continue
				}
				if co.buffering {
					co.buffer = append(co.buffer, id)
				} else {
					co.docs[id] = struct{}{}
				}
				written = true
			}
		}
		if !written {
			return griderror.Newf(griderror.GRID_SERVER_ERROR, "no core accepted document %s", id)
		}
	}
	return nil
}

func acceptsUpdates(state topology.ShardState) bool {
	switch state {
	case topology.ShardActive, topology.ShardConstruction, topology.ShardRecovery:
		return true
	default:
		return false
	}
}

// Docs returns the sorted document ids of a core, or nil if the node does
// not host it.
func (c *Cluster) Docs(nodeName, coreName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	co := c.core(nodeName, coreName)
	if co == nil {
		return nil
	}
	ret := make([]string, 0, len(co.docs))
	for id := range co.docs {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// HasCore reports whether a node hosts coreName.
func (c *Cluster) HasCore(nodeName, coreName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.core(nodeName, coreName) != nil
}

// core must be called with c.mu held.
func (c *Cluster) core(nodeName, coreName string) *core {
	n, ok := c.nodes[nodeName]
	if !ok {
		return nil
	}
	return n.cores[coreName]
}

// Execute serves a core admin request the way a node would. Requests are
// passed through their wire form first so handlers see the same value
// types a remote node gets.
func (c *Cluster) Execute(ctx context.Context, nodeName string, req *coreadmin.Request) (coreadmin.Response, error) {
	s, err := req.ToStruct()
	if err != nil {
		return nil, err
	}
	if req, err = coreadmin.RequestFromStruct(s); err != nil {
		return nil, err
	}

	c.mu.Lock()
	n, ok := c.nodes[nodeName]
	up := ok && n.up
	interceptors := append([]Interceptor(nil), c.interceptors...)
	c.mu.Unlock()
	if !up {
		return nil, status.Errorf(codes.Unavailable, "node %s is not reachable", nodeName)
	}

	c.requests.Inc()
	c.mu.Lock()
	c.calls[req.Action]++
	c.mu.Unlock()

	for _, f := range interceptors {
		if err := f(nodeName, req); err != nil {
			return nil, err
		}
	}

	id := req.Str(coreadmin.ParamAsync)
	if id == "" || req.Action == coreadmin.ActionRequestStatus {
		return c.handle(ctx, nodeName, req)
	}

	resp, err := c.handle(ctx, nodeName, req)
	st := coreadmin.Response{"STATUS": coreadmin.AsyncCompleted}
	if err != nil {
		st = coreadmin.Response{"STATUS": coreadmin.AsyncFailed, "msg": err.Error()}
	}
	for k, v := range resp {
		st[k] = v
	}
	c.mu.Lock()
	c.async[id] = st
	c.mu.Unlock()
	return coreadmin.Response{"requestid": id}, nil
}
