package split

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/searchgrid/grid/coordinator/statistics"
	"github.com/searchgrid/grid/pkg/clusterstate"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/diskspace"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/pkg/placement"
	"github.com/searchgrid/grid/pkg/splitlock"
)

// Orchestrator splits one ACTIVE shard into sub-shards while the cluster
// keeps serving reads and writes.
type Orchestrator struct {
	reader  *clusterstate.Reader
	mutator clusterstate.Mutator
	locks   *splitlock.SplitLock
	client  coreadmin.NodeClient
	metrics diskspace.MetricsSource
	cfg     Config
}

func NewOrchestrator(reader *clusterstate.Reader, mutator clusterstate.Mutator, locks *splitlock.SplitLock,
	client coreadmin.NodeClient, metrics diskspace.MetricsSource, cfg Config) *Orchestrator {
	return &Orchestrator{
		reader:  reader,
		mutator: mutator,
		locks:   locks,
		client:  client,
		metrics: metrics,
		cfg:     cfg,
	}
}

// attempt is the in-memory state of one split call.
type attempt struct {
	req        *Request
	collection string

	parent     *topology.Shard
	leader     *topology.Replica
	leaderType topology.ReplicaType
	session    int64
	counts     topology.ReplicaCount
	siblings   []string

	subShards []string
	subCores  []string
	ranges    []hashrange.Range
	positions []placement.ReplicaPosition

	locked        bool
	leaderChanged bool
	lockHeld      bool

	results *coreadmin.Results
	timer   *Timer
}

type Result struct {
	Collection string
	Parent     string
	SubShards  []string
	Ranges     []hashrange.Range
	// LockHeld reports that the split lock was kept because completion
	// could not be confirmed yet.
	LockHeld bool
	Timing   *Timer
	Results  *coreadmin.Results
}

func (r *Result) ToMap() map[string]any {
	ret := r.Results.ToMap()
	if len(r.SubShards) > 0 {
		subs := make([]any, len(r.SubShards))
		for i, s := range r.SubShards {
			subs[i] = s
		}
		ret["subShards"] = subs
		ret["ranges"] = hashrange.FormatRanges(r.Ranges)
	}
	if r.LockHeld {
		ret["lock_held"] = true
	}
	if r.Timing != nil {
		ret["timing"] = r.Timing.ToMap()
	}
	return ret
}

func (a *attempt) result() *Result {
	ret := &Result{
		Collection: a.collection,
		SubShards:  a.subShards,
		Ranges:     a.ranges,
		LockHeld:   a.lockHeld,
		Results:    a.results,
	}
	if a.parent != nil {
		ret.Parent = a.parent.Name
	}
	if a.req.Timing {
		ret.Timing = a.timer
	}
	return ret
}

// Split runs the whole split protocol. On failure the partially created
// sub-shards are removed and the parent is left ACTIVE, unless the parent
// leader changed during the split, in which case the sub-shards stay
// RECOVERY_FAILED. The returned result is never nil.
func (o *Orchestrator) Split(ctx context.Context, req *Request) (*Result, error) {
	a := &attempt{
		req:        req,
		collection: req.Collection,
		results:    coreadmin.NewResults(),
		timer:      NewTimer("split"),
	}
	if err := req.Validate(); err != nil {
		return a.result(), err
	}

	key := uuid.NewString()
	statistics.RecordSplitStart(key, time.Now())
	gridlog.Zero.Info().
		Str("collection", req.Collection).
		Str("shard", req.Shard).
		Str("split-key", req.SplitKey).
		Str("method", string(req.Method)).
		Msg("split: starting")

	err := o.run(ctx, a)
	a.timer.Stop()

	if err != nil {
		err = griderror.AsServerError(err)
		gridlog.Zero.Error().
			Err(err).
			Str("collection", a.collection).
			Str("shard", req.Shard).
			Msg("split: failed")
		if a.locked {
			detached := context.WithoutCancel(ctx)
			o.cleanup(detached, a)
			o.release(detached, a)
		}
	} else {
		gridlog.Zero.Info().
			Str("collection", a.collection).
			Str("shard", a.parent.Name).
			Strs("sub-shards", a.subShards).
			Bool("lock-held", a.lockHeld).
			Float64("elapsed ms", float64(a.timer.Elapsed().Microseconds())/1000).
			Msg("split: finished")
	}

	if ferr := statistics.RecordSplitFinish(key, time.Now(), err == nil); ferr != nil {
		gridlog.Zero.Warn().Err(ferr).Msg("split: failed to record statistics")
	}
	return a.result(), err
}

func (o *Orchestrator) run(ctx context.Context, a *attempt) error {
	snap, err := o.reader.Snapshot(ctx, a.collection)
	if err != nil {
		if griderror.IsNotFound(err) {
			return griderror.Newf(griderror.GRID_BAD_REQUEST, "Could not find collection : %s", a.collection)
		}
		return err
	}

	if a.parent, err = resolveParent(snap, a.req); err != nil {
		return err
	}
	if err := checkParentState(snap, a.parent); err != nil {
		return err
	}

	a.leader, snap, err = o.reader.ResolveLeader(ctx, a.collection, a.parent.Name, o.cfg.LeaderLookupTimeout)
	if err != nil {
		return err
	}
	a.parent = snap.Collection.Shard(a.parent.Name)
	if err := checkParentState(snap, a.parent); err != nil {
		return err
	}
	a.leaderType = a.leader.Type

	if o.cfg.CheckDiskSpace {
		t := a.timer.Sub("checkDiskSpace")
		err := diskspace.Check(ctx, o.metrics, a.leader.Node, a.leader.Core, a.req.Method)
		t.Stop()
		if err != nil {
			return err
		}
	}

	session, live, err := o.reader.LiveSession(ctx, a.leader.Node)
	if err != nil {
		return err
	}
	if !live {
		return griderror.Newf(griderror.GRID_SERVER_ERROR, "The shard leader node: %s is not live anymore!", a.leader.Node)
	}
	a.session = session

	a.counts = snap.Collection.Replication.Copy()
	if a.counts.Get(a.leaderType) < 1 {
		return griderror.Newf(griderror.GRID_SERVER_ERROR,
			"aborting split - inconsistent replica types in collection %s: nrt=%d, tlog=%d, pull=%d, shard leader type is %s",
			a.collection, a.counts.Get(topology.ReplicaNRT), a.counts.Get(topology.ReplicaTLOG),
			a.counts.Get(topology.ReplicaPULL), a.leaderType)
	}
	for _, s := range snap.Collection.ActiveShards() {
		if s.Name != a.parent.Name {
			a.siblings = append(a.siblings, s.Name)
		}
	}

	ok, err := o.locks.Acquire(ctx, a.collection, a.parent.Name)
	if err != nil {
		return err
	}
	if !ok {
		return griderror.Newf(griderror.GRID_INVALID_STATE,
			"Can't lock parent slice for splitting (another split operation running?): %s/%s", a.collection, a.parent.Name)
	}
	a.locked = true

	phases := []func(context.Context, *topology.Snapshot, *attempt) (*topology.Snapshot, error){
		o.fillRanges,
		o.deleteStaleSubShards,
		o.createSubSlicesAndLeaders,
		o.waitForSubSliceLeadersAlive,
		o.splitParentCore,
		o.applyBufferedUpdates,
		o.identifyNodesForReplicas,
		o.createReplicaPlaceholders,
		o.verifyLeaderSession,
		o.cutover,
		o.createCoresForReplicas,
	}
	for _, phase := range phases {
		if snap, err = phase(ctx, snap, a); err != nil {
			return err
		}
	}
	if a.counts.Total() > 1 {
		if err := o.finalCommit(ctx, a); err != nil {
			return err
		}
	}

	o.confirmFinalState(ctx, a)
	return nil
}

func resolveParent(snap *topology.Snapshot, req *Request) (*topology.Shard, error) {
	c := snap.Collection
	if req.Shard != "" {
		s := c.Shard(req.Shard)
		if s == nil {
			return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "No shard with the specified name exists: %s", req.Shard)
		}
		return s, nil
	}

	router, err := c.RouterImpl()
	if err != nil {
		return nil, err
	}
	if !router.IsRangeAware() {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"Split by route key can only be used with compositeId router. Found router: %s", router.Name())
	}
	shards, err := c.ShardsForKey(req.SplitKey)
	if err != nil {
		return nil, err
	}
	switch len(shards) {
	case 0:
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "Unable to find an active shard for split.key: %s", req.SplitKey)
	case 1:
		gridlog.Zero.Info().
			Str("split-key", req.SplitKey).
			Str("shard", shards[0].Name).
			Msg("split: parent shard resolved by route key")
		return shards[0], nil
	default:
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
			"Splitting a split.key: %s which spans multiple shards is not supported", req.SplitKey)
	}
}

// checkParentState fails unless parent is ACTIVE. A parent that was
// already split is a bad request rather than a state conflict.
func checkParentState(snap *topology.Snapshot, parent *topology.Shard) error {
	if parent == nil {
		return griderror.New(griderror.GRID_BAD_REQUEST, "parent shard disappeared from cluster state")
	}
	if parent.State == topology.ShardActive {
		return nil
	}
	if parent.State == topology.ShardInactive {
		for _, child := range snap.Collection.Children(parent.Name) {
			if child.State == topology.ShardActive {
				return griderror.Newf(griderror.GRID_BAD_REQUEST,
					"Sub-shard: %s exists in active state. Aborting split shard.", child.Name)
			}
		}
	}
	return griderror.Newf(griderror.GRID_INVALID_STATE,
		"Parent slice is not active: %s/ %s, state=%s", snap.Collection.Name, parent.Name, parent.State)
}

func (o *Orchestrator) fillRanges(_ context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("fillRanges")
	defer t.Stop()

	parentRange := a.parent.Range
	router, err := snap.Collection.RouterImpl()
	if err != nil {
		return nil, err
	}
	if !router.IsRangeAware() {
		parentRange = router.FullRange()
	}

	var ranges []hashrange.Range
	switch {
	case a.req.Ranges != "":
		proposed, err := hashrange.ParseRanges(a.req.Ranges)
		if err != nil {
			return nil, err
		}
		if ranges, err = hashrange.ValidateExplicitRanges(parentRange, proposed); err != nil {
			return nil, err
		}
	case a.req.SplitKey != "":
		if ranges, err = hashrange.PartitionByKey(parentRange, a.req.SplitKey, router); err != nil {
			return nil, err
		}
		gridlog.Zero.Info().
			Str("shard", a.parent.Name).
			Str("range", parentRange.String()).
			Str("sub-ranges", hashrange.FormatRanges(ranges)).
			Msg("split: partitioned parent range by route key")
	default:
		if ranges, err = hashrange.Partition(parentRange, a.req.SubShardCount(), a.req.SplitFuzz); err != nil {
			return nil, err
		}
	}

	a.ranges = ranges
	a.subShards = make([]string, len(ranges))
	a.subCores = make([]string, len(ranges))
	for i := range ranges {
		a.subShards[i] = SubShardName(a.parent.Name, i)
		a.subCores[i] = placement.BuildCoreName(a.collection, a.subShards[i], a.leaderType, 1)
	}
	return snap, nil
}

// SubShardName returns the name of the i-th sub-shard of parent.
func SubShardName(parent string, i int) string {
	return parent + "_" + strconv.Itoa(i)
}

func (o *Orchestrator) deleteStaleSubShards(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	for _, name := range a.subShards {
		s := snap.Collection.Shard(name)
		if s == nil {
			continue
		}
		if s.State == topology.ShardActive {
			// not ours to clean up
			a.subShards = nil
			return nil, griderror.Newf(griderror.GRID_BAD_REQUEST,
				"Sub-shard: %s exists in active state. Aborting split shard.", name)
		}
		gridlog.Zero.Info().
			Str("collection", a.collection).
			Str("shard", name).
			Str("state", string(s.State)).
			Msg("split: deleting sub-shard left by an earlier attempt")
		if err := o.deleteShard(ctx, snap, name); err != nil {
			return nil, griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "Unable to delete already existing sub shard: "+name)
		}
	}
	return o.reader.Snapshot(ctx, a.collection)
}

func (o *Orchestrator) createSubSlicesAndLeaders(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("createSubSlicesAndLeadersInState")
	defer t.Stop()

	var err error
	for i, name := range a.subShards {
		shard := topology.NewShard(name, a.ranges[i], topology.ShardConstruction)
		shard.Parent = a.parent.Name
		shard.ParentNode = a.leader.Node
		shard.ParentSession = a.session
		if err := o.mutator.Mutate(ctx, a.collection, &clusterstate.CreateShard{Shard: shard}); err != nil {
			return nil, err
		}
		if snap, err = o.reader.WaitForNewShard(ctx, a.collection, name, o.cfg.RequestTimeout); err != nil {
			return nil, err
		}
	}

	tracker, done := o.newTracker(ctx, a)
	defer done()
	for i, name := range a.subShards {
		core := a.subCores[i]
		err := o.mutator.Mutate(ctx, a.collection, &clusterstate.AddReplica{
			Shard: name,
			Replica: &topology.Replica{
				Name:  core,
				Core:  core,
				Node:  a.leader.Node,
				Type:  a.leaderType,
				State: topology.ReplicaDown,
			},
		})
		if err != nil {
			return nil, err
		}
		if _, err := o.reader.WaitForCoreNodeName(ctx, a.collection, a.leader.Node, core, o.cfg.RequestTimeout); err != nil {
			return nil, err
		}
		tracker.Send(a.leader.Node, coreadmin.NewCreateCore(core, a.collection, name, a.leaderType))
	}
	if err := tracker.ProcessResponses(a.results, true, "SPLITSHARD failed to create subshard leaders"); err != nil {
		return nil, err
	}
	return o.reader.Snapshot(ctx, a.collection)
}

func (o *Orchestrator) waitForSubSliceLeadersAlive(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("waitForSubSliceLeadersAlive")
	defer t.Stop()

	tracker, done := o.newTracker(ctx, a)
	defer done()
	for _, core := range a.subCores {
		tracker.Send(a.leader.Node, coreadmin.NewWaitForState(a.collection, core, a.leader.Node, topology.ReplicaActive, true, true))
	}
	if err := tracker.ProcessResponses(a.results, true, "SPLITSHARD timed out waiting for subshard leaders to come up"); err != nil {
		return nil, err
	}
	gridlog.Zero.Debug().
		Str("collection", a.collection).
		Strs("sub-shards", a.subShards).
		Msg("split: sub-shard leaders are active")
	return snap, nil
}

func (o *Orchestrator) splitParentCore(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("splitParentCore")
	defer t.Stop()

	tracker, done := o.newTracker(ctx, a)
	defer done()
	tracker.Send(a.leader.Node, coreadmin.NewSplitCore(a.leader.Core, a.subCores, a.ranges, a.req.Method))
	if err := tracker.ProcessResponses(a.results, true, "SPLITSHARD failed to invoke SPLIT core admin command"); err != nil {
		return nil, err
	}
	return snap, nil
}

func (o *Orchestrator) applyBufferedUpdates(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("applyBufferedUpdates")
	defer t.Stop()

	tracker, done := o.newTracker(ctx, a)
	defer done()
	for _, core := range a.subCores {
		tracker.Send(a.leader.Node, coreadmin.NewApplyUpdates(core))
	}
	if err := tracker.ProcessResponses(a.results, true, "SPLITSHARD failed while asking sub shard leaders to apply buffered updates"); err != nil {
		return nil, err
	}
	return snap, nil
}

func (o *Orchestrator) identifyNodesForReplicas(ctx context.Context, _ *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	t := a.timer.Sub("identifyNodesForReplicas")
	defer t.Stop()

	snap, err := o.reader.Snapshot(ctx, a.collection)
	if err != nil {
		return nil, err
	}

	counts := a.counts.Copy()
	counts.Decrement(a.leaderType)

	nodes := snap.SortedLiveNodes()
	if len(a.req.CreateNodeSet) > 0 {
		nodes = slices.DeleteFunc(nodes, func(n string) bool {
			return !slices.Contains(a.req.CreateNodeSet, n)
		})
	}
	existing := make(map[string][]string, len(a.subShards))
	for _, name := range a.subShards {
		existing[name] = []string{a.leader.Node}
	}

	a.positions, err = placement.Assign(&placement.Request{
		Collection: a.collection,
		Shards:     a.subShards,
		Counts:     counts,
		Nodes:      nodes,
		Load:       snap.Collection.ReplicasPerNode(),
		Existing:   existing,
		MaxPerNode: o.cfg.MaxReplicasPerNode,
		Seed:       o.cfg.PlacementSeed,
		StartIndex: 2,
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// createReplicaPlaceholders publishes every remaining replica as DOWN in
// one change so that no sub-shard looks fully replicated early.
func (o *Orchestrator) createReplicaPlaceholders(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	if len(a.positions) == 0 {
		return snap, nil
	}
	t := a.timer.Sub("createReplicaPlaceholders")
	defer t.Stop()

	rec := o.mutator.BeginBatch(a.collection)
	for _, p := range a.positions {
		core := p.CoreName(a.collection)
		rec.Record(&clusterstate.AddReplica{
			Shard: p.Shard,
			Replica: &topology.Replica{
				Name:  core,
				Core:  core,
				Node:  p.Node,
				Type:  p.Type,
				State: topology.ReplicaDown,
			},
		})
	}
	if err := rec.Flush(ctx); err != nil {
		return nil, err
	}

	return o.reader.WaitForState(ctx, a.collection, o.cfg.RequestTimeout, func(s *topology.Snapshot) bool {
		for _, p := range a.positions {
			shard := s.Collection.Shard(p.Shard)
			if shard == nil || shard.ReplicaByCore(p.Node, p.CoreName(a.collection)) == nil {
				return false
			}
		}
		return true
	})
}

// verifyLeaderSession fails the split for good if the parent leader
// re-registered since the sub-shards were created. Updates accepted in
// between may be missing from the sub-shards.
func (o *Orchestrator) verifyLeaderSession(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	session, live, err := o.reader.LiveSession(ctx, a.leader.Node)
	if err != nil {
		return nil, err
	}
	if live && session == a.session {
		return snap, nil
	}

	var cause error
	if !live {
		cause = griderror.Newf(griderror.GRID_SERVER_ERROR, "The shard leader node: %s is not live anymore!", a.leader.Node)
	} else {
		cause = griderror.Newf(griderror.GRID_SERVER_ERROR,
			"The session id for shard leader node: %s has changed from %d to %d", a.leader.Node, a.session, session)
	}

	states := make(map[string]topology.ShardState, len(a.subShards))
	for _, name := range a.subShards {
		states[name] = topology.ShardRecoveryFailed
	}
	if err := o.mutator.Mutate(ctx, a.collection, &clusterstate.UpdateShardState{States: states}); err != nil {
		gridlog.Zero.Error().
			Err(err).
			Str("collection", a.collection).
			Msg("split: failed to mark sub-shards recovery_failed")
	}
	a.leaderChanged = true
	return nil, cause
}

// cutover switches shard states. With a single replica per shard the
// parent is committed first and retired together with the activation of
// its sub-shards. Otherwise sub-shards enter RECOVERY and the parent is
// retired once their replicas caught up.
func (o *Orchestrator) cutover(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	states := make(map[string]topology.ShardState, len(a.subShards)+1)

	if a.counts.Total() == 1 {
		if err := o.finalCommit(ctx, a); err != nil {
			return nil, err
		}
		states[a.parent.Name] = topology.ShardInactive
		for _, name := range a.subShards {
			states[name] = topology.ShardActive
		}
		if err := o.mutator.Mutate(ctx, a.collection, &clusterstate.UpdateShardState{States: states}); err != nil {
			return nil, err
		}
		return o.reader.WaitForState(ctx, a.collection, o.cfg.RequestTimeout, completed(a))
	}

	for _, name := range a.subShards {
		states[name] = topology.ShardRecovery
	}
	if err := o.mutator.Mutate(ctx, a.collection, &clusterstate.UpdateShardState{States: states}); err != nil {
		return nil, err
	}
	return o.reader.WaitForState(ctx, a.collection, o.cfg.RecoveryStateTimeout, func(s *topology.Snapshot) bool {
		for _, name := range a.subShards {
			shard := s.Collection.Shard(name)
			if shard == nil || shard.State != topology.ShardRecovery {
				return false
			}
		}
		return true
	})
}

func (o *Orchestrator) createCoresForReplicas(ctx context.Context, snap *topology.Snapshot, a *attempt) (*topology.Snapshot, error) {
	if len(a.positions) == 0 {
		return snap, nil
	}
	t := a.timer.Sub("createCoresForReplicas")
	defer t.Stop()

	tracker, done := o.newTracker(ctx, a)
	defer done()
	for _, p := range a.positions {
		tracker.Send(p.Node, coreadmin.NewCreateCore(p.CoreName(a.collection), a.collection, p.Shard, p.Type))
	}
	if err := tracker.ProcessResponses(a.results, true, "SPLITSHARD failed to create subshard replicas"); err != nil {
		return nil, err
	}
	return snap, nil
}

func (o *Orchestrator) finalCommit(ctx context.Context, a *attempt) error {
	t := a.timer.Sub("finalCommit")
	defer t.Stop()

	tracker, done := o.newTracker(ctx, a)
	defer done()
	tracker.Send(a.leader.Node, coreadmin.NewCommit(a.leader.Core))
	return tracker.ProcessResponses(a.results, true, "Unable to call distrib softCommit on: "+a.leader.Node+"/"+a.leader.Core)
}

// confirmFinalState releases the lock once the parent is INACTIVE and all
// sub-shards are ACTIVE. Otherwise the lock stays until the split
// completes on its own.
func (o *Orchestrator) confirmFinalState(ctx context.Context, a *attempt) {
	var (
		snap *topology.Snapshot
		err  error
	)
	if a.req.WaitForFinalState {
		snap, err = o.reader.WaitForState(ctx, a.collection, o.cfg.FinalStateTimeout, completed(a))
	} else {
		snap, err = o.reader.Snapshot(ctx, a.collection)
		if err == nil && !completed(a)(snap) {
			snap = nil
		}
	}
	if err != nil || snap == nil {
		a.lockHeld = true
		gridlog.Zero.Info().
			Err(err).
			Str("collection", a.collection).
			Str("shard", a.parent.Name).
			Msg("split: sub-shards still recovering, keeping split lock until completion")
		return
	}

	o.release(ctx, a)
}

func completed(a *attempt) func(*topology.Snapshot) bool {
	return func(s *topology.Snapshot) bool {
		parent := s.Collection.Shard(a.parent.Name)
		if parent == nil || parent.State != topology.ShardInactive {
			return false
		}
		for _, name := range a.subShards {
			shard := s.Collection.Shard(name)
			if shard == nil || shard.State != topology.ShardActive {
				return false
			}
		}
		return true
	}
}

func (o *Orchestrator) release(ctx context.Context, a *attempt) {
	if err := o.locks.Release(ctx, a.collection, a.parent.Name); err != nil {
		a.lockHeld = true
		gridlog.Zero.Error().
			Err(err).
			Str("collection", a.collection).
			Str("shard", a.parent.Name).
			Msg("split: failed to release split lock")
		return
	}
	a.lockHeld = false
}

func (o *Orchestrator) newTracker(ctx context.Context, a *attempt) (*coreadmin.Tracker, func()) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	tracker := coreadmin.NewTracker(ctx, o.client, o.cfg.Retry, a.req.AsyncID)
	if o.cfg.AsyncPollInterval > 0 {
		tracker.WithPollInterval(o.cfg.AsyncPollInterval)
	}
	return tracker, func() {
		tracker.Close()
		cancel()
	}
}
