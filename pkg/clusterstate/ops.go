package clusterstate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
)

// Op is one cluster state change applied to a collection document.
type Op interface {
	Apply(c *topology.Collection) error
	String() string
}

type CreateShard struct {
	Shard *topology.Shard
}

func (o *CreateShard) Apply(c *topology.Collection) error {
	if _, ok := c.Shards[o.Shard.Name]; ok {
		return griderror.Newf(griderror.GRID_INVALID_STATE, "shard %s already exists in collection %s", o.Shard.Name, c.Name)
	}
	s := *o.Shard
	s.Replicas = make(map[string]*topology.Replica, len(o.Shard.Replicas))
	for name, r := range o.Shard.Replicas {
		cp := *r
		s.Replicas[name] = &cp
	}
	c.Shards[s.Name] = &s
	return nil
}

func (o *CreateShard) String() string {
	return fmt.Sprintf("createshard %s range=%s state=%s", o.Shard.Name, o.Shard.Range, o.Shard.State)
}

type DeleteShard struct {
	Name string
}

func (o *DeleteShard) Apply(c *topology.Collection) error {
	delete(c.Shards, o.Name)
	return nil
}

func (o *DeleteShard) String() string {
	return "deleteshard " + o.Name
}

type UpdateShardState struct {
	States map[string]topology.ShardState
}

// Apply skips shards that no longer exist.
func (o *UpdateShardState) Apply(c *topology.Collection) error {
	for name, state := range o.States {
		if s, ok := c.Shards[name]; ok {
			s.State = state
		}
	}
	return nil
}

func (o *UpdateShardState) String() string {
	parts := make([]string, 0, len(o.States))
	for name, state := range o.States {
		parts = append(parts, name+"="+string(state))
	}
	sort.Strings(parts)
	return "updateshardstate " + strings.Join(parts, ",")
}

type AddReplica struct {
	Shard   string
	Replica *topology.Replica
}

func (o *AddReplica) Apply(c *topology.Collection) error {
	s, ok := c.Shards[o.Shard]
	if !ok {
		return griderror.Newf(griderror.GRID_NOT_FOUND, "shard %s not found in collection %s", o.Shard, c.Name)
	}
	if _, ok := s.Replicas[o.Replica.Name]; ok {
		return griderror.Newf(griderror.GRID_INVALID_STATE, "replica %s already exists in shard %s", o.Replica.Name, o.Shard)
	}
	r := *o.Replica
	s.Replicas[r.Name] = &r
	return nil
}

func (o *AddReplica) String() string {
	return fmt.Sprintf("addreplica %s/%s node=%s type=%s", o.Shard, o.Replica.Name, o.Replica.Node, o.Replica.Type)
}

type RemoveReplica struct {
	Shard string
	Name  string
}

func (o *RemoveReplica) Apply(c *topology.Collection) error {
	if s, ok := c.Shards[o.Shard]; ok {
		delete(s.Replicas, o.Name)
	}
	return nil
}

func (o *RemoveReplica) String() string {
	return fmt.Sprintf("removereplica %s/%s", o.Shard, o.Name)
}

type UpdateReplicaState struct {
	Shard string
	Name  string
	State topology.ReplicaState
}

func (o *UpdateReplicaState) Apply(c *topology.Collection) error {
	r, err := replica(c, o.Shard, o.Name)
	if err != nil {
		return err
	}
	r.State = o.State
	return nil
}

func (o *UpdateReplicaState) String() string {
	return fmt.Sprintf("updatereplicastate %s/%s=%s", o.Shard, o.Name, o.State)
}

type SetLeader struct {
	Shard string
	Name  string
}

func (o *SetLeader) Apply(c *topology.Collection) error {
	r, err := replica(c, o.Shard, o.Name)
	if err != nil {
		return err
	}
	if !r.Type.CanBeLeader() {
		return griderror.Newf(griderror.GRID_INVALID_STATE, "replica %s of type %s can not be leader", o.Name, r.Type)
	}
	for _, other := range c.Shards[o.Shard].Replicas {
		other.Leader = false
	}
	r.Leader = true
	return nil
}

func (o *SetLeader) String() string {
	return fmt.Sprintf("setleader %s/%s", o.Shard, o.Name)
}

func replica(c *topology.Collection, shard, name string) (*topology.Replica, error) {
	s, ok := c.Shards[shard]
	if !ok {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "shard %s not found in collection %s", shard, c.Name)
	}
	r, ok := s.Replicas[name]
	if !ok {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "replica %s not found in shard %s", name, shard)
	}
	return r, nil
}

// Reconcile changes nothing itself. Publishing it re-runs split completion
// on the current document.
type Reconcile struct{}

func (o *Reconcile) Apply(_ *topology.Collection) error {
	return nil
}

func (o *Reconcile) String() string {
	return "reconcile"
}
