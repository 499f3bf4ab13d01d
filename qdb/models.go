package qdb

type Replica struct {
	Name   string `json:"name"`
	Core   string `json:"core"`
	Node   string `json:"node_name"`
	Type   string `json:"type"`
	State  string `json:"state"`
	Leader bool   `json:"leader,omitempty"`
}

type Shard struct {
	Name          string              `json:"name"`
	Range         string              `json:"range,omitempty"`
	State         string              `json:"state"`
	Parent        string              `json:"parent,omitempty"`
	ParentNode    string              `json:"shard_parent_node,omitempty"`
	ParentSession int64               `json:"shard_parent_session,omitempty"`
	Replicas      map[string]*Replica `json:"replicas"`
}

// Collection is stored as one document. Version is the store revision the
// document was read at and is not part of the document itself.
type Collection struct {
	Name         string            `json:"name"`
	Router       string            `json:"router"`
	HashFunction string            `json:"hash_function,omitempty"`
	NrtReplicas  int               `json:"nrt_replicas"`
	TlogReplicas int               `json:"tlog_replicas"`
	PullReplicas int               `json:"pull_replicas"`
	Shards       map[string]*Shard `json:"shards"`

	Version int64 `json:"-"`
}

type ShardLock struct {
	Timestamp int64  `json:"timestamp"`
	Owner     string `json:"owner"`
}

type AsyncState string

const (
	AsyncSubmitted = AsyncState("submitted")
	AsyncRunning   = AsyncState("running")
	AsyncCompleted = AsyncState("completed")
	AsyncFailed    = AsyncState("failed")
)

type AsyncStatus struct {
	ID      string         `json:"id"`
	State   AsyncState     `json:"state"`
	Error   string         `json:"error,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Updated int64          `json:"updated"`
}
