package qdb

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
)

// MemQDB keeps metadata in process memory, optionally dumping the durable
// part to a JSON backup file after every change. Split markers and live
// nodes are ephemeral and are never written to the backup.
type MemQDB struct {
	mu sync.RWMutex

	Collections map[string]json.RawMessage `json:"collections"`
	Versions    map[string]int64           `json:"versions"`
	Async       map[string]*AsyncStatus    `json:"async"`
	Revision    int64                      `json:"revision"`

	locks     map[string]*ShardLock
	liveNodes map[string]int64

	session     int64
	nextSession int64

	backupPath string
}

var _ QDB = &MemQDB{}

func NewMemQDB(backupPath string) (*MemQDB, error) {
	return &MemQDB{
		Collections: map[string]json.RawMessage{},
		Versions:    map[string]int64{},
		Async:       map[string]*AsyncStatus{},

		locks:     map[string]*ShardLock{},
		liveNodes: map[string]int64{},

		session:     1,
		nextSession: 1,

		backupPath: backupPath,
	}, nil
}

func RestoreQDB(backupPath string) (*MemQDB, error) {
	qdb, err := NewMemQDB(backupPath)
	if err != nil {
		return nil, err
	}
	if backupPath == "" {
		return qdb, nil
	}
	if _, err := os.Stat(backupPath); err != nil {
		gridlog.Zero.Info().Err(err).Msg("memqdb backup file not exists. Creating new one.")
		f, err := os.Create(backupPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return qdb, nil
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return qdb, nil
	}
	if err := json.Unmarshal(data, qdb); err != nil {
		return nil, err
	}
	if qdb.Collections == nil {
		qdb.Collections = map[string]json.RawMessage{}
	}
	if qdb.Versions == nil {
		qdb.Versions = map[string]int64{}
	}
	if qdb.Async == nil {
		qdb.Async = map[string]*AsyncStatus{}
	}
	return qdb, nil
}

func (q *MemQDB) DumpState() error {
	if q.backupPath == "" {
		return nil
	}
	tmpPath := q.backupPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	state, err := json.MarshalIndent(q, "", "	")
	if err != nil {
		return err
	}

	if _, err = f.Write(state); err != nil {
		return err
	}
	f.Close()

	return os.Rename(tmpPath, q.backupPath)
}

func lockKey(collection, shard string) string {
	return collection + "/" + shard
}

// ==============================================================================
//                                COLLECTIONS
// ==============================================================================

func (q *MemQDB) CreateCollection(_ context.Context, c *Collection) error {
	gridlog.Zero.Debug().Str("collection", c.Name).Msg("memqdb: create collection")
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.Collections[c.Name]; ok {
		return griderror.Newf(griderror.GRID_INVALID_STATE, "collection %s already exists", c.Name)
	}
	return q.writeCollection(c)
}

// writeCollection must be called with q.mu held.
func (q *MemQDB) writeCollection(c *Collection) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	version := q.Revision + 1
	err = ExecuteCommands(q.DumpState,
		NewUpdateCommand(q.Collections, c.Name, json.RawMessage(raw)),
		NewUpdateCommand(q.Versions, c.Name, version),
		NewCustomCommand(func() error {
			q.Revision = version
			return nil
		}, func() error {
			q.Revision = version - 1
			return nil
		}),
	)
	if err != nil {
		return err
	}
	c.Version = version
	return nil
}

func (q *MemQDB) GetCollection(_ context.Context, name string) (*Collection, error) {
	gridlog.Zero.Debug().Str("collection", name).Msg("memqdb: get collection")
	q.mu.RLock()
	defer q.mu.RUnlock()

	raw, ok := q.Collections[name]
	if !ok {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "collection %s not found", name)
	}
	var c Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, griderror.Wrap(griderror.GRID_METADATA_CORRUPTION, err, "failed to decode collection "+name)
	}
	c.Version = q.Versions[name]
	return &c, nil
}

func (q *MemQDB) CompareAndSwapCollection(_ context.Context, c *Collection) (bool, error) {
	gridlog.Zero.Debug().
		Str("collection", c.Name).
		Int64("version", c.Version).
		Msg("memqdb: compare and swap collection")
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.Collections[c.Name]; !ok {
		return false, griderror.Newf(griderror.GRID_NOT_FOUND, "collection %s not found", c.Name)
	}
	if q.Versions[c.Name] != c.Version {
		return false, nil
	}
	if err := q.writeCollection(c); err != nil {
		return false, err
	}
	return true, nil
}

func (q *MemQDB) DropCollection(_ context.Context, name string) error {
	gridlog.Zero.Debug().Str("collection", name).Msg("memqdb: drop collection")
	q.mu.Lock()
	defer q.mu.Unlock()

	return ExecuteCommands(q.DumpState,
		NewDeleteCommand(q.Collections, name),
		NewDeleteCommand(q.Versions, name),
	)
}

func (q *MemQDB) ListCollections(_ context.Context) ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]string, 0, len(q.Collections))
	for name := range q.Collections {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret, nil
}

// ==============================================================================
//                                SPLIT LOCKS
// ==============================================================================

func (q *MemQDB) TryLockShard(_ context.Context, collection, shard string, lock *ShardLock) (bool, error) {
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Msg("memqdb: try lock shard")
	q.mu.Lock()
	defer q.mu.Unlock()

	key := lockKey(collection, shard)
	if _, ok := q.locks[key]; ok {
		return false, nil
	}
	cp := *lock
	q.locks[key] = &cp
	return true, nil
}

func (q *MemQDB) GetShardLock(_ context.Context, collection, shard string) (*ShardLock, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	lock, ok := q.locks[lockKey(collection, shard)]
	if !ok {
		return nil, nil
	}
	cp := *lock
	return &cp, nil
}

func (q *MemQDB) UnlockShard(_ context.Context, collection, shard string) error {
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Msg("memqdb: unlock shard")
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.locks, lockKey(collection, shard))
	return nil
}

func (q *MemQDB) ListShardLocks(_ context.Context, collection string) ([]string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	prefix := collection + "/"
	var ret []string
	for key := range q.locks {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ret = append(ret, key[len(prefix):])
		}
	}
	sort.Strings(ret)
	return ret, nil
}

// ExpireSession drops every ephemeral marker, as a lost metadata session
// would.
func (q *MemQDB) ExpireSession() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.locks = map[string]*ShardLock{}
	q.nextSession++
	q.session = q.nextSession
}

// ==============================================================================
//                                 LIVE NODES
// ==============================================================================

// RegisterLiveNode registers node under a fresh session id, replacing the
// previous registration if any.
func (q *MemQDB) RegisterLiveNode(_ context.Context, node string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSession++
	q.liveNodes[node] = q.nextSession
	gridlog.Zero.Debug().
		Str("node", node).
		Int64("session", q.nextSession).
		Msg("memqdb: register live node")
	return q.nextSession, nil
}

func (q *MemQDB) DeregisterLiveNode(_ context.Context, node string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.liveNodes, node)
	return nil
}

func (q *MemQDB) GetLiveNodeSession(_ context.Context, node string) (int64, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	session, ok := q.liveNodes[node]
	return session, ok, nil
}

func (q *MemQDB) ListLiveNodes(_ context.Context) (map[string]int64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make(map[string]int64, len(q.liveNodes))
	for node, session := range q.liveNodes {
		ret[node] = session
	}
	return ret, nil
}

// ==============================================================================
//                               ASYNC STATUSES
// ==============================================================================

func (q *MemQDB) CreateAsyncStatus(_ context.Context, st *AsyncStatus) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.Async[st.ID]; ok {
		return false, nil
	}
	cp := *st
	return true, ExecuteCommands(q.DumpState, NewUpdateCommand(q.Async, st.ID, &cp))
}

func (q *MemQDB) PutAsyncStatus(_ context.Context, st *AsyncStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := *st
	return ExecuteCommands(q.DumpState, NewUpdateCommand(q.Async, st.ID, &cp))
}

func (q *MemQDB) GetAsyncStatus(_ context.Context, id string) (*AsyncStatus, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	st, ok := q.Async[id]
	if !ok {
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "async request %s not found", id)
	}
	cp := *st
	return &cp, nil
}

func (q *MemQDB) DeleteAsyncStatus(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return ExecuteCommands(q.DumpState, NewDeleteCommand(q.Async, id))
}

func (q *MemQDB) SessionID() int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.session
}

func (q *MemQDB) Close() error {
	return nil
}
