package qdb

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/clientv3util"
	"go.etcd.io/etcd/client/v3/concurrency"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/searchgrid/grid/coordinator/statistics"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
)

type EtcdQDB struct {
	cli  *clientv3.Client
	sess *concurrency.Session

	mu         sync.Mutex
	nodeLeases map[string]clientv3.LeaseID
}

var _ QDB = &EtcdQDB{}

func NewEtcdQDB(addr string, sessionTTL int64) (*EtcdQDB, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(addr, ","),
		DialTimeout: 5 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	})
	if err != nil {
		return nil, err
	}

	if sessionTTL <= 0 {
		sessionTTL = CoordKeepAliveTtl
	}
	sess, err := concurrency.NewSession(cli, concurrency.WithTTL(int(sessionTTL)))
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	gridlog.Zero.Debug().
		Str("address", addr).
		Int64("lease", int64(sess.Lease())).
		Msg("etcdqdb: NewEtcdQDB")

	return &EtcdQDB{
		cli:        cli,
		sess:       sess,
		nodeLeases: map[string]clientv3.LeaseID{},
	}, nil
}

const (
	collectionsNamespace = "/collections/"
	liveNodesNamespace   = "/live_nodes/"
	asyncNamespace       = "/async/"

	CoordKeepAliveTtl  = 10
	collectionStateKey = "state.json"
	splitLockSuffix    = "-splitting"
)

func collectionStatePath(name string) string {
	return path.Join(collectionsNamespace, name, collectionStateKey)
}

func shardLockPath(collection, shard string) string {
	return path.Join(collectionsNamespace, collection, shard+splitLockSuffix)
}

func liveNodePath(node string) string {
	return path.Join(liveNodesNamespace, node)
}

func asyncStatusPath(id string) string {
	return path.Join(asyncNamespace, id)
}

func (q *EtcdQDB) Client() *clientv3.Client {
	return q.cli
}

// ==============================================================================
//                                COLLECTIONS
// ==============================================================================

func (q *EtcdQDB) CreateCollection(ctx context.Context, c *Collection) error {
	gridlog.Zero.Debug().
		Str("collection", c.Name).
		Msg("etcdqdb: create collection")

	t := time.Now()

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	key := collectionStatePath(c.Name)
	resp, err := q.cli.Txn(ctx).
		If(clientv3util.KeyMissing(key)).
		Then(clientv3.OpPut(key, string(raw))).
		Commit()
	if err != nil {
		return errors.Wrap(err, "etcdqdb: create collection")
	}
	if !resp.Succeeded {
		return griderror.Newf(griderror.GRID_INVALID_STATE, "collection %s already exists", c.Name)
	}
	c.Version = resp.Header.Revision

	statistics.RecordQDBOperation("CreateCollection", time.Since(t))
	return nil
}

func (q *EtcdQDB) GetCollection(ctx context.Context, name string) (*Collection, error) {
	gridlog.Zero.Debug().
		Str("collection", name).
		Msg("etcdqdb: get collection")

	t := time.Now()

	key := collectionStatePath(name)
	raw, err := q.cli.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "etcdqdb: get collection")
	}

	switch len(raw.Kvs) {
	case 0:
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "collection %s not found", name)
	case 1:
		var c Collection
		if err := json.Unmarshal(raw.Kvs[0].Value, &c); err != nil {
			return nil, griderror.Wrap(griderror.GRID_METADATA_CORRUPTION, err, "failed to decode collection "+name)
		}
		c.Version = raw.Kvs[0].ModRevision
		statistics.RecordQDBOperation("GetCollection", time.Since(t))
		return &c, nil
	default:
		return nil, griderror.Newf(griderror.GRID_METADATA_CORRUPTION, "possible data corruption: multiple key-value pairs found for %v", key)
	}
}

func (q *EtcdQDB) CompareAndSwapCollection(ctx context.Context, c *Collection) (bool, error) {
	gridlog.Zero.Debug().
		Str("collection", c.Name).
		Int64("version", c.Version).
		Msg("etcdqdb: compare and swap collection")

	t := time.Now()

	raw, err := json.Marshal(c)
	if err != nil {
		return false, err
	}
	key := collectionStatePath(c.Name)
	resp, err := q.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", c.Version)).
		Then(clientv3.OpPut(key, string(raw))).
		Commit()
	if err != nil {
		return false, errors.Wrap(err, "etcdqdb: compare and swap collection")
	}
	statistics.RecordQDBOperation("CompareAndSwapCollection", time.Since(t))
	if !resp.Succeeded {
		return false, nil
	}
	c.Version = resp.Header.Revision
	return true, nil
}

func (q *EtcdQDB) DropCollection(ctx context.Context, name string) error {
	gridlog.Zero.Debug().
		Str("collection", name).
		Msg("etcdqdb: drop collection")

	_, err := q.cli.Delete(ctx, path.Join(collectionsNamespace, name)+"/", clientv3.WithPrefix())
	return err
}

func (q *EtcdQDB) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := q.cli.Get(ctx, collectionsNamespace, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}

	var ret []string
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		if !strings.HasSuffix(key, "/"+collectionStateKey) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, collectionsNamespace), "/"+collectionStateKey)
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret, nil
}

// ==============================================================================
//                                SPLIT LOCKS
// ==============================================================================

func (q *EtcdQDB) TryLockShard(ctx context.Context, collection, shard string, lock *ShardLock) (bool, error) {
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Msg("etcdqdb: try lock shard")

	raw, err := json.Marshal(lock)
	if err != nil {
		return false, err
	}
	key := shardLockPath(collection, shard)
	op := clientv3.OpPut(key, string(raw), clientv3.WithLease(q.sess.Lease()))
	stat, err := q.cli.Txn(ctx).If(clientv3util.KeyMissing(key)).Then(op).Commit()
	if err != nil {
		gridlog.Zero.Error().Err(err).Msg("etcdqdb: failed to commit shard lock")
		return false, err
	}
	return stat.Succeeded, nil
}

func (q *EtcdQDB) GetShardLock(ctx context.Context, collection, shard string) (*ShardLock, error) {
	resp, err := q.cli.Get(ctx, shardLockPath(collection, shard))
	if err != nil {
		return nil, err
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	var lock ShardLock
	if err := json.Unmarshal(resp.Kvs[0].Value, &lock); err != nil {
		return nil, griderror.Wrap(griderror.GRID_METADATA_CORRUPTION, err, "failed to decode split lock")
	}
	return &lock, nil
}

func (q *EtcdQDB) UnlockShard(ctx context.Context, collection, shard string) error {
	gridlog.Zero.Debug().
		Str("collection", collection).
		Str("shard", shard).
		Msg("etcdqdb: unlock shard")

	_, err := q.cli.Delete(ctx, shardLockPath(collection, shard))
	return err
}

func (q *EtcdQDB) ListShardLocks(ctx context.Context, collection string) ([]string, error) {
	prefix := path.Join(collectionsNamespace, collection) + "/"
	resp, err := q.cli.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}

	var ret []string
	for _, kv := range resp.Kvs {
		name := strings.TrimPrefix(string(kv.Key), prefix)
		if strings.HasSuffix(name, splitLockSuffix) && !strings.Contains(name, "/") {
			ret = append(ret, strings.TrimSuffix(name, splitLockSuffix))
		}
	}
	sort.Strings(ret)
	return ret, nil
}

// ==============================================================================
//                                 LIVE NODES
// ==============================================================================

// RegisterLiveNode binds node to a fresh lease; the lease id is the node
// session. A previous registration made through this client is revoked.
func (q *EtcdQDB) RegisterLiveNode(ctx context.Context, node string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if prev, ok := q.nodeLeases[node]; ok {
		if _, err := q.cli.Revoke(ctx, prev); err != nil {
			gridlog.Zero.Warn().Err(err).Str("node", node).Msg("etcdqdb: failed to revoke previous node lease")
		}
		delete(q.nodeLeases, node)
	}

	lease, err := q.cli.Grant(ctx, CoordKeepAliveTtl)
	if err != nil {
		gridlog.Zero.Error().Err(err).Msg("etcdqdb: lease grant failed")
		return 0, err
	}
	keepAliveCh, err := q.cli.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		gridlog.Zero.Error().Err(err).Msg("etcdqdb: lease keep alive failed")
		return 0, err
	}
	if _, err := q.cli.Put(ctx, liveNodePath(node), node, clientv3.WithLease(lease.ID)); err != nil {
		_, _ = q.cli.Revoke(ctx, lease.ID)
		return 0, err
	}
	q.nodeLeases[node] = lease.ID

	go func() {
		for resp := range keepAliveCh {
			gridlog.Zero.Debug().
				Uint64("raft-term", resp.RaftTerm).
				Int64("lease-id", int64(resp.ID)).
				Msg("etcd keep alive channel")
		}
	}()

	return int64(lease.ID), nil
}

func (q *EtcdQDB) DeregisterLiveNode(ctx context.Context, node string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if lease, ok := q.nodeLeases[node]; ok {
		delete(q.nodeLeases, node)
		if _, err := q.cli.Revoke(ctx, lease); err != nil {
			return err
		}
	}
	_, err := q.cli.Delete(ctx, liveNodePath(node))
	return err
}

func (q *EtcdQDB) GetLiveNodeSession(ctx context.Context, node string) (int64, bool, error) {
	resp, err := q.cli.Get(ctx, liveNodePath(node))
	if err != nil {
		return 0, false, err
	}
	if len(resp.Kvs) == 0 {
		return 0, false, nil
	}
	return resp.Kvs[0].Lease, true, nil
}

func (q *EtcdQDB) ListLiveNodes(ctx context.Context) (map[string]int64, error) {
	resp, err := q.cli.Get(ctx, liveNodesNamespace, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	ret := make(map[string]int64, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ret[strings.TrimPrefix(string(kv.Key), liveNodesNamespace)] = kv.Lease
	}
	return ret, nil
}

// ==============================================================================
//                               ASYNC STATUSES
// ==============================================================================

func (q *EtcdQDB) CreateAsyncStatus(ctx context.Context, st *AsyncStatus) (bool, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return false, err
	}
	key := asyncStatusPath(st.ID)
	resp, err := q.cli.Txn(ctx).
		If(clientv3util.KeyMissing(key)).
		Then(clientv3.OpPut(key, string(raw))).
		Commit()
	if err != nil {
		return false, err
	}
	return resp.Succeeded, nil
}

func (q *EtcdQDB) PutAsyncStatus(ctx context.Context, st *AsyncStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = q.cli.Put(ctx, asyncStatusPath(st.ID), string(raw))
	return err
}

func (q *EtcdQDB) GetAsyncStatus(ctx context.Context, id string) (*AsyncStatus, error) {
	resp, err := q.cli.Get(ctx, asyncStatusPath(id))
	if err != nil {
		return nil, err
	}
	switch len(resp.Kvs) {
	case 0:
		return nil, griderror.Newf(griderror.GRID_NOT_FOUND, "async request %s not found", id)
	case 1:
		var st AsyncStatus
		if err := json.Unmarshal(resp.Kvs[0].Value, &st); err != nil {
			return nil, griderror.Wrap(griderror.GRID_METADATA_CORRUPTION, err, "failed to decode async status")
		}
		return &st, nil
	default:
		return nil, griderror.Newf(griderror.GRID_METADATA_CORRUPTION, "possible data corruption: multiple key-value pairs found for %v", id)
	}
}

func (q *EtcdQDB) DeleteAsyncStatus(ctx context.Context, id string) error {
	_, err := q.cli.Delete(ctx, asyncStatusPath(id))
	return err
}

func (q *EtcdQDB) SessionID() int64 {
	return int64(q.sess.Lease())
}

func (q *EtcdQDB) Close() error {
	if err := q.sess.Close(); err != nil {
		gridlog.Zero.Warn().Err(err).Msg("etcdqdb: failed to close session")
	}
	return q.cli.Close()
}
