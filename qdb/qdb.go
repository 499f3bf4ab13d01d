package qdb

import (
	"context"
	"fmt"
)

// QDB is the cluster metadata store: versioned collection documents,
// session bound ephemeral markers and the live node registry.
type QDB interface {
	CreateCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	// CompareAndSwapCollection writes c only if the stored version still
	// equals c.Version. On success c.Version is advanced.
	CompareAndSwapCollection(ctx context.Context, c *Collection) (bool, error)
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)

	// TryLockShard creates the split marker of a shard if it is absent.
	// The marker lives as long as this store's session.
	TryLockShard(ctx context.Context, collection, shard string, lock *ShardLock) (bool, error)
	GetShardLock(ctx context.Context, collection, shard string) (*ShardLock, error)
	UnlockShard(ctx context.Context, collection, shard string) error
	ListShardLocks(ctx context.Context, collection string) ([]string, error)

	RegisterLiveNode(ctx context.Context, node string) (int64, error)
	DeregisterLiveNode(ctx context.Context, node string) error
	GetLiveNodeSession(ctx context.Context, node string) (int64, bool, error)
	ListLiveNodes(ctx context.Context) (map[string]int64, error)

	CreateAsyncStatus(ctx context.Context, st *AsyncStatus) (bool, error)
	PutAsyncStatus(ctx context.Context, st *AsyncStatus) error
	GetAsyncStatus(ctx context.Context, id string) (*AsyncStatus, error)
	DeleteAsyncStatus(ctx context.Context, id string) error

	SessionID() int64
	Close() error
}

func NewQDB(qdbType string, addr string, backupPath string, sessionTTL int64) (QDB, error) {
	switch qdbType {
	case "etcd":
		return NewEtcdQDB(addr, sessionTTL)
	case "memory", "mem":
		return RestoreQDB(backupPath)
	default:
		return nil, fmt.Errorf("qdb implementation %s is invalid", qdbType)
	}
}
