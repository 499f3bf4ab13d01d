package etcdqdb_integration_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/qdb"
)

const (
	EtcdPort        = 2379
	TestTimeout     = 10 * time.Second
	ComposerTimeout = 60
)

func runCompose(args []string) error {
	args2 := []string{}
	args2 = append(args2, "compose", "-f", "docker-compose.yaml", "-p", "etcdqdb_test")
	args2 = append(args2, args...)
	cmd := exec.Command("docker", args2...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run 'docker %s': %s\n%s", strings.Join(args2, " "), err, out)
	}
	return nil
}

func Down() error {
	return runCompose([]string{"down", "-v"})
}

func Up() error {
	return runCompose([]string{"up", "-d", "--force-recreate", "-t", strconv.Itoa(ComposerTimeout)})
}

func setupTestSet(t *testing.T) error {
	if os.Getenv("GRID_ETCD_INTEGRATION") == "" {
		t.Skip("set GRID_ETCD_INTEGRATION to run etcd integration tests")
	}
	err := os.Setenv("DOCKER_API_VERSION", "1.48")
	if err != nil {
		return err
	}
	t.Log("load etcd")
	return Up()
}

func cleanupDb(ctx context.Context, db *qdb.EtcdQDB) error {
	_, err := db.Client().Delete(ctx, "", clientv3.WithPrefix())
	return err
}

func setupSubTest(ctx context.Context) (*qdb.EtcdQDB, error) {
	db, err := qdb.NewEtcdQDB(fmt.Sprintf("http://localhost:%d", EtcdPort), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grid QDB: %s", err)
	}
	if err := cleanupDb(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func newCollection(name string) *qdb.Collection {
	return &qdb.Collection{
		Name:        name,
		Router:      "compositeId",
		NrtReplicas: 1,
		Shards: map[string]*qdb.Shard{
			"shard1": {
				Name:  "shard1",
				Range: "80000000-7fffffff",
				State: "active",
				Replicas: map[string]*qdb.Replica{
					"books_shard1_replica_n1": {
						Name:   "books_shard1_replica_n1",
						Core:   "books_shard1_replica_n1",
						Node:   "node1",
						Type:   "NRT",
						State:  "active",
						Leader: true,
					},
				},
			},
		},
	}
}

func TestCollections(t *testing.T) {
	is := assert.New(t)
	err := setupTestSet(t)
	defer func() {
		_ = Down()
	}()
	is.NoError(err)

	ctx, cancel := context.WithTimeout(context.TODO(), TestTimeout)
	defer cancel()
	db, err := setupSubTest(ctx)
	is.NoError(err)
	defer db.Close()

	t.Run("create and get", func(t *testing.T) {
		is.NoError(cleanupDb(ctx, db))
		is.NoError(db.CreateCollection(ctx, newCollection("books")))

		err := db.CreateCollection(ctx, newCollection("books"))
		is.True(griderror.IsInvalidState(err))

		actual, err := db.GetCollection(ctx, "books")
		is.NoError(err)
		is.Equal("compositeId", actual.Router)
		is.Equal("active", actual.Shards["shard1"].State)
		is.NotZero(actual.Version)

		_, err = db.GetCollection(ctx, "films")
		is.True(griderror.IsNotFound(err))
	})

	t.Run("compare and swap", func(t *testing.T) {
		is.NoError(cleanupDb(ctx, db))
		is.NoError(db.CreateCollection(ctx, newCollection("books")))

		first, err := db.GetCollection(ctx, "books")
		is.NoError(err)
		second, err := db.GetCollection(ctx, "books")
		is.NoError(err)

		first.Shards["shard1"].State = "inactive"
		ok, err := db.CompareAndSwapCollection(ctx, first)
		is.NoError(err)
		is.True(ok)

		second.Shards["shard1"].State = "construction"
		ok, err = db.CompareAndSwapCollection(ctx, second)
		is.NoError(err)
		is.False(ok)

		actual, err := db.GetCollection(ctx, "books")
		is.NoError(err)
		is.Equal("inactive", actual.Shards["shard1"].State)
		is.Equal(first.Version, actual.Version)
	})

	t.Run("list and drop", func(t *testing.T) {
		is.NoError(cleanupDb(ctx, db))
		is.NoError(db.CreateCollection(ctx, newCollection("books")))
		is.NoError(db.CreateCollection(ctx, newCollection("authors")))

		names, err := db.ListCollections(ctx)
		is.NoError(err)
		is.Equal([]string{"authors", "books"}, names)

		is.NoError(db.DropCollection(ctx, "authors"))
		names, err = db.ListCollections(ctx)
		is.NoError(err)
		is.Equal([]string{"books"}, names)
	})
}

func TestLockUnlock(t *testing.T) {
	is := assert.New(t)
	err := setupTestSet(t)
	defer func() {
		_ = Down()
	}()
	is.NoError(err)

	ctx, cancel := context.WithTimeout(context.TODO(), TestTimeout)
	defer cancel()
	db, err := setupSubTest(ctx)
	is.NoError(err)
	defer db.Close()

	is.NoError(db.CreateCollection(ctx, newCollection("books")))

	ok, err := db.TryLockShard(ctx, "books", "shard1", &qdb.ShardLock{Owner: "a", Timestamp: 1})
	is.NoError(err)
	is.True(ok)
	ok, err = db.TryLockShard(ctx, "books", "shard1", &qdb.ShardLock{Owner: "b", Timestamp: 2})
	is.NoError(err)
	is.False(ok)

	lock, err := db.GetShardLock(ctx, "books", "shard1")
	is.NoError(err)
	is.Equal("a", lock.Owner)

	locks, err := db.ListShardLocks(ctx, "books")
	is.NoError(err)
	is.Equal([]string{"shard1"}, locks)

	is.NoError(db.UnlockShard(ctx, "books", "shard1"))
	lock, err = db.GetShardLock(ctx, "books", "shard1")
	is.NoError(err)
	is.Nil(lock)
}

func TestLiveNodes(t *testing.T) {
	is := assert.New(t)
	err := setupTestSet(t)
	defer func() {
		_ = Down()
	}()
	is.NoError(err)

	ctx, cancel := context.WithTimeout(context.TODO(), TestTimeout)
	defer cancel()
	db, err := setupSubTest(ctx)
	is.NoError(err)
	defer db.Close()

	first, err := db.RegisterLiveNode(ctx, "node1")
	is.NoError(err)
	session, live, err := db.GetLiveNodeSession(ctx, "node1")
	is.NoError(err)
	is.True(live)
	is.Equal(first, session)

	second, err := db.RegisterLiveNode(ctx, "node1")
	is.NoError(err)
	is.NotEqual(first, second)

	nodes, err := db.ListLiveNodes(ctx)
	is.NoError(err)
	is.Equal(map[string]int64{"node1": second}, nodes)

	is.NoError(db.DeregisterLiveNode(ctx, "node1"))
	_, live, err = db.GetLiveNodeSession(ctx, "node1")
	is.NoError(err)
	is.False(live)
}

func TestAsyncStatuses(t *testing.T) {
	is := assert.New(t)
	err := setupTestSet(t)
	defer func() {
		_ = Down()
	}()
	is.NoError(err)

	ctx, cancel := context.WithTimeout(context.TODO(), TestTimeout)
	defer cancel()
	db, err := setupSubTest(ctx)
	is.NoError(err)
	defer db.Close()

	ok, err := db.CreateAsyncStatus(ctx, &qdb.AsyncStatus{ID: "split-1", State: qdb.AsyncSubmitted})
	is.NoError(err)
	is.True(ok)
	ok, err = db.CreateAsyncStatus(ctx, &qdb.AsyncStatus{ID: "split-1", State: qdb.AsyncSubmitted})
	is.NoError(err)
	is.False(ok)

	is.NoError(db.PutAsyncStatus(ctx, &qdb.AsyncStatus{ID: "split-1", State: qdb.AsyncFailed, Error: "boom"}))
	st, err := db.GetAsyncStatus(ctx, "split-1")
	is.NoError(err)
	is.Equal(qdb.AsyncFailed, st.State)
	is.Equal("boom", st.Error)

	is.NoError(db.DeleteAsyncStatus(ctx, "split-1"))
	_, err = db.GetAsyncStatus(ctx, "split-1")
	is.True(griderror.IsNotFound(err))
}
