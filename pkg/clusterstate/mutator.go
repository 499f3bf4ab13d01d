package clusterstate

import (
	"context"
	"errors"
	"time"

	retry "github.com/sethvargo/go-retry"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/topology"
	"github.com/searchgrid/grid/qdb"
)

//go:generate mockgen -source=pkg/clusterstate/mutator.go -destination=pkg/clusterstate/mock/mutator_mock.go -package=mock

// Mutator publishes cluster state changes. Whether a change is visible when
// Mutate returns depends on the backend; callers that need to observe it
// wait through a Reader.
type Mutator interface {
	Mutate(ctx context.Context, collection string, op Op) error
	// BeginBatch collects ops that are published as one atomic change.
	BeginBatch(collection string) Recorder
	// IsDistributed reports whether changes are applied by a separate
	// sequencer rather than by the caller itself.
	IsDistributed() bool
}

type Recorder interface {
	Record(op Op)
	Len() int
	Flush(ctx context.Context) error
}

// FinalizeHook is called after a change retired the parent of a completed
// split.
type FinalizeHook func(ctx context.Context, collection, parent string)

var errVersionConflict = errors.New("collection version changed concurrently")

type batch struct {
	collection string
	ops        []Op
	flushed    bool
	publish    func(ctx context.Context, collection string, ops []Op) error
}

func (b *batch) Record(op Op) {
	b.ops = append(b.ops, op)
}

func (b *batch) Len() int {
	return len(b.ops)
}

func (b *batch) Flush(ctx context.Context) error {
	if b.flushed {
		return griderror.New(griderror.GRID_UNEXPECTED, "batch already flushed")
	}
	b.flushed = true
	if len(b.ops) == 0 {
		return nil
	}
	return b.publish(ctx, b.collection, b.ops)
}

// applier runs ops as a read-modify-compare-and-swap on the collection
// document, retrying on version conflicts.
type applier struct {
	db           qdb.QDB
	hook         FinalizeHook
	maxConflicts uint64
	baseDelay    time.Duration
}

func (a *applier) apply(ctx context.Context, collection string, ops []Op) error {
	var retired []string

	backoff := retry.WithMaxRetries(a.maxConflicts, retry.WithJitterPercent(20, retry.NewExponential(a.baseDelay)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		dbc, err := a.db.GetCollection(ctx, collection)
		if err != nil {
			if griderror.IsNotFound(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		c := topology.CollectionFromDB(dbc)
		for _, op := range ops {
			if err := op.Apply(c); err != nil {
				return err
			}
		}

		live, err := a.db.ListLiveNodes(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		retired = completeSplits(c, live)

		ok, err := a.db.CompareAndSwapCollection(ctx, c.ToDB())
		if err != nil {
			return retry.RetryableError(err)
		}
		if !ok {
			gridlog.Zero.Debug().
				Str("collection", collection).
				Int64("version", c.Version).
				Msg("clusterstate: version conflict, retrying")
			return retry.RetryableError(errVersionConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, op := range ops {
		gridlog.Zero.Debug().
			Str("collection", collection).
			Str("op", op.String()).
			Msg("clusterstate: applied")
	}
	if a.hook != nil {
		for _, parent := range retired {
			a.hook(ctx, collection, parent)
		}
	}
	return nil
}

type Option func(*applier)

func WithFinalizeHook(hook FinalizeHook) Option {
	return func(a *applier) {
		a.hook = hook
	}
}

func WithConflictRetries(n uint64, baseDelay time.Duration) Option {
	return func(a *applier) {
		a.maxConflicts = n
		a.baseDelay = baseDelay
	}
}

func newApplier(db qdb.QDB, opts ...Option) applier {
	a := applier{
		db:           db,
		maxConflicts: 16,
		baseDelay:    5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}
