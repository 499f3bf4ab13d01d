package clusterstate

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/qdb"
)

type task struct {
	collection string
	ops        []Op
	done       chan error
}

// Sequencer serializes every change through one goroutine. Mutate returns
// once the change is queued; it becomes visible later.
type Sequencer struct {
	applier

	queue   chan *task
	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

var _ Mutator = &Sequencer{}

func NewSequencer(db qdb.QDB, queueSize int, opts ...Option) *Sequencer {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Sequencer{
		applier: newApplier(db, opts...),
		queue:   make(chan *task, queueSize),
	}
}

// Start launches the apply loop. It stops when ctx is done or Stop is
// called.
func (s *Sequencer) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(ctx)
	}()
}

func (s *Sequencer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sequencer) run(ctx context.Context) {
	gridlog.Zero.Info().Msg("sequencer: started")
	for {
		select {
		case <-ctx.Done():
			gridlog.Zero.Info().Msg("sequencer: stopped")
			return
		case t := <-s.queue:
			var err error
			if len(t.ops) > 0 {
				err = s.apply(ctx, t.collection, t.ops)
			}
			if err != nil {
				gridlog.Zero.Error().
					Err(err).
					Str("collection", t.collection).
					Int("ops", len(t.ops)).
					Msg("sequencer: failed to apply state change")
			}
			if t.done != nil {
				t.done <- err
			}
		}
	}
}

func (s *Sequencer) enqueue(ctx context.Context, t *task) error {
	if !s.running.Load() {
		return griderror.New(griderror.GRID_SERVER_ERROR, "state sequencer is not running")
	}
	select {
	case s.queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) Mutate(ctx context.Context, collection string, op Op) error {
	return s.enqueue(ctx, &task{collection: collection, ops: []Op{op}})
}

func (s *Sequencer) BeginBatch(collection string) Recorder {
	return &batch{
		collection: collection,
		publish: func(ctx context.Context, collection string, ops []Op) error {
			return s.enqueue(ctx, &task{collection: collection, ops: ops})
		},
	}
}

func (s *Sequencer) IsDistributed() bool {
	return true
}

// Sync blocks until every change queued before the call has been applied.
func (s *Sequencer) Sync(ctx context.Context) error {
	t := &task{done: make(chan error, 1)}
	if err := s.enqueue(ctx, t); err != nil {
		return err
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
