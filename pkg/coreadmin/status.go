package coreadmin

import (
	"context"
	"time"

	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/qdb"
)

// StatusStore tracks outer async requests submitted to the coordinator.
type StatusStore struct {
	db qdb.QDB
}

func NewStatusStore(db qdb.QDB) *StatusStore {
	return &StatusStore{db: db}
}

// Submit registers id. Reusing an id that is still known is a bad request.
func (s *StatusStore) Submit(ctx context.Context, id string) error {
	ok, err := s.db.CreateAsyncStatus(ctx, &qdb.AsyncStatus{
		ID:      id,
		State:   qdb.AsyncSubmitted,
		Updated: time.Now().UnixNano(),
	})
	if err != nil {
		return err
	}
	if !ok {
		return griderror.Newf(griderror.GRID_BAD_REQUEST, "Task with the same requestid already exists: %s", id)
	}
	return nil
}

func (s *StatusStore) Running(ctx context.Context, id string) error {
	return s.put(ctx, &qdb.AsyncStatus{ID: id, State: qdb.AsyncRunning})
}

func (s *StatusStore) Complete(ctx context.Context, id string, result map[string]any) error {
	return s.put(ctx, &qdb.AsyncStatus{ID: id, State: qdb.AsyncCompleted, Result: result})
}

func (s *StatusStore) Fail(ctx context.Context, id string, cause error, result map[string]any) error {
	st := &qdb.AsyncStatus{ID: id, State: qdb.AsyncFailed, Result: result}
	if cause != nil {
		st.Error = cause.Error()
	}
	return s.put(ctx, st)
}

func (s *StatusStore) put(ctx context.Context, st *qdb.AsyncStatus) error {
	st.Updated = time.Now().UnixNano()
	gridlog.Zero.Debug().
		Str("id", st.ID).
		Str("state", string(st.State)).
		Msg("coreadmin: async status changed")
	return s.db.PutAsyncStatus(ctx, st)
}

// Get returns the status of id. Unknown ids yield a GRID_NOT_FOUND error.
func (s *StatusStore) Get(ctx context.Context, id string) (*qdb.AsyncStatus, error) {
	return s.db.GetAsyncStatus(ctx, id)
}

func (s *StatusStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteAsyncStatus(ctx, id)
}
