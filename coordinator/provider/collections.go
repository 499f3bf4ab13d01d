package provider

import (
	"context"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchgrid/grid/coordinator/split"
	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/splitlock"
	"github.com/searchgrid/grid/qdb"
)

// CollectionsService serves the collection admin API of the coordinator.
type CollectionsService struct {
	splitter *split.Orchestrator
	locks    *splitlock.SplitLock
	status   *coreadmin.StatusStore

	// background splits run on this context
	bg context.Context
	wg sync.WaitGroup
}

var _ coreadmin.Handler = &CollectionsService{}

// NewCollectionsService creates the service. Async splits are bound to
// ctx and fail into cleanup when it is cancelled.
func NewCollectionsService(ctx context.Context, splitter *split.Orchestrator, locks *splitlock.SplitLock, status *coreadmin.StatusStore) *CollectionsService {
	return &CollectionsService{
		splitter: splitter,
		locks:    locks,
		status:   status,
		bg:       ctx,
	}
}

func (s *CollectionsService) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := coreadmin.RequestFromStruct(in)
	if err != nil {
		return nil, coreadmin.ToStatus(err)
	}
	resp, err := s.Handle(ctx, req)
	if err != nil {
		return nil, coreadmin.ToStatus(err)
	}
	out, err := resp.ToStruct()
	if err != nil {
		return nil, coreadmin.ToStatus(griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "failed to encode response"))
	}
	return out, nil
}

func (s *CollectionsService) Handle(ctx context.Context, req *coreadmin.Request) (coreadmin.Response, error) {
	gridlog.Zero.Debug().
		Str("request", req.String()).
		Msg("collections: handling admin request")

	switch req.Action {
	case coreadmin.ActionSplitShard:
		return s.splitShard(ctx, req)
	case coreadmin.ActionRequestStatus:
		return s.requestStatus(ctx, req)
	case coreadmin.ActionLockStatus:
		return s.lockStatus(ctx, req)
	case coreadmin.ActionReleaseLocks:
		return s.releaseLocks(ctx, req)
	default:
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "Unknown action: %s", req.Action)
	}
}

func (s *CollectionsService) splitShard(ctx context.Context, params *coreadmin.Request) (coreadmin.Response, error) {
	req, err := split.RequestFromParams(params)
	if err != nil {
		return nil, err
	}

	if req.AsyncID == "" {
		res, err := s.splitter.Split(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.ToMap(), nil
	}

	if err := s.status.Submit(ctx, req.AsyncID); err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAsync(req)
	}()
	return coreadmin.Response{"requestid": req.AsyncID}, nil
}

func (s *CollectionsService) runAsync(req *split.Request) {
	ctx := s.bg
	if err := s.status.Running(ctx, req.AsyncID); err != nil {
		gridlog.Zero.Warn().Err(err).Str("id", req.AsyncID).Msg("collections: failed to mark request running")
	}

	res, err := s.splitter.Split(ctx, req)
	// the outcome must be recorded even when the service is shutting down
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		err = s.status.Fail(ctx, req.AsyncID, err, res.ToMap())
	} else {
		err = s.status.Complete(ctx, req.AsyncID, res.ToMap())
	}
	if err != nil {
		gridlog.Zero.Error().Err(err).Str("id", req.AsyncID).Msg("collections: failed to record request status")
	}
}

// Wait blocks until every async split started by the service returned.
func (s *CollectionsService) Wait() {
	s.wg.Wait()
}

func (s *CollectionsService) requestStatus(ctx context.Context, params *coreadmin.Request) (coreadmin.Response, error) {
	id := params.Str("requestid")
	if id == "" {
		return nil, griderror.New(griderror.GRID_BAD_REQUEST, "missing required parameter: requestid")
	}
	st, err := s.status.Get(ctx, id)
	if err != nil {
		if griderror.IsNotFound(err) {
			return coreadmin.Response{"STATUS": coreadmin.AsyncNotFound, "msg": "Did not find [" + id + "] in any tasks queue"}, nil
		}
		return nil, err
	}

	resp := coreadmin.Response{"STATUS": string(st.State)}
	switch st.State {
	case qdb.AsyncFailed:
		resp["msg"] = st.Error
	case qdb.AsyncCompleted:
		resp["msg"] = "found [" + id + "] in completed tasks"
	}
	if len(st.Result) > 0 {
		resp["response"] = st.Result
	}
	return resp, nil
}

func (s *CollectionsService) lockStatus(ctx context.Context, params *coreadmin.Request) (coreadmin.Response, error) {
	coll := params.Str(split.ParamCollection)
	if coll == "" {
		return nil, griderror.New(griderror.GRID_BAD_REQUEST, "missing required parameter: collection")
	}
	held, err := s.locks.Held(ctx, coll)
	if err != nil {
		return nil, err
	}
	return coreadmin.Response{"collection": coll, "locks": toList(held)}, nil
}

func (s *CollectionsService) releaseLocks(ctx context.Context, params *coreadmin.Request) (coreadmin.Response, error) {
	coll := params.Str(split.ParamCollection)
	if coll == "" {
		return nil, griderror.New(griderror.GRID_BAD_REQUEST, "missing required parameter: collection")
	}
	released, err := s.locks.ReleaseAll(ctx, coll)
	gridlog.Zero.Info().
		Err(err).
		Str("collection", coll).
		Strs("shards", released).
		Msg("collections: released split locks")
	if err != nil {
		return nil, err
	}
	return coreadmin.Response{"collection": coll, "released": toList(released)}, nil
}

func toList(s []string) []any {
	ret := make([]any, len(s))
	for i, v := range s {
		ret[i] = v
	}
	return ret
}
