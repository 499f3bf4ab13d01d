package coreadmin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/searchgrid/grid/coordinator/statistics"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
)

const (
	AsyncCompleted = "completed"
	AsyncFailed    = "failed"
	AsyncRunning   = "running"
	AsyncSubmitted = "submitted"
	AsyncNotFound  = "notfound"

	defaultAsyncPollInterval = 100 * time.Millisecond
)

var asyncSeq atomic.Int64

type Outcome struct {
	Node     string
	Request  *Request
	Response Response
	Err      error
}

// Results accumulates the outcome of every request sent during one
// operation, bucketed into successes and failures by node.
type Results struct {
	mu      sync.Mutex
	Success []Outcome
	Failure []Outcome
}

func NewResults() *Results {
	return &Results{}
}

func (r *Results) add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.Err != nil {
		r.Failure = append(r.Failure, o)
	} else {
		r.Success = append(r.Success, o)
	}
}

func (r *Results) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failure) > 0
}

// ToMap renders the results as {"success": {node: [...]}, "failure": {node: [...]}}.
func (r *Results) ToMap() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := map[string]any{}
	if len(r.Success) > 0 {
		success := map[string]any{}
		for _, o := range r.Success {
			entry := map[string]any{}
			for k, v := range o.Response {
				entry[k] = v
			}
			entry[ParamAction] = string(o.Request.Action)
			list, _ := success[o.Node].([]any)
			success[o.Node] = append(list, entry)
		}
		ret["success"] = success
	}
	if len(r.Failure) > 0 {
		failure := map[string]any{}
		for _, o := range r.Failure {
			list, _ := failure[o.Node].([]any)
			failure[o.Node] = append(list, fmt.Sprintf("%s: %s", o.Request.Action, o.Err.Error()))
		}
		ret["failure"] = failure
	}
	return ret
}

// Tracker fans admin requests out to nodes and joins them. With an async id
// every request is submitted asynchronously on the node and the tracker
// polls REQUESTSTATUS until it finishes, so callers observe the same
// ordering in both modes.
type Tracker struct {
	client       NodeClient
	policy       RetryPolicy
	asyncID      string
	pollInterval time.Duration

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group

	mu       sync.Mutex
	failFast bool
	outcomes []Outcome
}

func NewTracker(ctx context.Context, client NodeClient, policy RetryPolicy, asyncID string) *Tracker {
	inner, cancel := context.WithCancel(ctx)
	return &Tracker{
		client:       client,
		policy:       policy,
		asyncID:      asyncID,
		pollInterval: defaultAsyncPollInterval,
		parent:       ctx,
		ctx:          inner,
		cancel:       cancel,
	}
}

func (t *Tracker) WithPollInterval(d time.Duration) *Tracker {
	t.pollInterval = d
	return t
}

// Send dispatches req to node without waiting for it.
func (t *Tracker) Send(node string, req *Request) {
	if t.asyncID != "" {
		req.Set(ParamAsync, fmt.Sprintf("%s%d", t.asyncID, asyncSeq.Inc()))
	}
	ctx, cancel := t.ctx, t.cancel
	t.g.Go(func() error {
		resp, err := t.execute(ctx, node, req)
		t.mu.Lock()
		t.outcomes = append(t.outcomes, Outcome{Node: node, Request: req, Response: resp, Err: err})
		abort := t.failFast
		t.mu.Unlock()

		if err != nil {
			gridlog.Zero.Debug().
				Err(err).
				Str("node", node).
				Str("request", req.String()).
				Msg("coreadmin: request failed")
			if abort {
				cancel()
			}
		}
		return nil
	})
}

func (t *Tracker) execute(ctx context.Context, node string, req *Request) (Response, error) {
	start := time.Now()

	var resp Response
	err := t.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = t.client.Execute(ctx, node, req)
		return err
	})
	if err == nil && req.Has(ParamAsync) {
		resp, err = t.await(ctx, node, req.Str(ParamAsync))
	}

	statistics.RecordShardOperation(string(req.Action), time.Since(start), err)
	return resp, err
}

func (t *Tracker) await(ctx context.Context, node, id string) (Response, error) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		var resp Response
		err := t.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			resp, err = t.client.Execute(ctx, node, NewRequestStatus(id))
			return err
		})
		if err != nil {
			return nil, err
		}

		switch resp.Str("STATUS") {
		case AsyncCompleted:
			return resp, nil
		case AsyncFailed:
			return resp, griderror.Newf(griderror.GRID_SERVER_ERROR, "async request %s failed on %s: %s", id, node, resp.Str("msg"))
		case AsyncNotFound:
			return resp, griderror.Newf(griderror.GRID_SERVER_ERROR, "async request %s not found on %s", id, node)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessResponses waits for every request sent so far and records their
// outcomes in results. With failFast the first failure cancels requests
// still in flight. Any failure is returned as a GRID_SERVER_ERROR carrying
// msgOnError. The tracker can be reused afterwards.
func (t *Tracker) ProcessResponses(results *Results, failFast bool, msgOnError string) error {
	t.mu.Lock()
	t.failFast = failFast
	failed := false
	for _, o := range t.outcomes {
		failed = failed || o.Err != nil
	}
	t.mu.Unlock()

	if failFast && failed {
		t.cancel()
	}

	_ = t.g.Wait()

	t.mu.Lock()
	outcomes := t.outcomes
	t.outcomes = nil
	t.mu.Unlock()

	var errs []error
	for _, o := range outcomes {
		results.add(o)
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Node, o.Err))
		}
	}

	if t.ctx.Err() != nil {
		t.ctx, t.cancel = context.WithCancel(t.parent)
	}

	if len(errs) > 0 {
		return griderror.Wrap(griderror.GRID_SERVER_ERROR, errors.Join(errs...), msgOnError)
	}
	return nil
}

// Close releases the tracker's context.
func (t *Tracker) Close() {
	t.cancel()
}
