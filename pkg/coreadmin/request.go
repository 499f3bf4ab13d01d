package coreadmin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
	"github.com/searchgrid/grid/pkg/models/topology"
)

type Action string

// Core admin actions served by every node.
const (
	ActionCreate              = Action("CREATE")
	ActionWaitForState        = Action("WAITFORSTATE")
	ActionSplit               = Action("SPLIT")
	ActionRequestApplyUpdates = Action("REQUESTAPPLYUPDATES")
	ActionCommit              = Action("COMMIT")
	ActionUnload              = Action("UNLOAD")
	ActionRequestStatus       = Action("REQUESTSTATUS")
	ActionMetrics             = Action("METRICS")
)

// Collection admin actions served by the coordinator.
const (
	ActionSplitShard   = Action("SPLITSHARD")
	ActionLockStatus   = Action("LOCKSTATUS")
	ActionReleaseLocks = Action("RELEASELOCKS")
)

const (
	ParamAction = "action"
	ParamAsync  = "async"
)

type SplitMethod string

const (
	SplitMethodRewrite = SplitMethod("rewrite")
	SplitMethodLink    = SplitMethod("link")
)

func ParseSplitMethod(s string) (SplitMethod, error) {
	switch strings.ToLower(s) {
	case "", string(SplitMethodRewrite):
		return SplitMethodRewrite, nil
	case string(SplitMethodLink):
		return SplitMethodLink, nil
	default:
		return "", griderror.Newf(griderror.GRID_BAD_REQUEST, "Unknown value 'splitMethod': %s", s)
	}
}

// Request is one admin call: an action and its parameters. Parameter
// values are limited to what structpb can carry; lists are []any.
type Request struct {
	Action Action
	Params map[string]any
}

func NewRequest(action Action) *Request {
	return &Request{Action: action, Params: map[string]any{}}
}

func (r *Request) Set(key string, value any) *Request {
	r.Params[key] = value
	return r
}

func (r *Request) Has(key string) bool {
	_, ok := r.Params[key]
	return ok
}

func (r *Request) Str(key string) string {
	switch v := r.Params[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (r *Request) Int(key string, def int) (int, error) {
	switch v := r.Params[key].(type) {
	case nil:
		return def, nil
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid integer value for %s: %s", key, v)
		}
		return n, nil
	default:
		return 0, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid integer value for %s: %v", key, v)
	}
}

func (r *Request) Float(key string, def float64) (float64, error) {
	switch v := r.Params[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if v == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid float value for %s: %s", key, v)
		}
		return f, nil
	default:
		return 0, griderror.Newf(griderror.GRID_BAD_REQUEST, "invalid float value for %s: %v", key, v)
	}
}

func (r *Request) Bool(key string) bool {
	switch v := r.Params[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Strings reads a list parameter given either as a list or as a comma
// separated string.
func (r *Request) Strings(key string) []string {
	switch v := r.Params[key].(type) {
	case []any:
		ret := make([]string, 0, len(v))
		for _, s := range v {
			ret = append(ret, fmt.Sprint(s))
		}
		return ret
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return nil
	}
}

func (r *Request) ToStruct() (*structpb.Struct, error) {
	fields := make(map[string]any, len(r.Params)+1)
	for k, v := range r.Params {
		fields[k] = v
	}
	fields[ParamAction] = string(r.Action)
	return structpb.NewStruct(fields)
}

func RequestFromStruct(s *structpb.Struct) (*Request, error) {
	params := s.AsMap()
	action, _ := params[ParamAction].(string)
	if action == "" {
		return nil, griderror.New(griderror.GRID_BAD_REQUEST, "missing required parameter: action")
	}
	delete(params, ParamAction)
	return &Request{Action: Action(strings.ToUpper(action)), Params: params}, nil
}

// String renders the request with sorted parameters, for logs.
func (r *Request) String() string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(r.Action))
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, r.Params[k])
	}
	return sb.String()
}

// Response is the result map returned by an admin call.
type Response map[string]any

func (r Response) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Number returns a numeric entry, reporting whether it was present.
func (r Response) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func ResponseFromStruct(s *structpb.Struct) Response {
	if s == nil {
		return Response{}
	}
	return Response(s.AsMap())
}

func (r Response) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(r)
}

// ==============================================================================
//                              NODE REQUESTS
// ==============================================================================

// NewCreateCore starts a core for an existing replica entry.
func NewCreateCore(core, collection, shard string, t topology.ReplicaType) *Request {
	return NewRequest(ActionCreate).
		Set("name", core).
		Set("collection", collection).
		Set("shard", shard).
		Set("replicaType", string(t))
}

// NewWaitForState asks the node to block until the replica of core reaches
// state. With onlyIfLeader the wait also requires the replica to lead its
// shard.
func NewWaitForState(collection, core, node string, state topology.ReplicaState, checkLive, onlyIfLeader bool) *Request {
	return NewRequest(ActionWaitForState).
		Set("collection", collection).
		Set("core", core).
		Set("nodeName", node).
		Set("state", string(state)).
		Set("checkLive", checkLive).
		Set("onlyIfLeader", onlyIfLeader)
}

func NewSplitCore(core string, targetCores []string, ranges []hashrange.Range, method SplitMethod) *Request {
	targets := make([]any, len(targetCores))
	for i, c := range targetCores {
		targets[i] = c
	}
	return NewRequest(ActionSplit).
		Set("core", core).
		Set("targetCore", targets).
		Set("ranges", hashrange.FormatRanges(ranges)).
		Set("splitMethod", string(method))
}

func NewApplyUpdates(core string) *Request {
	return NewRequest(ActionRequestApplyUpdates).Set("name", core)
}

func NewCommit(core string) *Request {
	return NewRequest(ActionCommit).Set("core", core)
}

func NewUnload(core string) *Request {
	return NewRequest(ActionUnload).
		Set("core", core).
		Set("deleteIndex", true).
		Set("deleteDataDir", true).
		Set("deleteInstanceDir", true)
}

func NewRequestStatus(id string) *Request {
	return NewRequest(ActionRequestStatus).Set("requestid", id)
}

// NewMetrics asks a node for metric values. Core scoped keys are read for
// core, node scoped keys ignore it.
func NewMetrics(core string, keys ...string) *Request {
	list := make([]any, len(keys))
	for i, k := range keys {
		list[i] = k
	}
	return NewRequest(ActionMetrics).Set("core", core).Set("key", list)
}
