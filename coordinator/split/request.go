package split

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/searchgrid/grid/pkg/models/hashrange"
)

// SPLITSHARD parameter names.
const (
	ParamCollection        = "collection"
	ParamShard             = "shard"
	ParamSplitKey          = "split.key"
	ParamRanges            = "ranges"
	ParamSplitFuzz         = "splitFuzz"
	ParamSplitMethod       = "splitMethod"
	ParamNumSubShards      = "numSubShards"
	ParamWaitForFinalState = "waitForFinalState"
	ParamTiming            = "timing"
	ParamCreateNodeSet     = "createNodeSet"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("param")
	})
}

type Request struct {
	Collection string `param:"collection" validate:"required"`
	Shard      string `param:"shard" validate:"required_without=SplitKey,excluded_with=SplitKey"`
	SplitKey   string `param:"split.key"`
	// Ranges is a comma separated list of hex hash ranges.
	Ranges       string                `param:"ranges" validate:"excluded_with=SplitKey"`
	SplitFuzz    float64               `param:"splitFuzz" validate:"gte=0,lt=1"`
	Method       coreadmin.SplitMethod `param:"splitMethod" validate:"oneof=rewrite link"`
	NumSubShards int                   `param:"numSubShards"`

	WaitForFinalState bool
	AsyncID           string
	Timing            bool
	// CreateNodeSet restricts where new sub-shard replicas may be placed.
	CreateNodeSet []string
}

// RequestFromParams reads a SPLITSHARD admin request.
func RequestFromParams(r *coreadmin.Request) (*Request, error) {
	method, err := coreadmin.ParseSplitMethod(r.Str(ParamSplitMethod))
	if err != nil {
		return nil, err
	}
	fuzz, err := r.Float(ParamSplitFuzz, 0)
	if err != nil {
		return nil, griderror.Newf(griderror.GRID_BAD_REQUEST, "Invalid numeric value of 'fuzz': %s", r.Str(ParamSplitFuzz))
	}
	n, err := r.Int(ParamNumSubShards, 0)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Collection:        r.Str(ParamCollection),
		Shard:             r.Str(ParamShard),
		SplitKey:          r.Str(ParamSplitKey),
		Ranges:            r.Str(ParamRanges),
		SplitFuzz:         fuzz,
		Method:            method,
		NumSubShards:      n,
		WaitForFinalState: r.Bool(ParamWaitForFinalState),
		AsyncID:           r.Str(coreadmin.ParamAsync),
		Timing:            r.Bool(ParamTiming),
		CreateNodeSet:     r.Strings(ParamCreateNodeSet),
	}
	return req, req.Validate()
}

// Validate checks parameter combinations. Range arithmetic is checked
// later against the parent shard.
func (r *Request) Validate() error {
	if r.Method == "" {
		r.Method = coreadmin.SplitMethodRewrite
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return griderror.New(griderror.GRID_BAD_REQUEST, formatValidationError(verrs[0]))
		}
		return griderror.Wrap(griderror.GRID_BAD_REQUEST, err, "invalid SPLITSHARD request")
	}
	if r.NumSubShards != 0 && (r.Ranges != "" || r.SplitKey != "") {
		return griderror.New(griderror.GRID_BAD_REQUEST,
			"numSubShards can not be specified with split.key or ranges parameters")
	}
	return nil
}

// SubShardCount is the number of sub-shards an even split produces.
func (r *Request) SubShardCount() int {
	if r.NumSubShards == 0 {
		return hashrange.DefaultPartitions
	}
	return r.NumSubShards
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing required parameter: " + fe.Field()
	case "required_without":
		return "One of 'shard' or 'split.key' should be specified"
	case "excluded_with":
		return fmt.Sprintf("Only one of '%s' or 'split.key' should be specified", fe.Field())
	case "oneof":
		return fmt.Sprintf("Unknown value '%s': %v", fe.Field(), fe.Value())
	case "gte", "lt":
		return fmt.Sprintf("Invalid value of '%s': %v, must be in the range [0, 1)", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("invalid parameter %s: failed validation %s", fe.Field(), fe.Tag())
	}
}
