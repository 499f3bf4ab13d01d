package diskspace

import (
	"context"

	"github.com/searchgrid/grid/pkg/coreadmin"
	"github.com/searchgrid/grid/pkg/gridlog"
	"github.com/searchgrid/grid/pkg/models/griderror"
)

const (
	MetricIndexSize   = "INDEX.sizeInBytes"
	MetricUsableSpace = "CONTAINER.fs.usableSpace"
)

//go:generate mockgen -source=pkg/diskspace/diskspace.go -destination=pkg/diskspace/mock/diskspace_mock.go -package=mock

// MetricsSource reads metrics of a core and of the node hosting it. Metrics
// the node does not report are absent from the returned map.
type MetricsSource interface {
	Metrics(ctx context.Context, node, core string, names ...string) (map[string]float64, error)
}

type NodeMetrics struct {
	client coreadmin.NodeClient
	policy coreadmin.RetryPolicy
}

var _ MetricsSource = &NodeMetrics{}

func NewNodeMetrics(client coreadmin.NodeClient, policy coreadmin.RetryPolicy) *NodeMetrics {
	return &NodeMetrics{client: client, policy: policy}
}

func (m *NodeMetrics) Metrics(ctx context.Context, node, core string, names ...string) (map[string]float64, error) {
	var resp coreadmin.Response
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = m.client.Execute(ctx, node, coreadmin.NewMetrics(core, names...))
		return err
	})
	if err != nil {
		return nil, err
	}

	ret := make(map[string]float64, len(names))
	for _, name := range names {
		if v, ok := resp.Number(name); ok {
			ret[name] = v
		}
	}
	return ret, nil
}

// RequiredSpace is the free space a split of an index of indexSize bytes
// needs: twice the index for rewrite, 5% on top of it for link.
func RequiredSpace(indexSize float64, method coreadmin.SplitMethod) float64 {
	if method == coreadmin.SplitMethodLink {
		return indexSize * 105 / 100
	}
	return indexSize * 2
}

// Check fails with GRID_SERVER_ERROR if the node hosting core lacks the
// space to split it. Missing metrics skip the check.
func Check(ctx context.Context, src MetricsSource, node, core string, method coreadmin.SplitMethod) error {
	metrics, err := src.Metrics(ctx, node, core, MetricIndexSize, MetricUsableSpace)
	if err != nil {
		return griderror.Wrap(griderror.GRID_SERVER_ERROR, err, "failed to read disk metrics of node "+node)
	}

	indexSize, ok := metrics[MetricIndexSize]
	if !ok {
		gridlog.Zero.Warn().
			Str("node", node).
			Str("core", core).
			Msg("diskspace: cannot verify information for parent shard leader")
		return nil
	}
	usable, ok := metrics[MetricUsableSpace]
	if !ok {
		gridlog.Zero.Warn().
			Str("node", node).
			Msg("diskspace: missing node disk space information for parent shard leader")
		return nil
	}

	required := RequiredSpace(indexSize, method)
	if usable < required {
		return griderror.Newf(griderror.GRID_SERVER_ERROR,
			"not enough free disk space to perform index split on node %s, required: %v, available: %v",
			node, required, usable)
	}
	gridlog.Zero.Debug().
		Str("node", node).
		Float64("required", required).
		Float64("available", usable).
		Msg("diskspace: enough free space for split")
	return nil
}
