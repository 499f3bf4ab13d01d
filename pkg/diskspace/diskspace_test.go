package diskspace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/searchgrid/grid/pkg/coreadmin"
	mockadmin "github.com/searchgrid/grid/pkg/coreadmin/mock"
	"github.com/searchgrid/grid/pkg/diskspace"
	mockdisk "github.com/searchgrid/grid/pkg/diskspace/mock"
	"github.com/searchgrid/grid/pkg/models/griderror"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestRequiredSpace(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(200.0, diskspace.RequiredSpace(100, coreadmin.SplitMethodRewrite))
	assert.Equal(105.0, diskspace.RequiredSpace(100, coreadmin.SplitMethodLink))
}

func TestCheckRewriteNeedsTwiceTheIndex(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	src := mockdisk.NewMockMetricsSource(ctrl)
	src.EXPECT().
		Metrics(gomock.Any(), "n1", "core1", diskspace.MetricIndexSize, diskspace.MetricUsableSpace).
		Return(map[string]float64{diskspace.MetricIndexSize: 100, diskspace.MetricUsableSpace: 150}, nil).
		Times(2)

	err := diskspace.Check(context.TODO(), src, "n1", "core1", coreadmin.SplitMethodRewrite)
	assert.Error(err)
	assert.True(griderror.IsServerError(err))
	assert.Contains(err.Error(), "required: 200")
	assert.Contains(err.Error(), "available: 150")

	assert.NoError(diskspace.Check(context.TODO(), src, "n1", "core1", coreadmin.SplitMethodLink))
}

func TestCheckSkipsMissingMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mockdisk.NewMockMetricsSource(ctrl)
	src.EXPECT().Metrics(gomock.Any(), "n1", "core1", gomock.Any(), gomock.Any()).
		Return(map[string]float64{diskspace.MetricUsableSpace: 1}, nil)
	src.EXPECT().Metrics(gomock.Any(), "n2", "core1", gomock.Any(), gomock.Any()).
		Return(map[string]float64{diskspace.MetricIndexSize: 1000}, nil)

	assert.NoError(t, diskspace.Check(context.TODO(), src, "n1", "core1", coreadmin.SplitMethodRewrite))
	assert.NoError(t, diskspace.Check(context.TODO(), src, "n2", "core1", coreadmin.SplitMethodRewrite))
}

func TestCheckMetricsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	src := mockdisk.NewMockMetricsSource(ctrl)
	src.EXPECT().Metrics(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection reset"))

	err := diskspace.Check(context.TODO(), src, "n1", "core1", coreadmin.SplitMethodLink)
	assert.True(t, griderror.IsServerError(err))
}

func TestNodeMetrics(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	client := mockadmin.NewMockNodeClient(ctrl)
	client.EXPECT().Execute(gomock.Any(), "n1", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req *coreadmin.Request) (coreadmin.Response, error) {
			assert.Equal(coreadmin.ActionMetrics, req.Action)
			assert.Equal("core1", req.Str("core"))
			return coreadmin.Response{diskspace.MetricIndexSize: float64(42)}, nil
		})

	src := diskspace.NewNodeMetrics(client, coreadmin.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
	got, err := src.Metrics(context.TODO(), "n1", "core1", diskspace.MetricIndexSize, diskspace.MetricUsableSpace)
	assert.NoError(err)
	assert.Equal(map[string]float64{diskspace.MetricIndexSize: 42}, got)
}
