package clusterstate

import (
	"context"

	"github.com/searchgrid/grid/qdb"
)

// Direct applies every change in the calling goroutine. Changes are
// visible as soon as Mutate returns.
type Direct struct {
	applier
}

var _ Mutator = &Direct{}

func NewDirect(db qdb.QDB, opts ...Option) *Direct {
	return &Direct{applier: newApplier(db, opts...)}
}

func (d *Direct) Mutate(ctx context.Context, collection string, op Op) error {
	return d.apply(ctx, collection, []Op{op})
}

func (d *Direct) BeginBatch(collection string) Recorder {
	return &batch{collection: collection, publish: d.apply}
}

func (d *Direct) IsDistributed() bool {
	return false
}
