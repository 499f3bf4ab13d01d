package coreadmin

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/searchgrid/grid/pkg/gridlog"
)

//go:generate mockgen -source=pkg/coreadmin/client.go -destination=pkg/coreadmin/mock/client_mock.go -package=mock

// NodeClient sends core admin requests to cluster nodes.
type NodeClient interface {
	Execute(ctx context.Context, node string, req *Request) (Response, error)
}

// GrpcClient keeps one connection per node. Nodes without an entry in the
// address map are dialed using the node name as address.
type GrpcClient struct {
	mu    sync.Mutex
	addrs map[string]string
	conns map[string]*grpc.ClientConn
	opts  []grpc.DialOption
}

var _ NodeClient = &GrpcClient{}

func NewGrpcClient(addrs map[string]string, opts ...grpc.DialOption) *GrpcClient {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &GrpcClient{
		addrs: addrs,
		conns: map[string]*grpc.ClientConn{},
		opts:  opts,
	}
}

func (c *GrpcClient) conn(node string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cc, ok := c.conns[node]; ok {
		return cc, nil
	}
	addr, ok := c.addrs[node]
	if !ok {
		addr = node
	}
	cc, err := grpc.NewClient(addr, c.opts...)
	if err != nil {
		return nil, err
	}
	gridlog.Zero.Debug().
		Str("node", node).
		Str("address", addr).
		Msg("coreadmin: opened connection")
	c.conns[node] = cc
	return cc, nil
}

func (c *GrpcClient) Execute(ctx context.Context, node string, req *Request) (Response, error) {
	cc, err := c.conn(node)
	if err != nil {
		return nil, err
	}
	return Invoke(ctx, cc, CoreAdminService, req)
}

func (c *GrpcClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for node, cc := range c.conns {
		if err := cc.Close(); err != nil {
			lastErr = err
		}
		delete(c.conns, node)
	}
	return lastErr
}
