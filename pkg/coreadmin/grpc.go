package coreadmin

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchgrid/grid/pkg/models/griderror"
)

const (
	CoreAdminService   = "grid.CoreAdmin"
	CollectionsService = "grid.CollectionsAdmin"

	executeMethod = "Execute"
)

// Handler serves one admin service. Both services share the same
// single-method shape: a parameter map in, a result map out.
type Handler interface {
	Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func serviceDesc(service string) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*Handler)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: executeMethod,
				Handler:    executeHandler(service),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "grid/admin.proto",
	}
}

func executeHandler(service string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return srv.(Handler).Execute(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + service + "/" + executeMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return srv.(Handler).Execute(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterHandler(s grpc.ServiceRegistrar, service string, h Handler) {
	s.RegisterService(serviceDesc(service), h)
}

// Invoke calls Execute of service over cc.
func Invoke(ctx context.Context, cc grpc.ClientConnInterface, service string, req *Request) (Response, error) {
	in, err := req.ToStruct()
	if err != nil {
		return nil, griderror.Wrap(griderror.GRID_BAD_REQUEST, err, "failed to encode "+string(req.Action)+" request")
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, "/"+service+"/"+executeMethod, in, out); err != nil {
		return nil, FromStatus(err)
	}
	return ResponseFromStruct(out), nil
}

// ToStatus converts an error to a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case griderror.IsBadRequest(err):
		code = codes.InvalidArgument
	case griderror.IsInvalidState(err):
		code = codes.FailedPrecondition
	case griderror.IsNotFound(err):
		code = codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

// FromStatus turns a gRPC status error back into a GridError of the
// matching class. Unavailable and deadline errors are kept as they are so
// that retry policies can still see them.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return griderror.New(griderror.GRID_BAD_REQUEST, st.Message())
	case codes.FailedPrecondition:
		return griderror.New(griderror.GRID_INVALID_STATE, st.Message())
	case codes.NotFound:
		return griderror.New(griderror.GRID_NOT_FOUND, st.Message())
	case codes.Internal, codes.Unknown:
		return griderror.New(griderror.GRID_SERVER_ERROR, st.Message())
	default:
		return err
	}
}
