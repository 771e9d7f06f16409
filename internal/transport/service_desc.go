package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "swapindex.v1.SwapIndexService"

// SwapIndexServer is the gRPC surface. Every method exchanges
// google.protobuf.Struct messages.
type SwapIndexServer interface {
	GetOpenOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOpenOrdersByWant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSwapHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSwapHistoryByWant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetArchivedHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSwapCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSwapCountByWant(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTip(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(SwapIndexServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var SwapIndexServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SwapIndexServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("GetOpenOrders", SwapIndexServer.GetOpenOrders),
		methodDesc("GetOpenOrdersByWant", SwapIndexServer.GetOpenOrdersByWant),
		methodDesc("GetSwapHistory", SwapIndexServer.GetSwapHistory),
		methodDesc("GetSwapHistoryByWant", SwapIndexServer.GetSwapHistoryByWant),
		methodDesc("GetArchivedHistory", SwapIndexServer.GetArchivedHistory),
		methodDesc("GetSwapCount", SwapIndexServer.GetSwapCount),
		methodDesc("GetSwapCountByWant", SwapIndexServer.GetSwapCountByWant),
		methodDesc("GetTip", SwapIndexServer.GetTip),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swapindex/v1/swapindex.proto",
}

func RegisterSwapIndexServer(s grpc.ServiceRegistrar, srv SwapIndexServer) {
	s.RegisterService(&SwapIndexServiceDesc, srv)
}

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SwapIndexServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SwapIndexServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
