// Package v1 is the wire contract of a quorumlock store node.
//
// Messages are protobuf well-known types so the service needs no generated code:
// requests and replies are structpb.Struct or wrapperspb scalars, and the
// service descriptor below is what protoc-gen-go-grpc would emit for
//
//	service LockStore {
//	  rpc SetIfAbsent(google.protobuf.Struct) returns (google.protobuf.BoolValue);
//	  rpc CompareAndDelete(google.protobuf.Struct) returns (google.protobuf.BoolValue);
//	  rpc Get(google.protobuf.StringValue) returns (google.protobuf.Struct);
//	  rpc Increment(google.protobuf.StringValue) returns (google.protobuf.UInt64Value);
//	  rpc GetStatus(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	LockStore_SetIfAbsent_FullMethodName      = "/quorumlock.v1.LockStore/SetIfAbsent"
	LockStore_CompareAndDelete_FullMethodName = "/quorumlock.v1.LockStore/CompareAndDelete"
	LockStore_Get_FullMethodName              = "/quorumlock.v1.LockStore/Get"
	LockStore_Increment_FullMethodName        = "/quorumlock.v1.LockStore/Increment"
	LockStore_GetStatus_FullMethodName        = "/quorumlock.v1.LockStore/GetStatus"
)

type LockStoreClient interface {
	SetIfAbsent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	CompareAndDelete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Increment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type lockStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewLockStoreClient(cc grpc.ClientConnInterface) LockStoreClient {
	return &lockStoreClient{cc}
}

func (c *lockStoreClient) SetIfAbsent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, LockStore_SetIfAbsent_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lockStoreClient) CompareAndDelete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, LockStore_CompareAndDelete_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lockStoreClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LockStore_Get_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lockStoreClient) Increment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, LockStore_Increment_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lockStoreClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LockStore_GetStatus_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type LockStoreServer interface {
	SetIfAbsent(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	CompareAndDelete(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Increment(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// embed for forward compatibility
type UnimplementedLockStoreServer struct{}

func (UnimplementedLockStoreServer) SetIfAbsent(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method SetIfAbsent not implemented")
}

func (UnimplementedLockStoreServer) CompareAndDelete(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method CompareAndDelete not implemented")
}

func (UnimplementedLockStoreServer) Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}

func (UnimplementedLockStoreServer) Increment(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method Increment not implemented")
}

func (UnimplementedLockStoreServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

func RegisterLockStoreServer(s grpc.ServiceRegistrar, srv LockStoreServer) {
	s.RegisterService(&LockStore_ServiceDesc, srv)
}

func _LockStore_SetIfAbsent_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockStoreServer).SetIfAbsent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LockStore_SetIfAbsent_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockStoreServer).SetIfAbsent(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _LockStore_CompareAndDelete_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockStoreServer).CompareAndDelete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LockStore_CompareAndDelete_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockStoreServer).CompareAndDelete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _LockStore_Get_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockStoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LockStore_Get_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockStoreServer).Get(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _LockStore_Increment_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockStoreServer).Increment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LockStore_Increment_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockStoreServer).Increment(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _LockStore_GetStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockStoreServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LockStore_GetStatus_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LockStoreServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var LockStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "quorumlock.v1.LockStore",
	HandlerType: (*LockStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetIfAbsent", Handler: _LockStore_SetIfAbsent_Handler},
		{MethodName: "CompareAndDelete", Handler: _LockStore_CompareAndDelete_Handler},
		{MethodName: "Get", Handler: _LockStore_Get_Handler},
		{MethodName: "Increment", Handler: _LockStore_Increment_Handler},
		{MethodName: "GetStatus", Handler: _LockStore_GetStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quorumlock/v1/lockstore.proto",
}
