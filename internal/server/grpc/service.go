package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SessionServiceName = "gophauth.v1.SessionService"
	WhoAmIMethod       = "/" + SessionServiceName + "/WhoAmI"
)

// SessionServiceServer is the session service. Messages are protobuf well
// known types, so no generated code is needed.
type SessionServiceServer interface {
	// WhoAmI returns {"id": <number>, "email": <string>} for the caller.
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler:    whoAmIHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/session.proto",
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

func whoAmIHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: WhoAmIMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// SessionClient calls the session service over cc.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{cc: cc}
}

// WhoAmI calls the service. The access token is expected in the outgoing
// metadata under "access_token".
func (c *SessionClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, WhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
