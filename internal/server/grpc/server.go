// Package grpc exposes session introspection over gRPC, next to the
// standard health service.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Authenticator resolves access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type GRPCServer struct {
	address string
	auth    Authenticator
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(address string, l logging.Logger, a Authenticator) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		auth:    a,
		health:  health.NewServer(),
	}
}

// WhoAmI reports the user behind the access token in the call metadata.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return structpb.NewStruct(map[string]interface{}{
		"id":    float64(user.ID),
		"email": user.Email,
	})
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	RegisterSessionServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	return srv.Serve(listen)
}
