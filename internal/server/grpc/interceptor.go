package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// protectedMethods require a valid access token.
var protectedMethods = map[string]struct{}{
	WhoAmIMethod: {},
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if _, ok := protectedMethods[info.FullMethod]; !ok {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenCookieName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.auth.Authenticate(ctx, accessToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			return nil, status.Error(codes.Unauthenticated, "token expired")
		case common.IsAuthFailure(err):
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		case errors.Is(err, common.ErrStorageUnavailable):
			return nil, status.Error(codes.Unavailable, "service unavailable")
		default:
			s.logger.Error(ctx, "authenticate", "error", err)
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}
