package authctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/dmitrijs2005/gophauth/internal/common"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const accessTokenEnv = "GOPHAUTH_ACCESS_TOKEN"

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenCookieName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func accessTokenInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	}
}

func newWhoAmICommand() *cobra.Command {
	var (
		addr    string
		token   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve an access token through the gRPC session service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(accessTokenEnv)
			}
			if token == "" {
				return errors.New("access token is required (--token or " + accessTokenEnv + ")")
			}

			conn, err := grpc.NewClient(addr,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithUnaryInterceptor(accessTokenInterceptor(token)),
			)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
			defer cancel()

			out, err := gs.NewSessionClient(conn).WhoAmI(ctx)
			if err != nil {
				return fmt.Errorf("whoami: %w", err)
			}

			fields := out.GetFields()
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n",
				int64(fields["id"].GetNumberValue()), fields["email"].GetStringValue())
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC server address")
	cmd.Flags().StringVar(&token, "token", "", "Access token, defaults to $"+accessTokenEnv)
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")
	return cmd
}
