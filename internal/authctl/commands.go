package authctl

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newMigrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(commandContext(cmd), true)
			if err != nil {
				return err
			}
			defer e.close()

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newCreateUserCommand(open opener) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account, prompting for the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			e, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := newService(e)
			if err != nil {
				return err
			}

			user, err := svc.Register(ctx, email, password)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email of the new account")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newPurgeExpiredCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-expired",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := open(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := newService(e)
			if err != nil {
				return err
			}

			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired refresh tokens\n", n)
			return nil
		},
	}
}

func promptPassword(cmd *cobra.Command) (string, error) {
	out := cmd.ErrOrStderr()
	fd := int(os.Stdin.Fd())

	fmt.Fprint(out, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	password := strings.TrimRight(string(first), "\r\n")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if password != strings.TrimRight(string(second), "\r\n") {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
