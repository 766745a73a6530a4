package main

import (
	"fmt"
	"os"
	"strings"

	authsvc "github.com/NordCoder/campauth/internal/services/auth"
	"github.com/spf13/cobra"
)

func newUsersCmd(d func() *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage coordinator accounts",
	}
	cmd.AddCommand(newUsersCreateCmd(d))
	return cmd
}

func newUsersCreateCmd(d func() *deps) *cobra.Command {
	var (
		in    authsvc.RegisterInput
		roles []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create a coordinator account. The password is taken from --password or,
when empty, from AUTHCTL_PASSWORD.`,
		Example: `  authctl users create --email admin@camp.org --first-name Ada --last-name Admin --role ROLE_ADMIN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("AUTHCTL_PASSWORD")
			}
			in.Roles = roles
			acc, err := d().users.Register(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %d (%s) roles=%s\n",
				acc.ID, acc.Email, strings.Join(acc.Roles, ","))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Password, "password", "", "account password")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.District, "district", "", "district number")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringSliceVar(&roles, "role", nil, "role to grant, repeatable (default ROLE_COORDINATOR)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")
	return cmd
}
