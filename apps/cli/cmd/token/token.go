package tokencmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbuserp/nimbus-saas/platform/go/auth"
)

// Command groups token helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token utilities",
	}

	cmd.AddCommand(mintCommand())
	return cmd
}

func mintCommand() *cobra.Command {
	var (
		secret     string
		subject    string
		email      string
		tenantCode string
		isAdmin    bool
		expiresIn  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 JWT for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.MintToken([]byte(secret), subject, email, isAdmin, tenantCode, expiresIn)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared HS256 signing secret")
	cmd.Flags().StringVar(&subject, "user-id", "", "sub claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&tenantCode, "tenant", "", "tenant claim (omit for platform-admin tokens)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "set isAdmin=true")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
