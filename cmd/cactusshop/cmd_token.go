package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	pkgcfg "github.com/Skotchmaster/cactus_shop/pkg/config"
	"github.com/Skotchmaster/cactus_shop/pkg/tokens"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

// tokenCmd mints an access token signed with JWT_SECRET so the admin routes
// can be exercised locally without the auth service.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed access token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := []byte(os.Getenv("JWT_SECRET"))
		if err := pkgcfg.MustNonEmptyBytes("JWT_SECRET", secret); err != nil {
			return err
		}
		if tokenRole != tokens.RoleAdmin && tokenRole != tokens.RoleUser {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		tok, err := tokens.NewAccessToken(tokenSubject, tokenRole, secret, time.Now().Add(tokenTTL))
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "local-admin", "subject (external user id)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", tokens.RoleAdmin, "admin or user")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}
