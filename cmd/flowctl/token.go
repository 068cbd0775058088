package main

import (
	"fmt"
	"time"

	"flowboard/pkg/auth"

	"github.com/spf13/cobra"
)

var (
	tokenEmail  string
	tokenTTL    time.Duration
	tokenRoles  []string
	tokenSecret string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an HS256 token accepted by AUTH_MODE=jwt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = cfg.JWTSecret
		}
		token, err := issueToken(secret, cfg.JWTIssuer, userID, tokenEmail, tokenRoles, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func issueToken(secret, issuer, user, email string, roles []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
	}
	gen, err := auth.NewJWTGenerator(auth.JWTGeneratorConfig{
		SecretKey:  secret,
		Issuer:     issuer,
		ExpiryTime: ttl,
	})
	if err != nil {
		return "", err
	}
	return gen.GenerateToken(user, email, roles)
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{"authenticated"}, "role claim (repeatable)")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "signing secret, defaults to JWT_SECRET")
}
