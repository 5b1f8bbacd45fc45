package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/pkg/auth"
	"github.com/jwalitptl/intake-api/pkg/security"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _ := cmd.Flags().GetString("client")
			secret, _ := cmd.Flags().GetString("secret")

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if secret == "" {
				secret = cfg.Auth.Secret
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: set auth.secret or pass --secret")
			}

			token, expiry, err := auth.NewJWTService(secret, cfg.Auth.Issuer, cfg.Auth.Expiry).GenerateAccessToken(client)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %s\n", expiry)
			return nil
		},
	}
	cmd.Flags().String("client", "", "Client id to put in the token")
	cmd.Flags().String("secret", "", "Signing secret (defaults to auth.secret)")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func hashSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print a bcrypt hash for the auth.clients config map",
		Long:  "Hashes the secret given as argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")

			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read secret from stdin: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			hash, err := security.NewBcryptHasher(cost).Hash(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
