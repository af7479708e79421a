package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/feeallocator/internal/auth"
)

var operatorID string

// tokenCmd mints an operator token signed with FEES_JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the RPC API",
	Long: `Print a bearer token for the given operator, valid for FEES_TOKEN_TTL.

Example:
  feectl token --operator bursar`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("FEES_JWT_SECRET is not set")
		}

		token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Generate(operatorID)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		printf(cmd, "%s\n", token)
		return nil
	},
}

// hashSecretCmd prints the bcrypt hash for MPESA_WEBHOOK_SECRET_HASH.
var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret SECRET",
	Short: "Hash the M-Pesa callback secret",
	Long: `Print the bcrypt hash to store in MPESA_WEBHOOK_SECRET_HASH.
Register the callback URLs with ?token=SECRET appended.

Example:
  feectl hash-secret "$(openssl rand -hex 24)"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[0])
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", hash)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&operatorID, "operator", "", "operator ID to embed in the token")
	_ = tokenCmd.MarkFlagRequired("operator")
}
