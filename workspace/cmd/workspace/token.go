package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/workspace/internal/auth"
	"github.com/teamspace-hq/teamspace/workspace/internal/execution"
)

var (
	tokenUser      string
	tokenCompanies map[string]string
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Access token commands",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint an access token for development",
	Long: `Mint an access token signed with auth.jwt_secret.

Examples:
  workspace token issue --user alice --companies acme=admin
  workspace token issue --user bob --companies acme=member,globex=member --ttl 8h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		for company, role := range tokenCompanies {
			switch execution.Role(role) {
			case execution.RoleMember, execution.RoleAdmin:
			default:
				return fmt.Errorf("company %s: role must be member or admin, got %q", company, role)
			}
		}
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL()
		}
		token, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl).Issue(tokenUser, tokenCompanies)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUser, "user", "", "user id (subject)")
	tokenIssueCmd.Flags().StringToStringVar(&tokenCompanies, "companies", nil, "company=role pairs")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl_minutes)")
	tokenCmd.AddCommand(tokenIssueCmd)
}
