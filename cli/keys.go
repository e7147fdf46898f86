package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	authpg "github.com/askdocs/askdocs/engine/auth/infra/postgres"
	"github.com/askdocs/askdocs/engine/auth/model"
	"github.com/askdocs/askdocs/engine/auth/uc"
	"github.com/askdocs/askdocs/engine/core"
	"github.com/askdocs/askdocs/pkg/config"
	"github.com/askdocs/askdocs/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// KeysCmd manages API keys directly against the database, for operators who
// have the connection string but no key of their own yet.
func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(keysIssueCmd(), keysListCmd(), keysRevokeCmd())
	return cmd
}

func keysIssueCmd() *cobra.Command {
	var role, label string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeyRepo(cmd, func(ctx context.Context, cfg *config.Config, repo uc.Repository) error {
				return issueKey(ctx, cmd.OutOrStdout(), repo, &cfg.Auth, role, label)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Role for the new key (user, admin)")
	cmd.Flags().StringVar(&label, "label", "", "Free-form label for the new key")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKeyRepo(cmd, func(ctx context.Context, _ *config.Config, repo uc.Repository) error {
				return listKeys(ctx, cmd.OutOrStdout(), repo)
			})
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyRepo(cmd, func(ctx context.Context, _ *config.Config, repo uc.Repository) error {
				return revokeKey(ctx, cmd.OutOrStdout(), repo, args[0])
			})
		},
	}
}

// withKeyRepo opens the database the same way serve does and hands a ready
// credential repository to fn.
func withKeyRepo(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, repo uc.Repository) error) error {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logLevel, logJSON, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(logLevel, logJSON)
	ctx := logger.ContextWithLogger(cmd.Context(), log)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	if err := authpg.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	return fn(ctx, cfg, authpg.NewRepository(pool))
}

// issueKey creates a key with operator authority. Direct database access
// already grants everything a key could, so the CLI issues as superadmin;
// the role hierarchy still keeps it from minting superadmin keys.
func issueKey(ctx context.Context, out io.Writer, repo uc.Repository, cfg *config.AuthConfig, roleName, label string) error {
	role := model.Role(roleName)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", roleName)
	}
	operator := &model.APIKey{ID: "cli", Role: model.RoleSuperadmin, Active: true}
	key, plaintext, err := uc.NewIssue(repo, cfg.KeyPrefix, cfg.BcryptCost).Execute(ctx, role, label, operator)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "id:      %s\nrole:    %s\nlabel:   %s\napi_key: %s\n", key.ID, key.Role, key.Label, plaintext)
	fmt.Fprintln(out, "Store the api_key now; it cannot be shown again.")
	return nil
}

func listKeys(ctx context.Context, out io.Writer, repo uc.Repository) error {
	infos, err := uc.NewList(repo).Execute(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tLABEL\tACTIVE\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			info.ID, info.Role, info.Label, info.Active, info.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func revokeKey(ctx context.Context, out io.Writer, repo uc.Repository, id string) error {
	if err := uc.NewRevoke(repo).Execute(ctx, core.ID(id)); err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked %s\n", id)
	return nil
}
