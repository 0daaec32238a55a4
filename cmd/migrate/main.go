package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/lanonasis/auth-gateway/migrations"
	"github.com/lanonasis/auth-gateway/pkg/config"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin/admininfra"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
	"github.com/lanonasis/auth-gateway/pkg/outbox/outboxinfra"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and seed bootstrap admin accounts",
}

func main() {
	rootCmd.AddCommand(upCmd, seedAdminCmd, backfillEventsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every embedded SQL migration in lexical order",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := migrations.FS.ReadDir(".")
		if err != nil {
			return fmt.Errorf("failed to read embedded migrations: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			sqlBytes, err := migrations.FS.ReadFile(name)
			if err != nil {
				return fmt.Errorf("failed to read migration %s: %w", name, err)
			}
			logx.Infof("applying migration %s", name)
			if _, err := db.Exec(string(sqlBytes)); err != nil {
				return fmt.Errorf("migration %s failed: %w", name, err)
			}
		}

		logx.Info("migrations applied")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Seed bootstrap admin bypass accounts from ADMIN_BOOTSTRAP_EMAILS/ADMIN_BOOTSTRAP_PASSWORD_HASHES",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		cfg := config.Load()
		repo := admininfra.NewPostgresRepository(db)

		n := len(cfg.Admin.BootstrapEmails)
		if len(cfg.Admin.BootstrapPasswordHashes) < n {
			n = len(cfg.Admin.BootstrapPasswordHashes)
		}
		if n == 0 {
			return fmt.Errorf("no bootstrap admin accounts configured")
		}

		for i := 0; i < n; i++ {
			account := admin.BypassAccount{
				Email:        cfg.Admin.BootstrapEmails[i],
				PasswordHash: cfg.Admin.BootstrapPasswordHashes[i],
			}
			if err := repo.Seed(cmd.Context(), account); err != nil {
				return fmt.Errorf("failed to seed %s: %w", account.Email, err)
			}
			logx.Infof("seeded bootstrap admin account %s", account.Email)
		}
		return nil
	},
}

// backfillEventsCmd reconstructs the event-sourced read model from the
// pre-existing relational tables: every row in users and api_keys becomes a
// UserUpserted or ApiKeyCreated event. Append dedupes on
// (aggregate_id, event_type, fingerprint), so re-running this command after
// new legacy rows appear only emits events for what changed.
var backfillEventsCmd = &cobra.Command{
	Use:   "backfill-events",
	Short: "Emit UserUpserted/ApiKeyCreated events for existing users and API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		store := outboxinfra.NewPostgresStore(db)
		ctx := cmd.Context()

		userCount, err := backfillUsers(ctx, db, store)
		if err != nil {
			return fmt.Errorf("backfill users: %w", err)
		}
		logx.Infof("backfilled %d UserUpserted events", userCount)

		keyCount, err := backfillAPIKeys(ctx, db, store)
		if err != nil {
			return fmt.Errorf("backfill api keys: %w", err)
		}
		logx.Infof("backfilled %d ApiKeyCreated events", keyCount)

		return nil
	},
}

type legacyUserRow struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	Role           string    `db:"role"`
	Plan           string    `db:"plan"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}

func backfillUsers(ctx context.Context, db *sqlx.DB, store outbox.Store) (int, error) {
	var rows []legacyUserRow
	if err := db.SelectContext(ctx, &rows,
		`SELECT id, organization_id, email, name, role, plan, is_active, created_at FROM users`); err != nil {
		return 0, fmt.Errorf("query users: %w", err)
	}

	n := 0
	for _, r := range rows {
		payload := map[string]any{
			"id":              r.ID,
			"organization_id": r.OrganizationID,
			"email":           r.Email,
			"name":            r.Name,
			"role":            r.Role,
			"plan":            r.Plan,
			"is_active":       r.IsActive,
			"created_at":      r.CreatedAt,
		}
		event, err := outbox.NewEvent("user:"+r.ID, "UserUpserted", payload)
		if err != nil {
			return n, fmt.Errorf("build event for user %s: %w", r.ID, err)
		}
		if err := store.Append(ctx, event, nil); err != nil {
			return n, fmt.Errorf("append event for user %s: %w", r.ID, err)
		}
		n++
	}
	return n, nil
}

type legacyAPIKeyRow struct {
	ID             string    `db:"id"`
	KeyPrefix      string    `db:"key_prefix"`
	OrganizationID string    `db:"organization_id"`
	UserID         *string   `db:"user_id"`
	Name           string    `db:"name"`
	AccessLevel    string    `db:"access_level"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}

func backfillAPIKeys(ctx context.Context, db *sqlx.DB, store outbox.Store) (int, error) {
	var rows []legacyAPIKeyRow
	if err := db.SelectContext(ctx, &rows,
		`SELECT id, key_prefix, organization_id, user_id, name, access_level, is_active, created_at FROM api_keys`); err != nil {
		return 0, fmt.Errorf("query api_keys: %w", err)
	}

	n := 0
	for _, r := range rows {
		payload := map[string]any{
			"id":              r.ID,
			"key_prefix":      r.KeyPrefix,
			"organization_id": r.OrganizationID,
			"user_id":         r.UserID,
			"name":            r.Name,
			"access_level":    r.AccessLevel,
			"is_active":       r.IsActive,
			"created_at":      r.CreatedAt,
		}
		event, err := outbox.NewEvent("apikey:"+r.ID, "ApiKeyCreated", payload)
		if err != nil {
			return n, fmt.Errorf("build event for api key %s: %w", r.ID, err)
		}
		if err := store.Append(ctx, event, nil); err != nil {
			return n, fmt.Errorf("append event for api key %s: %w", r.ID, err)
		}
		n++
	}
	return n, nil
}

func connect() (*sqlx.DB, error) {
	cfg := config.Load()
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode,
	)
	return sqlx.Connect("postgres", dsn)
}
