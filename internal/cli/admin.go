package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/TWLS151/Soootudy-sub000/internal/auth"
	"github.com/TWLS151/Soootudy-sub000/internal/config"
	"github.com/TWLS151/Soootudy-sub000/internal/model"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
}

type sqlMigrator struct{ db *sql.DB }

func (m sqlMigrator) Up() error   { return store.ApplyMigrations(m.db) }
func (m sqlMigrator) Down() error { return store.RollbackMigrations(m.db) }
func (m sqlMigrator) Version() (uint, bool, error) {
	return store.MigrationVersion(m.db)
}

func openMigrator(ctx context.Context, cfg config.Config) (migrator, func(), error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions(cfg.DBPool))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return sqlMigrator{db: db}, func() { _ = db.Close() }, nil
}

func migrateCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect the comment schema",
		Example: heredoc.Doc(`
			$ annotate migrate
			$ annotate migrate --status
			$ annotate migrate --down
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			down, _ := cmd.Flags().GetBool("down")
			status, _ := cmd.Flags().GetBool("status")
			if down && status {
				return fmt.Errorf("--down and --status are mutually exclusive")
			}

			m, release, err := d.migrate(cmd.Context(), d.config())
			if err != nil {
				return err
			}
			defer release()

			switch {
			case status:
			case down:
				if err := m.Down(); err != nil {
					return fmt.Errorf("rolling back migrations: %w", err)
				}
			default:
				if err := m.Up(); err != nil {
					return fmt.Errorf("applying migrations: %w", err)
				}
			}

			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	cmd.Flags().Bool("down", false, "Roll back every migration")
	cmd.Flags().Bool("status", false, "Only print the current schema version")
	return cmd
}

func tokenCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		Example: heredoc.Doc(`
			$ annotate token --user-id 7f1c --username alice --ttl 1h
		`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			username, _ := cmd.Flags().GetString("username")
			avatar, _ := cmd.Flags().GetString("avatar")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive")
			}

			cfg := d.config()
			token, err := auth.IssueFor([]byte(cfg.JWTSecret), model.Author{
				UserID:    userID,
				Username:  username,
				AvatarURL: avatar,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user-id", "", "Subject of the token")
	cmd.Flags().String("username", "", "Github handle of the user")
	cmd.Flags().String("avatar", "", "Avatar URL")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
