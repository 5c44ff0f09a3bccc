// Package cli is the operator command line for the annotation service.
package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/TWLS151/Soootudy-sub000/internal/artifact"
	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/commentclient"
	"github.com/TWLS151/Soootudy-sub000/internal/config"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/realtime"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

// deps opens the collaborators a command needs. Each opener returns a
// release func that must be called when the command is done.
type deps struct {
	config  func() config.Config
	backend func(ctx context.Context, cfg config.Config, logger logging.Logger, live bool) (commentclient.Backend, func(), error)
	source  func(cfg config.Config) (artifact.Source, error)
	migrate func(ctx context.Context, cfg config.Config) (migrator, func(), error)
}

func defaultDeps() deps {
	return deps{
		config:  config.Load,
		backend: openBackend,
		source:  openSource,
		migrate: openMigrator,
	}
}

// New returns the root command.
func New() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Inspect and maintain line-anchored code review comments",
		Example: heredoc.Doc(`
			$ annotate export --artifact jsc/26-02-w1/swea-2005
			$ annotate layout --artifact jsc/26-02-w1/swea-2005 --viewport-width 640
			$ annotate watch --artifact jsc/26-02-w1/swea-2005
			$ annotate migrate
		`),
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("log-level", "", "Log level (overrides ANNOTATE_LOG_LEVEL)")

	cmd.AddCommand(
		exportCmd(d),
		layoutCmd(d),
		watchCmd(d),
		migrateCmd(d),
		tokenCmd(d),
	)
	return cmd
}

func loggerFor(cmd *cobra.Command, cfg config.Config) logging.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	return logging.NewWithWriter(level, cmd.ErrOrStderr())
}

// openBackend connects to Postgres and, when live, to the Redis change feed.
func openBackend(ctx context.Context, cfg config.Config, logger logging.Logger, live bool) (commentclient.Backend, func(), error) {
	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions(cfg.DBPool))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	var feed *realtime.Feed
	if live {
		feed, err = realtime.NewFeed(cfg.RedisURL, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	release := func() {
		if feed != nil {
			_ = feed.Close()
		}
		_ = db.Close()
	}
	return backend.New(store.NewPostgresStore(db), feed, logger), release, nil
}

func openSource(cfg config.Config) (artifact.Source, error) {
	return artifact.Configure(artifact.Options{
		RepoDir:   cfg.SourceRepoDir,
		Branch:    cfg.SourceBranch,
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
}
