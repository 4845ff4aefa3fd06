// Package server wires the list server together: PostgreSQL for lists and
// items, S3 for file content, and the gRPC endpoint in front of them.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/logging"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
	"github.com/dmitrijs2005/listbuffer/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/listbuffer/internal/server/services"
	"github.com/dmitrijs2005/listbuffer/internal/server/storage"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/listbuffer/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *gs.GRPCServer
}

const healthCheckInterval = 30 * time.Second

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	s3c, err := storage.NewS3Client(ctx, c.S3)
	if err != nil {
		db.Close()
		return nil, err
	}
	blobs := storage.NewS3Store(s3c, c.S3.Bucket)
	if err := blobs.EnsureBucket(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bucket %s: %w", c.S3.Bucket, err)
	}

	if c.Auth.APIKeyHash == "" {
		logger.Warn(ctx, "no API key hash configured, every login will be rejected")
	}

	lists := services.NewListService(db, rm, blobs, c, logger)
	sessions := services.NewSessionService(c.Auth)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		server: gs.NewGRPCServer(c.ListenAddr, logger, lists, sessions),
	}, nil
}

// Run serves until ctx is cancelled or the server fails, then releases the
// database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})

	g.Go(func() error {
		app.watchDatabase(ctx, healthCheckInterval)
		return nil
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "failed to close database", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// watchDatabase logs when the database stops or resumes answering pings.
func (app *App) watchDatabase(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := app.db.PingContext(ctx)
			switch {
			case err != nil && healthy:
				app.logger.Warn(ctx, "database unreachable", "error", err)
			case err == nil && !healthy:
				app.logger.Info(ctx, "database reachable again")
			}
			healthy = err == nil
		}
	}
}
