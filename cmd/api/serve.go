package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/render"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, rt.pg.Pool, logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := rt.pg.Pool
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	voteRepo := repository.NewVoteRepository(pool)
	transactor := persistence.NewTransactor(pool)

	sessions := auth.NewRedisSessionStore(redis.Client, cfg.Redis.KeyPrefix)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authorizer, err := auth.NewAuthorizer()
	if err != nil {
		return err
	}

	attachments, err := storage.NewLocalStore(cfg.Upload.Dir, int64(cfg.Upload.MaxBytes))
	if err != nil {
		return err
	}

	markdown := render.NewMarkdown()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Mailer:     service.NewMailer(cfg.Notification, logger),
		Markdown:   markdown,
		Logger:     logger,
	}).RegisterHandlers()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Sessions: sessions,
		Tokens:   tokens,
		Logger:   logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CommentRepo:  commentRepo,
		VoteRepo:     voteRepo,
		CategoryRepo: categoryRepo,
		UserRepo:     userRepo,
		Transactor:   transactor,
		Attachments:  attachments,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	categoryService := service.NewCategoryService(service.CategoryDependencies{
		CategoryRepo: categoryRepo,
		Transactor:   transactor,
		Logger:       logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo: userRepo,
		Logger:   logger,
	})

	app := httptransport.NewServer(httptransport.ServerOptions{
		AppName:        cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
		BodyLimit:      cfg.Upload.MaxBytes + 1<<20,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": rt.pg,
			"redis":    redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authService, cfg.Auth),
		Tickets:        handlers.NewTicketsHandler(ticketService, markdown),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, sessions, userRepo, cfg.Auth.CookieName),
		Authorizer:     authorizer,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()

	waitForShutdown(ctx, logger)

	return app.ShutdownWithTimeout(shutdownTimeout)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
