package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mserranom/lean-ci-sub000/internal/config"
	"github.com/mserranom/lean-ci-sub000/internal/handler"
	"github.com/mserranom/lean-ci-sub000/internal/repository"
	"github.com/mserranom/lean-ci-sub000/internal/repository/inmem"
	"github.com/mserranom/lean-ci-sub000/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	users     service.UserStore
	repos     service.RepositoryStore
	jobs      service.JobStore
	pipelines service.PipelineStore
	snapshots service.GraphSnapshotStore
}

func openStores(cfg config.Config) (stores, func(), error) {
	if cfg.StorageDriver == "memory" {
		slog.Info("using in-memory storage")
		return stores{
			users:     inmem.NewUserStore(),
			repos:     inmem.NewRepositoryStore(),
			jobs:      inmem.NewJobStore(),
			pipelines: inmem.NewPipelineStore(),
			snapshots: inmem.NewGraphSnapshotStore(),
		}, func() {}, nil
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, fmt.Errorf("connect database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected")
	return stores{
		users:     repository.NewUserRepository(db),
		repos:     repository.NewRepositoryRepository(db),
		jobs:      repository.NewJobRepository(db),
		pipelines: repository.NewPipelineRepository(db),
		snapshots: repository.NewGraphSnapshotRepository(db),
	}, func() { db.Close() }, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	authSvc := service.NewAuthService(st.users, service.AuthConfig{
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		BaseURL:            cfg.BaseURL,
	})
	resolver := service.NewGitHubResolver(cfg.GitHubToken)
	graphSvc := service.NewDependencyGraphService(st.repos, st.snapshots, resolver)
	orchestrator := service.NewPipelineOrchestrator(st.repos, st.jobs, st.pipelines, st.snapshots)
	queue := service.NewBuildAdmissionQueue(st.jobs)

	authHandler := handler.NewAuthHandler(authSvc)
	repoHandler := handler.NewRepositoryHandler(graphSvc)
	buildHandler := handler.NewBuildHandler(orchestrator, queue)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(middleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return handler.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.GET("/github", authHandler.GitHubRedirect)
	auth.GET("/github/callback", authHandler.GitHubCallback)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := api.Group("", handler.JWTAuth(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.POST("/repositories", repoHandler.Register)
	protected.GET("/repositories", repoHandler.List)
	protected.DELETE("/repositories", repoHandler.Delete)
	protected.POST("/repositories/sync", repoHandler.Sync)
	protected.GET("/graph", repoHandler.Graph)

	protected.POST("/builds", buildHandler.Request)
	protected.GET("/builds", buildHandler.ListBuilds)
	protected.GET("/builds/next", buildHandler.DequeueNext)
	protected.PATCH("/jobs/:id", buildHandler.UpdateJobStatus)
	protected.GET("/pipelines", buildHandler.ListPipelines)
	protected.GET("/pipelines/:id", buildHandler.GetPipeline)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DispatcherEnabled {
		agent := service.NewHTTPBuildAgent(cfg.BuildAgentURL)
		dispatcher := service.NewDispatcher(queue, orchestrator, st.users, agent, cfg.DispatcherInterval)
		go func() {
			if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
				slog.Error("dispatcher exited", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
