package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "pollhub/docs"
	"pollhub/internal/config"
	"pollhub/internal/domain/poll"
	"pollhub/internal/domain/user"
	api "pollhub/internal/http"
	"pollhub/internal/metrics"
	"pollhub/internal/platform/clock"
	"pollhub/internal/platform/database"
	jwtpkg "pollhub/internal/platform/jwt"
	"pollhub/internal/repository/postgres"
	"pollhub/internal/worker"
)

// @title           Pollhub API
// @version         1.0
// @description     Multi-user polling service with JWT auth
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	metrics.Register()

	db, err := database.NewPostgres(cfg.DB_DSN)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("db migrate failed", "err", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepo(db)
	pollRepo := postgres.NewPollRepo(db)
	voteRepo := postgres.NewVoteRepo(db)

	userSvc := user.NewService(userRepo, pollRepo, voteRepo)
	pollSvc := poll.NewService(pollRepo, voteRepo, userRepo, clock.System())

	jwtMgr := jwtpkg.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	voteCh := make(chan worker.VoteEvent, 100)
	statsWorker := worker.NewStatsWorker(voteCh)

	router := api.NewRouter(userSvc, pollSvc, jwtMgr, voteCh, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go statsWorker.Run(ctx)

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
