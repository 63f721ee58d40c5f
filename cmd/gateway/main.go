package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/ielts-practice/internal/api/http"
	auth "github.com/mind-engage/ielts-practice/internal/auth/middleware"
	"github.com/mind-engage/ielts-practice/internal/config"
	"github.com/mind-engage/ielts-practice/internal/db"
	"github.com/mind-engage/ielts-practice/internal/evaluator"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/metrics"
	"github.com/mind-engage/ielts-practice/internal/progress"
	syncx "github.com/mind-engage/ielts-practice/internal/sync"
	"github.com/mind-engage/ielts-practice/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Named("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	m := metrics.New()
	events := syncx.NewEventRepo(dbh)
	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	users := auth.NewUsers(dbh)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			log.Info(ctx, "bootstrap admin created", logger.String("username", cfg.AdminUsername))
		}
	}

	opts := []exam.ServiceOption{
		exam.WithEvents(events),
		exam.WithMetrics(m),
		exam.WithLogger(logger.Named("exam")),
	}
	if cfg.LLMURL != "" {
		ev := evaluator.New(evaluator.Config{
			URL:     cfg.LLMURL,
			Model:   cfg.LLMModel,
			APIKey:  cfg.LLMAPIKey,
			Timeout: cfg.LLMTimeout,
		}, evaluator.WithMetrics(m), evaluator.WithLogger(logger.Named("evaluator")))
		opts = append(opts, exam.WithGenerator(ev), exam.WithCriteriaScorer(ev))
	} else {
		log.Warn(ctx, "llm_url not set: task generation and writing/speaking scoring disabled")
	}
	svc := exam.NewService(store, opts...)
	tracker := progress.NewTracker(store, progress.WithEvents(events))

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/register", auth.RegisterHandler(authSvc, users))
		r.Post("/auth/login", auth.LoginHandler(authSvc, users))
	}
	if cfg.EnableGuestAuth {
		r.Post("/auth/guest", auth.GuestLoginHandler(authSvc, users))
	}

	api.MountPublic(r)

	// Protected API (JWT → DB role → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(users, cfg.Mode == config.ModeOffline))
		api.MountProtected(pr, api.Deps{Service: svc, Tracker: tracker, Users: users})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(pingCtx); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening",
			logger.String("addr", cfg.HTTPAddr),
			logger.String("mode", string(cfg.Mode)),
			logger.String("db", cfg.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
