package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"libris/internal/catalog"
	"libris/internal/config"
	"libris/internal/journal"
	"libris/internal/lending"
	"libris/internal/reporting"
	"libris/internal/storage"
	"libris/internal/students"
	"libris/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "libris", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(ctx)

	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	catalogSvc := catalog.NewService(db)
	studentsSvc := students.NewService(db)
	lendingSvc := lending.NewService(db, journal.NewStore(db), cfg.LoanPeriod, cfg.FinePerDay)
	reportingSvc := reporting.NewService(sqlx.NewDb(db, "postgres"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		catalog.NewHandler(catalogSvc).Routes(r)
		students.NewHandler(studentsSvc).Routes(r)
		lending.NewHandler(lendingSvc).Routes(r)
		reporting.NewHandler(reportingSvc).Routes(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("starting libris API", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
