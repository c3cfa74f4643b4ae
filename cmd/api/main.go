package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"librarycatalog/internal/book"
	"librarycatalog/internal/config"
	"librarycatalog/internal/httpx"
	"librarycatalog/internal/platform/logging"
	"librarycatalog/internal/platform/openlibrary"
	"librarycatalog/internal/platform/postgres"
)

func main() {
	cfg := config.Load()

	log := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("cannot open database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("database connection OK")

	olClient := openlibrary.NewClient(openlibrary.Config{
		BaseURL:    cfg.OpenLibraryBaseURL,
		UserAgent:  cfg.OpenLibraryUserAgent,
		Timeout:    cfg.OpenLibraryTimeout,
		MaxRetries: cfg.OpenLibraryMaxRetries,
		RPS:        cfg.OpenLibraryRPS,
	})
	defer olClient.Close()

	bookRepo := book.NewPostgresRepo(pool)
	txManager := postgres.NewTxManager(pool)
	bookService := book.NewService(bookRepo, olClient, txManager, log)
	bookHandler := book.NewHTTPHandler(bookService)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(log, cfg, pool, bookHandler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func newRouter(log *zap.Logger, cfg config.Config, pool *pgxpool.Pool, books *book.HTTPHandler) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", readyHandler(pool))

	router.HandleFunc("POST /books", books.Create)
	router.HandleFunc("GET /books", books.List)
	router.HandleFunc("GET /books/{id}", books.GetByID)
	router.HandleFunc("PUT /books/{id}", books.Update)
	router.HandleFunc("DELETE /books/{id}", books.Delete)
	router.HandleFunc("POST /books/{id}/checkout", books.Checkout)
	router.HandleFunc("POST /books/{id}/return", books.Return)

	var handler http.Handler = router
	handler = httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes)(handler)
	handler = httpx.CORSMiddleware(cfg.CORSAllowedOrigins)(handler)
	handler = httpx.SecurityHeadersMiddleware(handler)
	handler = httpx.RecoveryMiddleware(log)(handler)
	handler = httpx.AccessLogMiddleware(log)(handler)
	handler = httpx.RequestIDMiddleware(handler)
	return handler
}

// readyHandler reports storage connectivity as a string status rather
// than failing hard; orchestrators decide what to do with it.
func readyHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		status := "ready"
		code := http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			status = "database unavailable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
