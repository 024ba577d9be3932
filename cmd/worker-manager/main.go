// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/takeymahesh06/silaiwala/internal/common/camunda"
	"github.com/takeymahesh06/silaiwala/internal/common/config"
	"github.com/takeymahesh06/silaiwala/internal/common/database"
	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/observability"
	"github.com/takeymahesh06/silaiwala/internal/pricing"

	cpq "github.com/takeymahesh06/silaiwala/internal/workers/pricing/calculate-price-quote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL (quote history) ---
	var (
		pg      *database.PostgresClient
		history *pricing.HistoryStore
	)
	if cfg.Database.Postgres.Enabled() {
		err = database.RetryWithBackoff(func() error {
			var err error
			if pg == nil {
				if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
					return err
				}
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		history = pricing.NewHistoryStore(pg.DB)
		if err := history.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("quote history schema setup failed", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")
	} else {
		zapLog.Warn("database.postgres not configured, quotes will not be recorded")
	}

	// --- Pricing client, optionally behind Redis ---
	client := pricing.NewClient(pricing.ConfigFrom(cfg.Pricing), log, pricing.WithObservability(obs))
	var quoter pricing.Quoter = client

	var redis *database.RedisClient
	if cfg.Cache.Enabled {
		redis = database.NewRedis(cfg.Database.Redis)
		err = database.RetryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		quoter = pricing.NewCachedQuoter(client, redis.Client, config.GetDuration(cfg.Cache.TTL), log)
		zapLog.Info("Redis connected successfully")
	}

	// --- Workers ---
	opts := cpq.HandlerOptions{
		AppConfig: cfg,
		Quoter:    quoter,
		Logger:    log,
	}
	if history != nil {
		opts.History = history
	}
	handler, err := cpq.NewHandler(opts)
	if err != nil {
		zapLog.Fatal("failed to create calculate-price-quote handler", zap.Error(err))
	}

	var workers []worker.JobWorker
	if jw := camunda.StartWorker(zeebe.Zeebe(), cpq.TaskType, config.GetWorkerConfig(cfg, cpq.TaskType), handler.Handle, log); jw != nil {
		workers = append(workers, jw)
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := ready(r.Context(), zeebe, pg, redis); err != nil {
			status, code = err.Error(), http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	if history != nil {
		mux.Handle("/quotes", quotesHandler(history, log))
	}

	srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ready checks every backing service the workers need. Nil clients are
// optional dependencies that were not configured.
func ready(ctx context.Context, zeebe *camunda.Client, pg *database.PostgresClient, redis *database.RedisClient) error {
	if err := zeebe.HealthCheck(ctx); err != nil {
		return err
	}
	var deps []pinger
	if pg != nil {
		deps = append(deps, pg)
	}
	if redis != nil {
		deps = append(deps, redis)
	}
	for _, d := range deps {
		if err := d.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

type historyReader interface {
	Recent(ctx context.Context, serviceID, areaID int64, limit int) ([]pricing.HistoryRecord, error)
}

// quotesHandler serves recent quotes, optionally filtered by service_id and
// area_id query parameters.
func quotesHandler(history historyReader, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		var params [3]int64
		for i, name := range []string{"service_id", "area_id", "limit"} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid " + name})
				return
			}
			params[i] = v
		}

		records, err := history.Recent(r.Context(), params[0], params[1], int(params[2]))
		if err != nil {
			log.Error("quote history query failed", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "history unavailable"})
			return
		}
		if records == nil {
			records = []pricing.HistoryRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "quotes": records})
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
