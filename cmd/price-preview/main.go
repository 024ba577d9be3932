// cmd/price-preview/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/takeymahesh06/silaiwala/internal/common/config"
	"github.com/takeymahesh06/silaiwala/internal/common/database"
	"github.com/takeymahesh06/silaiwala/internal/common/errors"
	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/observability"
	"github.com/takeymahesh06/silaiwala/internal/pricing"
	"github.com/takeymahesh06/silaiwala/internal/preview"
)

// price-preview reads booking form snapshots as JSON lines on stdin and
// prints the rendered price preview every time it changes.
func main() {
	configPath := flag.String("config", "", "path to a config file (default: configs/config.yaml)")
	catalog := flag.Bool("catalog", false, "print pricing factors and service areas, then exit")
	serviceID := flag.Int64("service", 0, "with -catalog, also print the per-area pricing of this service")
	analytics := flag.Bool("analytics", false, "with -catalog, also print pricing analytics")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the preview; logs go to stderr.
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New("price-preview", log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := pricing.NewClient(pricing.ConfigFrom(cfg.Pricing), log, pricing.WithObservability(obs))

	if *catalog {
		if err := printCatalog(ctx, client, os.Stdout, *serviceID, *analytics); err != nil {
			zapLog.Fatal("catalogue fetch failed", zap.Error(err))
		}
		return
	}

	var quoter pricing.Quoter = client
	if cfg.Cache.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		err := database.RetryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 5, 500*time.Millisecond, log, "Redis connection")
		if err != nil {
			log.Warn("quote cache disabled", map[string]interface{}{
				"error": errors.NewQuoteCacheFailedError(err).Error(),
			})
		} else {
			defer rdb.Close()
			quoter = pricing.NewCachedQuoter(client, rdb.Client, config.GetDuration(cfg.Cache.TTL), log)
		}
	}

	go serveMetrics(cfg.Metrics.Address, zapLog)

	settleWait := config.GetDuration(cfg.Pricing.Debounce) + config.GetDuration(cfg.Pricing.Timeout) + time.Second
	err = run(ctx, quoter, os.Stdin, os.Stdout, settleWait,
		preview.WithDebounce(config.GetDuration(cfg.Pricing.Debounce)),
		preview.WithLogger(log),
		preview.WithObservability(obs),
	)
	if err != nil {
		zapLog.Fatal("price preview failed", zap.Error(err))
	}
}

// run feeds every form line into a preview controller and writes each
// distinct rendering to out. At end of input it waits up to settleWait for
// the last quote.
func run(ctx context.Context, quoter pricing.Quoter, in io.Reader, out io.Writer, settleWait time.Duration, opts ...preview.Option) error {
	ctrl := preview.NewController(quoter, opts...)
	defer ctrl.Close()

	var (
		mu      sync.Mutex
		last    string
		stopped bool
	)
	show := func(s preview.State) {
		line := preview.Render(s)
		mu.Lock()
		defer mu.Unlock()
		if stopped || line == last {
			return
		}
		last = line
		fmt.Fprintln(out, line)
	}
	unsubscribe := ctrl.Subscribe(show)
	defer func() {
		unsubscribe()
		mu.Lock()
		stopped = true
		mu.Unlock()
	}()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read form input: %w", err)
				}
				waitSettled(ctx, ctrl, settleWait)
				// The listener may not have run yet for the final state.
				show(ctrl.State())
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var form pricing.FormFields
			if err := json.Unmarshal([]byte(line), &form); err != nil {
				return fmt.Errorf("decode form line: %w", err)
			}
			sel, err := pricing.SelectionFromForm(form)
			if err != nil {
				// Same as the form: an invalid control shows no price.
				ctrl.Update(pricing.Selection{})
				continue
			}
			ctrl.Update(sel)
		}
	}
}

func waitSettled(ctx context.Context, ctrl *preview.Controller, limit time.Duration) {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for !ctrl.Settled() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

func printCatalog(ctx context.Context, client *pricing.Client, out io.Writer, serviceID int64, withAnalytics bool) error {
	factors, err := client.PricingFactors(ctx)
	if err != nil {
		return err
	}
	areas, err := client.PricingAreas(ctx)
	if err != nil {
		return err
	}
	doc := map[string]interface{}{
		"factors": factors,
		"areas":   areas,
	}

	if serviceID > 0 {
		sp, err := client.ServicePricing(ctx, serviceID)
		if err != nil {
			return err
		}
		doc["service_pricing"] = sp
	}
	if withAnalytics {
		a, err := client.PricingAnalytics(ctx)
		if err != nil {
			return err
		}
		doc["analytics"] = a
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("Health/Metrics server listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("Health/Metrics server failed", zap.Error(err))
	}
}
