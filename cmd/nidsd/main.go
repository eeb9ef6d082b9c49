package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/cfg"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/dashboard"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/drift"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/metrics"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/model"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/respond"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/serve"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/stream"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	learner, snapshots := initializeLearner(c)

	extractor := features.NewExtractor(features.ExtractorConfig{
		RateWindow: c.Features.RateWindow,
		PortSize:   c.Features.PortSize,
		FlagSize:   c.Features.FlagSize,
		IdleTTL:    c.Features.IdleTTL,
	})

	tracker := respond.NewTracker(c.Alerts.TTL, c.Alerts.Cooldown)
	defer tracker.Stop()
	responder := respond.NewResponder(tracker, mw, func(alert respond.Alert) {
		log.Warn().
			Str("id", alert.ID).
			Str("source", alert.Source).
			Str("dest", alert.Dest).
			Int("dst_port", alert.DstPort).
			Msg("intrusion alert raised")
	})

	sensor := stream.NewClient(c.Sensor.URL, c.Sensor.Key, c.Sensor.Secret, c.Sensor.Ping, mw)

	service := serve.NewService(learner, extractor, serve.Options{
		Store:     store,
		Metrics:   m,
		Responder: responder,
		Snapshots: snapshots,
		Ingest:    sensor.Stats,
	})

	flows := make(chan features.FlowRecord, 256)
	errs := make(chan error, 32)

	startMetricsServer(ctx, c, m)
	startSensor(ctx, sensor, flows, errs)

	var wg sync.WaitGroup
	startErrorHandler(ctx, &wg, errs, m)
	startFlowHandler(ctx, &wg, flows, service, mw)
	startSnapshotter(ctx, &wg, service, snapshots, c.System.SnapshotInterval)

	api := serve.NewServer(service, c.Server.ListenAddr, c.Sensor.Key, c.Sensor.Secret)
	go func() {
		if err := api.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	board := dashboard.New(service, c.Server.DashboardPort)
	if err := board.Start(); err != nil {
		log.Error().Err(err).Msg("dashboard start failed")
	}

	waitForShutdown(ctx, cancel, &wg)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	if err := board.Stop(); err != nil {
		log.Error().Err(err).Msg("dashboard shutdown failed")
	}
}

// initializeStorage opens the flow store when DATA_PATH is configured. The
// daemon runs without persistence rather than refusing to start.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.System.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.System.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// initializeLearner builds the online classifier and warm-starts it from the
// latest snapshot when one exists.
func initializeLearner(c cfg.Settings) (*boost.Classifier, *model.Manager) {
	var monitors boost.MonitorFactory
	if c.Learner.DetectDrift {
		delta := c.Learner.DriftDelta
		monitors = func() boost.DriftMonitor { return drift.New(delta) }
	}

	learner, err := boost.New(c.Learner.BoostConfig(), gbt.NewEngine(), monitors)
	if err != nil {
		log.Fatal().Err(err).Msg("learner initialization failed")
	}

	snapshots, err := model.NewManager(c.System.ModelDir, c.System.SnapshotRetention)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot manager unavailable, continuing without model persistence")
		return learner, nil
	}

	snap, err := snapshots.LoadLatest()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load latest snapshot, starting cold")
		return learner, snapshots
	}
	if snap != nil {
		if err := learner.Restore(snap.Members(), snap.Status.FeatureDim); err != nil {
			log.Warn().Err(err).Str("version", snap.Version).Msg("snapshot restore failed, starting cold")
		} else {
			log.Info().
				Str("version", snap.Version).
				Int("members", len(snap.Trees)).
				Msg("restored ensemble from snapshot")
		}
	}
	return learner, snapshots
}

// startMetricsServer exposes Prometheus metrics and a liveness endpoint.
func startMetricsServer(ctx context.Context, c cfg.Settings, m *metrics.Metrics) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startSensor runs the WebSocket ingest loop.
func startSensor(ctx context.Context, sensor *stream.Client, flows chan features.FlowRecord, errs chan error) {
	go func() {
		if err := sensor.Stream(ctx, flows, errs); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("sensor stream ended")
			select {
			case errs <- err:
			default:
			}
		}
	}()
}

// startErrorHandler drains background errors into the log and error counter.
func startErrorHandler(ctx context.Context, wg *sync.WaitGroup, errs chan error, m *metrics.Metrics) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				log.Error().Err(err).Msg("background error")
				m.ErrorsTotal.Inc()
			}
		}
	}()
}

// startFlowHandler feeds ingested flows through the detection pipeline.
func startFlowHandler(ctx context.Context, wg *sync.WaitGroup, flows chan features.FlowRecord, service *serve.Service, mw *metrics.Wrapper) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case flow := <-flows:
				mw.FlowsIngested().Inc()
				if _, err := service.HandleFlow(flow); err != nil {
					log.Error().Err(err).Str("source", flow.SrcAddr).Msg("flow handling failed")
				}
			}
		}
	}()
}

// startSnapshotter persists the ensemble on a fixed interval so restarts
// resume from a recent model.
func startSnapshotter(ctx context.Context, wg *sync.WaitGroup, service *serve.Service, snapshots *model.Manager, interval time.Duration) {
	if snapshots == nil || interval <= 0 {
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// Final snapshot on the way out.
				if snap, err := service.Snapshot(); err != nil {
					log.Warn().Err(err).Msg("final snapshot failed")
				} else {
					log.Info().Str("version", snap.Version).Msg("final snapshot saved")
				}
				return
			case <-ticker.C:
				snap, err := service.Snapshot()
				if err != nil {
					log.Warn().Err(err).Msg("periodic snapshot failed")
					continue
				}
				log.Debug().Str("version", snap.Version).Int("trees", len(snap.Trees)).Msg("snapshot saved")
			}
		}
	}()
}

// waitForShutdown blocks until a signal or cancellation, then waits for the
// worker goroutines with a timeout.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
