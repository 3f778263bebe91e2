package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Suraj-B12/HLS-Monitor/internal/api"
	"github.com/Suraj-B12/HLS-Monitor/internal/monitor"
	"github.com/Suraj-B12/HLS-Monitor/internal/monitor/analysis"
	"github.com/Suraj-B12/HLS-Monitor/internal/monitor/playlist"
	"github.com/Suraj-B12/HLS-Monitor/internal/platform/config"
	"github.com/Suraj-B12/HLS-Monitor/internal/platform/logger"
	"github.com/Suraj-B12/HLS-Monitor/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	pollInterval := config.GetEnvDuration("POLL_INTERVAL", monitor.DefaultPollInterval)
	fetchTimeout := config.GetEnvDuration("FETCH_TIMEOUT", monitor.DefaultFetchTimeout)
	errorRetention := config.GetEnvDuration("ERROR_RETENTION", monitor.DefaultErrorRetention)
	maxAnalysisJobs := config.GetEnvInt("MAX_ANALYSIS_JOBS", monitor.DefaultMaxAnalysisJobs)
	useRealTool := config.GetEnv("ANALYSIS_TOOL", "ffmpeg") == "ffmpeg"

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	streams := monitor.NewInMemoryStreamStore()
	metricsStore := monitor.NewInMemoryMetricsStore()
	events := monitor.NewInMemoryEventBus()
	pollCache := monitor.NewPollCache()
	historian := &monitor.Historian{Store: metricsStore, Log: log}

	var analysisTool analysis.Tool
	if useRealTool {
		analysisTool = analysis.NewCommandLineTool()
	} else {
		analysisTool = &analysis.FakeTool{}
	}

	pipeline, err := analysis.NewPipeline(analysisTool, streams, events, log, monitor.SystemClock, maxAnalysisJobs)
	if err != nil {
		log.Error("create analysis pipeline failed", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()
	pipeline.OnGaugeUpdates(
		func(n int64) { met.SetPipelineQueueDepth(n) },
		func(n int64) { met.SetPipelineInFlight(n) },
	)

	evaluator := &monitor.Evaluator{
		Fetcher:        playlist.NewFetcher(fetchTimeout),
		PollCache:      pollCache,
		Streams:        streams,
		Historian:      historian,
		Events:         events,
		Analysis:       pipeline,
		Log:            log,
		Clock:          monitor.SystemClock,
		ErrorRetention: errorRetention,
		OnErrorAppended: func() { met.IncErrorsAppended() },
	}

	scheduler := &monitor.Scheduler{
		Streams:      streams,
		Evaluator:    evaluator,
		Log:          log,
		PollInterval: pollInterval,
		OnSweepDuration: func(d time.Duration) { met.ObserveSweepDuration(d.Seconds()) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx)

	h := api.NewHandler(streams, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/healthz", h.Healthz)
	r.Get("/streams", h.ListStreams)
	r.Get("/streams/{stream_id}", h.GetStream)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			recs, err := streams.ListStreams()
			if err == nil {
				met.SetActiveStreams(len(recs))
				for _, rec := range recs {
					met.SetStreamHealthScore(string(rec.ID), monitor.HealthScoreRounded(rec, nil, 1))
				}
			}
		}).ServeHTTP(w, r)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("monitor starting",
		"port", port,
		"poll_interval", pollInterval.String(),
		"max_analysis_jobs", maxAnalysisJobs,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("monitor stopped")
}
