package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/NERVsystems/osmreach/pkg/cache"
	"github.com/NERVsystems/osmreach/pkg/core"
	"github.com/NERVsystems/osmreach/pkg/engine"
	"github.com/NERVsystems/osmreach/pkg/monitoring"
	"github.com/NERVsystems/osmreach/pkg/osm"
	"github.com/NERVsystems/osmreach/pkg/roadnet"
	"github.com/NERVsystems/osmreach/pkg/server"
	"github.com/NERVsystems/osmreach/pkg/tools"
	"github.com/NERVsystems/osmreach/pkg/tracing"
	ver "github.com/NERVsystems/osmreach/pkg/version"
)

const shutdownTimeout = 30 * time.Second

var (
	showVersionFlag bool
	debug           bool

	// Input flags
	input     string
	cacheDir  string
	buildOnly bool
	roadTag   string

	// Transport flags
	httpAddr       string
	httpBaseURL    string
	enableStdio    bool
	authToken      string
	rateLimit      float64
	rateBurst      int
	streamBuffer   int
	allowedOrigins []string
	tlsCert        string
	tlsKey         string

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Engine flags
	workers         int
	maxDepth        int
	maxCandidates   int
	maxConcurrent   int64
	queryTimeout    time.Duration
	resultCacheSize int
	resultCacheTTL  time.Duration
)

func init() {
	limits := engine.DefaultLimits()
	transport := server.DefaultHTTPTransportConfig()

	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")

	flag.StringVar(&input, "input", "", "OSM extract to load, .pbf or Overpass .json (env OSMREACH_INPUT)")
	flag.StringVar(&cacheDir, "cache-dir", "", "Directory for the binary cache artifact (default: next to the input)")
	flag.BoolVar(&buildOnly, "build-only", false, "Build the cache artifact and exit")
	flag.StringVar(&roadTag, "road-tag", "highway", "Tag key that marks a way as a road")

	flag.StringVar(&httpAddr, "http-addr", transport.Addr, "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for service discovery (auto-detected if empty)")
	flag.BoolVar(&enableStdio, "enable-stdio", false, "Also serve MCP over stdin/stdout")
	flag.StringVar(&authToken, "auth-token", "", "Bearer token required on query routes (empty disables auth)")
	flag.Float64Var(&rateLimit, "rate-limit", transport.RateLimit, "Requests per second per client IP, 0 disables")
	flag.IntVar(&rateBurst, "rate-burst", transport.RateBurst, "Rate limiter burst size")
	flag.IntVar(&streamBuffer, "stream-buffer", transport.StreamBuffer, "Levels buffered per WebSocket session")
	flag.StringSliceVar(&allowedOrigins, "allowed-origins", nil, "WebSocket origins to accept, \"*\" for any (default: same host)")
	flag.StringVar(&tlsCert, "tls-cert", "", "TLS certificate file")
	flag.StringVar(&tlsKey, "tls-key", "", "TLS key file")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health tracking")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	flag.IntVar(&workers, "workers", 0, "Goroutines per pool scan (default GOMAXPROCS)")
	flag.IntVar(&maxDepth, "max-depth", limits.MaxDepth, "Deepest query accepted, 0 for no limit")
	flag.IntVar(&maxCandidates, "max-candidates", limits.MaxCandidates, "Largest candidate pool accepted, 0 for no limit")
	flag.Int64Var(&maxConcurrent, "max-concurrent", limits.MaxConcurrentQueries, "Resolutions running at once")
	flag.DurationVar(&queryTimeout, "query-timeout", limits.QueryTimeout, "Time limit for one resolution, 0 for none")
	flag.IntVar(&resultCacheSize, "result-cache-size", 256, "Batch results kept in memory, 0 disables")
	flag.DurationVar(&resultCacheTTL, "result-cache-ttl", 10*time.Minute, "Lifetime of a cached result")
}

func main() {
	loadEnvFiles(".env", ".env.local")
	flag.Parse()

	if !flag.CommandLine.Changed("input") {
		if env := os.Getenv("OSMREACH_INPUT"); env != "" {
			input = env
		}
	}

	// Configure logging
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if input == "" {
		return core.NewValidationError(core.ErrMissingParameter, "no input extract given").
			WithGuidance("Pass --input or set OSMREACH_INPUT")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting osmreach",
		"version", ver.BuildVersion,
		"debug", debug,
		"input", input,
		"cache_dir", cacheDir,
		"road_tag", roadTag,
		"http_addr", httpAddr,
		"stdio_enabled", enableStdio,
		"monitoring_enabled", enableMonitoring)

	osm.SetMonitoringHooks(&osm.MonitoringHooks{
		OnScan: monitoring.RecordIngestPass,
		OnError: func(format, errorType string) {
			monitoring.RecordError("ingest_"+format, errorType)
		},
	})

	store, err := loadStore(ctx, logger)
	if err != nil {
		return err
	}
	monitoring.UpdateStoreSize(store.RoadCount(), store.NodeCount())

	if buildOnly {
		logger.Info("cache artifact ready", "path", cache.ArtifactPath(input, cacheDir))
		return nil
	}

	eng := engine.New(store,
		engine.WithLimits(engine.Limits{
			MaxDepth:             maxDepth,
			MaxCandidates:        maxCandidates,
			MaxConcurrentQueries: maxConcurrent,
			QueryTimeout:         queryTimeout,
		}),
		engine.WithWorkers(workers),
		engine.WithResultCache(cache.NewResultCache[*engine.Result](resultCacheSize, resultCacheTTL)),
		engine.WithLogger(logger),
	)

	s := server.NewServer(tools.NewRegistry(logger, eng), logger)

	config := server.DefaultHTTPTransportConfig()
	config.Addr = httpAddr
	config.BaseURL = httpBaseURL
	config.AuthToken = authToken
	config.RateLimit = rateLimit
	config.RateBurst = rateBurst
	config.StreamBuffer = streamBuffer
	config.AllowedOrigins = allowedOrigins
	config.TLSCertFile = tlsCert
	config.TLSKeyFile = tlsKey

	httpTransport := server.NewHTTPTransport(eng, s.GetMCPServer(), config, logger)

	if enableMonitoring {
		healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
		httpTransport.SetHealthChecker(healthChecker)

		monitor := startHealthMonitoring(healthChecker, store)
		defer monitor.Stop()

		metricsServer := startMetricsServer(logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		if err := httpTransport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	if enableStdio {
		go func() {
			logger.Info("transport_enabled", "type", "stdio", "mode", "background")
			if err := s.RunWithContext(ctx); err != nil {
				logger.Error("stdio transport error", "error", err)
			}
		}()
	}

	logger.Info("server_ready", "roads", store.RoadCount(), "nodes", store.NodeCount())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errc:
		logger.Error("HTTP transport error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpTransport.Shutdown(shutdownCtx); serr != nil {
		logger.Error("failed to shutdown HTTP transport", "error", serr)
	}
	s.Shutdown()

	logger.Info("server stopped")
	return err
}

// loadStore decodes the cache artifact for input, building and publishing it
// from the raw extract when it does not exist yet
func loadStore(ctx context.Context, logger *slog.Logger) (*roadnet.Store, error) {
	build := func(ctx context.Context) (*roadnet.Store, error) {
		feed, err := osm.Open(input)
		if err != nil {
			return nil, core.NewError(core.ErrIngest, "cannot open input").Wrap(err)
		}
		return roadnet.NewBuilder(feed,
			roadnet.WithPredicate(roadnet.HasTag(roadTag)),
			roadnet.WithLogger(logger),
		).Build(ctx)
	}

	start := time.Now()
	store, err := cache.LoadOrBuild(ctx, input, build,
		cache.WithDir(cacheDir),
		cache.WithBuildKey("road-tag="+roadTag),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("loading road network: %w", err)
	}

	logger.Info("road network loaded",
		"roads", store.RoadCount(),
		"nodes", store.NodeCount(),
		"duration", time.Since(start))
	return store, nil
}

// startHealthMonitoring registers the store and keeps checking that the
// cache artifact is still in place
func startHealthMonitoring(hc *monitoring.HealthChecker, store *roadnet.Store) *monitoring.ConnectionMonitor {
	hc.UpdateConnection("store", monitoring.StatusConnected, 0, nil)
	hc.SetInfo("roads", store.RoadCount())
	hc.SetInfo("nodes", store.NodeCount())
	hc.SetInfo("input", input)

	monitor := monitoring.NewConnectionMonitor(
		"cache_artifact",
		hc,
		func() error {
			return cache.ArtifactExists(input, cacheDir)
		},
		monitoring.StatusDegraded,
		time.Minute,
	)
	monitor.Start()
	return monitor
}

// startMetricsServer serves Prometheus metrics on monitoringAddr
func startMetricsServer(logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              monitoringAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()
	return srv
}

// loadEnvFiles loads each env file that exists. Variables already set in the
// environment win.
func loadEnvFiles(files ...string) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", f, err)
		}
	}
}
