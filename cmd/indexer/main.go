package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/launchkit/campaign-indexer/internal/aggregate"
	"github.com/launchkit/campaign-indexer/internal/chain"
	"github.com/launchkit/campaign-indexer/internal/chain/ratelimit"
	"github.com/launchkit/campaign-indexer/internal/config"
	"github.com/launchkit/campaign-indexer/internal/ingest"
	"github.com/launchkit/campaign-indexer/internal/orchestrator"
	"github.com/launchkit/campaign-indexer/internal/realtime"
	"github.com/launchkit/campaign-indexer/internal/registry"
	"github.com/launchkit/campaign-indexer/internal/scan"
	"github.com/launchkit/campaign-indexer/internal/store/postgres"
	redispkg "github.com/launchkit/campaign-indexer/internal/store/redis"
	"github.com/launchkit/campaign-indexer/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting campaign-indexer",
		"chains", len(cfg.Chains),
		"server_port", cfg.Server.Port,
		"indexing_interval_ms", cfg.Indexer.IntervalMs,
	)

	chainIDs := make([]int64, 0, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		chainIDs = append(chainIDs, chainCfg.ChainID)
	}
	tracingCfg := tracing.Config{
		Insecure:    true,
		SampleRatio: cfg.Tracing.SampleRatio,
		ChainIDs:    chainIDs,
	}
	if cfg.Tracing.Enabled {
		tracingCfg.Endpoint = cfg.Tracing.OTLPEndpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), tracingCfg)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	db, err := postgres.New(postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	broker, err := redispkg.NewBroker(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer broker.Close()

	campaignRepo := postgres.NewCampaignRepo(db)
	tradeRepo := postgres.NewTradeRepo(db)
	voteRepo := postgres.NewVoteRepo(db)
	candleRepo := postgres.NewCandleRepo(db)
	voteAggRepo := postgres.NewVoteAggregateRepo(db)
	statsRepo := postgres.NewTokenStatsRepo(db)
	stateRepo := postgres.NewStateRepo(db)
	activityRepo := postgres.NewActivityRepo(db)

	publisher := realtime.NewPublisher(broker, tradeRepo, logger)
	publisher.SetFlushInterval(time.Duration(cfg.Indexer.FlushIntervalMs) * time.Millisecond)

	chainContexts := make([]*orchestrator.ChainContext, 0, len(cfg.Chains))
	for _, chainCfg := range cfg.Chains {
		limiter := ratelimit.NewLimiter(chainCfg.RateLimitRPS, chainCfg.RateLimitBurst, strconv.FormatInt(chainCfg.ChainID, 10))
		pool, err := chain.NewPool(chainCfg.ChainID, chainCfg.RPCURLs, limiter, logger)
		if err != nil {
			logger.Error("failed to build endpoint pool", "chain_id", chainCfg.ChainID, "error", err)
			os.Exit(1)
		}

		ledger := ingest.NewLedger(chainCfg.ChainID, ingest.LedgerDeps{
			Campaigns: campaignRepo,
			Trades:    tradeRepo,
			Votes:     voteRepo,
			VoteAggs:  voteAggRepo,
			Stats:     statsRepo,
			Activity:  activityRepo,
			Candles:   aggregate.NewCandles(candleRepo, publisher),
			Publisher: publisher,
		}, logger)

		chainContexts = append(chainContexts, &orchestrator.ChainContext{
			Cfg:        chainCfg,
			Pool:       pool,
			Scanner:    scan.NewScanner(chainCfg.ChainID, pool, chainCfg.ChunkSize, logger),
			Ledger:     ledger,
			Reconciler: registry.NewReconciler(chainCfg.ChainID, chainCfg.Factory, pool, campaignRepo, logger),
			Campaigns:  campaignRepo,
			State:      stateRepo,
		})
	}

	orch := orchestrator.New(chainContexts, cfg.Indexer.RewindBlocks, logger)
	scheduler := orchestrator.NewScheduler(orch,
		time.Duration(cfg.Indexer.IntervalMs)*time.Millisecond,
		time.Duration(cfg.Indexer.RepairIntervalS)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runOpsServer(gCtx, cfg.Server.Port, db, orch, logger)
	})
	g.Go(func() error {
		err := publisher.Run(gCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := scheduler.Run(gCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("indexer shut down gracefully")
}

func runOpsServer(ctx context.Context, port int, db *postgres.DB, orch *orchestrator.Orchestrator, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			logger.Warn("failed to write ready response", "error", err)
		}
	})
	mux.HandleFunc("/lagz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orch.Snapshots()); err != nil {
			logger.Warn("failed to write lag response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("ops server shutdown error", "error", err)
		}
	}()

	logger.Info("ops server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("ops server: %w", err)
	}
	return nil
}
