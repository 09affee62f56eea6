// Package main runs the full trade engine: every pipeline stage on its
// own schedule, gated by the shared engine state, with an HTTP control
// surface for the dashboard (status, start/pause/stop, metrics).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/allocator"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/brains"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/buyer"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/collector"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/config"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/evaluator"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fees"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/fulfillment"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/governor"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/hunter"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/jobs"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/ledger"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/marketplace"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/merchant"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/observability"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/reprice"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/risk"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage"
	chstore "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/clickhouse"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/memory"
	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/migrations"
	pgstore "github.com/mrterryt40/yahuti-trade-engine-sub000/internal/storage/postgres"
)

// Server holds all components of the engine process.
type Server struct {
	cfg      *config.Config
	stores   *allStores
	registry *jobs.Registry
	metrics  *observability.Metrics
	logger   *log.Logger

	mu       sync.Mutex
	started  time.Time
	lastRun  map[string]time.Time
	runCount map[string]int
}

// allStores holds all storage implementations.
type allStores struct {
	candidateStore   storage.CandidateStore
	inventoryStore   storage.InventoryStore
	listingStore     storage.ListingStore
	transactionStore storage.TransactionStore
	experimentStore  storage.ExperimentStore
	alertStore       storage.AlertStore
	supplierStore    storage.SupplierStore
	ledgerStore      storage.LedgerStore
	controlStore     storage.ControlStore
	budgetStore      storage.BudgetStore
}

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *useMemory {
		// Applied before Load so validation does not demand a DSN.
		os.Setenv("ENGINE_USE_MEMORY", "true")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics(cfg.Telemetry.MetricsNamespace)

	server := &Server{
		cfg:      cfg,
		stores:   stores,
		registry: buildRegistry(cfg, stores),
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
		lastRun:  make(map[string]time.Time),
		runCount: make(map[string]int),
	}

	if cfg.Engine.AutoStart {
		if err := stores.controlStore.SetEngineState(ctx, domain.EngineRunning); err != nil {
			logger.Fatalf("Failed to auto-start engine: %v", err)
		}
		logger.Println("Engine auto-started")
	}
	server.syncEngineStateMetric(ctx)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(fmt.Sprintf(":%d", cfg.App.HTTPPort))

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		stores := &allStores{
			candidateStore:   memory.NewCandidateStore(),
			inventoryStore:   memory.NewInventoryStore(),
			listingStore:     memory.NewListingStore(),
			transactionStore: memory.NewTransactionStore(),
			experimentStore:  memory.NewExperimentStore(),
			alertStore:       memory.NewAlertStore(),
			supplierStore:    memory.NewSupplierStore(),
			ledgerStore:      memory.NewLedgerStore(),
			controlStore:     memory.NewControlStore(),
			budgetStore:      memory.NewBudgetStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	var ledgerStore storage.LedgerStore
	cleanup := func() { pool.Close() }
	if cfg.Storage.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		ledgerStore = chstore.NewLedgerStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	} else {
		// No ClickHouse configured: keep the audit trail in memory so a
		// partial deployment still produces ledger-driven behavior.
		ledgerStore = memory.NewLedgerStore()
	}

	stores := &allStores{
		candidateStore:   pgstore.NewCandidateStore(pool),
		inventoryStore:   pgstore.NewInventoryStore(pool),
		listingStore:     pgstore.NewListingStore(pool),
		transactionStore: pgstore.NewTransactionStore(pool),
		experimentStore:  pgstore.NewExperimentStore(pool),
		alertStore:       pgstore.NewAlertStore(pool),
		supplierStore:    pgstore.NewSupplierStore(pool),
		ledgerStore:      ledgerStore,
		controlStore:     pgstore.NewControlStore(pool),
		budgetStore:      pgstore.NewBudgetStore(pool),
	}

	return stores, cleanup, nil
}

// buildRegistry wires every pipeline stage and registers its job handler.
func buildRegistry(cfg *config.Config, stores *allStores) *jobs.Registry {
	ledgerWriter := ledger.NewWriter(stores.ledgerStore, nil)
	calc := fees.NewCalculator()
	monitor := risk.NewMonitor()

	// Supply-side clients. Fake adapters stand in until venue API
	// credentials are wired; the component wiring does not change.
	sourceClients := defaultSourceClients()

	var marketClients []*marketplace.Client
	for _, mcfg := range marketplace.DefaultConfigs() {
		adapter := marketplace.NewFakeAdapter(mcfg.Marketplace, time.Now().UnixNano())
		marketClients = append(marketClients, marketplace.NewClient(mcfg, adapter, nil))
	}

	scanner := hunter.NewScanner(hunter.ScannerOptions{
		Clients:        sourceClients,
		CandidateStore: stores.candidateStore,
		Calculator:     calc,
		Ledger:         ledgerWriter,
	})

	eval := evaluator.New(evaluator.Options{
		CandidateStore: stores.candidateStore,
		SupplierStore:  stores.supplierStore,
		Calculator:     calc,
		RiskMonitor:    monitor,
		Ledger:         ledgerWriter,
	})

	buy := buyer.New(buyer.Options{
		Clients:        sourceClients,
		CandidateStore: stores.candidateStore,
		InventoryStore: stores.inventoryStore,
		BudgetStore:    stores.budgetStore,
		Ledger:         ledgerWriter,
	})

	merch := merchant.New(merchant.Options{
		Clients:        marketClients,
		InventoryStore: stores.inventoryStore,
		ListingStore:   stores.listingStore,
		Calculator:     calc,
		Ledger:         ledgerWriter,
	})

	fulfill := fulfillment.New(fulfillment.Options{
		Clients:          marketClients,
		TransactionStore: stores.transactionStore,
		InventoryStore:   stores.inventoryStore,
		ListingStore:     stores.listingStore,
		AlertStore:       stores.alertStore,
		Email:            fulfillment.NewFakeEmailSender(),
		Ledger:           ledgerWriter,
	})

	repricer := reprice.New(reprice.Options{
		Clients:        marketClients,
		ListingStore:   stores.listingStore,
		InventoryStore: stores.inventoryStore,
		AlertStore:     stores.alertStore,
		Prices:         reprice.NewFakePriceSource(),
		Calculator:     calc,
		Ledger:         ledgerWriter,
	})

	alloc := allocator.New(allocator.Options{
		TransactionStore: stores.transactionStore,
		InventoryStore:   stores.inventoryStore,
		BudgetStore:      stores.budgetStore,
		RiskMonitor:      monitor,
		Ledger:           ledgerWriter,
	})

	brain := brains.New(brains.Options{
		ExperimentStore: stores.experimentStore,
		ListingStore:    stores.listingStore,
		Ledger:          ledgerWriter,
	})

	gov := governor.New(governor.Options{
		TransactionStore: stores.transactionStore,
		InventoryStore:   stores.inventoryStore,
		ListingStore:     stores.listingStore,
		SupplierStore:    stores.supplierStore,
		AlertStore:       stores.alertStore,
		ControlStore:     stores.controlStore,
		RiskMonitor:      monitor,
		Ledger:           ledgerWriter,
	})

	coll := collector.New(collector.Options{
		TransactionStore: stores.transactionStore,
		InventoryStore:   stores.inventoryStore,
		AlertStore:       stores.alertStore,
		Payments:         collector.NewFakePaymentSource(),
		Calculator:       calc,
		Ledger:           ledgerWriter,
	})

	registry := jobs.NewRegistry(jobs.RegistryOptions{
		ControlStore: stores.controlStore,
		Ledger:       ledgerWriter,
	})
	registry.Register(&jobs.HuntHandler{Scanner: scanner})
	registry.Register(&jobs.EvaluateHandler{
		Evaluator: eval,
		Criteria: &evaluator.Criteria{
			MinNetMargin:       cfg.Evaluator.MinNetMargin,
			MinConfidence:      cfg.Evaluator.MinConfidence,
			MinSellerScore:     cfg.Evaluator.MinSellerScore,
			MaxSellThroughDays: cfg.Evaluator.MaxSellThroughDays,
			RiskCeiling:        cfg.Evaluator.RiskCeiling,
		},
	})
	registry.Register(&jobs.BuyHandler{
		Buyer:     buy,
		BatchSize: cfg.Buyer.BatchSize,
		MaxSpend:  cfg.Buyer.MaxSpendPerBatch,
	})
	registry.Register(&jobs.ListHandler{Merchant: merch})
	registry.Register(&jobs.DeliverHandler{Fulfiller: fulfill})
	registry.Register(&jobs.RepriceHandler{
		Repricer:         repricer,
		Strategy:         reprice.Strategy(cfg.Reprice.Strategy),
		MaxIncreasePct:   cfg.Reprice.MaxIncreasePct,
		MaxDecreasePct:   cfg.Reprice.MaxDecreasePct,
		MaxChangeDollars: cfg.Reprice.MaxChangeDollars,
	})
	registry.Register(&jobs.AllocateHandler{Allocator: alloc})
	registry.Register(&jobs.ExperimentHandler{Brains: brain})
	registry.Register(&jobs.GovernHandler{Governor: gov})
	registry.Register(&jobs.CollectHandler{Collector: coll})

	return registry
}

// defaultSourceClients builds one fake client per supply source with the
// categories that source actually carries.
func defaultSourceClients() []hunter.SourceClient {
	keyish := []domain.InventoryKind{domain.KindKey, domain.KindGiftCard}
	seed := time.Now().UnixNano()
	return []hunter.SourceClient{
		hunter.NewFakeSource(domain.SourceG2A, keyish, 0.70, seed),
		hunter.NewFakeSource(domain.SourceKinguin, keyish, 0.80, seed+1),
		hunter.NewFakeSource(domain.SourceCDKeys, []domain.InventoryKind{domain.KindKey}, 0.90, seed+2),
		hunter.NewFakeSource(domain.SourceFanatical, []domain.InventoryKind{domain.KindKey}, 0.90, seed+3),
		hunter.NewFakeSource(domain.SourceGreenManGaming, []domain.InventoryKind{domain.KindKey}, 0.85, seed+4),
		hunter.NewFakeSource(domain.SourceExpiredDomains, []domain.InventoryKind{domain.KindDomain}, 0.60, seed+5),
	}
}

// scheduledQueue pairs a queue with its dispatch interval.
type scheduledQueue struct {
	queue    string
	interval time.Duration
}

func (s *Server) schedule() []scheduledQueue {
	e := s.cfg.Engine
	return []scheduledQueue{
		{jobs.QueueHunt, e.HuntInterval},
		{jobs.QueueEvaluate, e.EvaluateInterval},
		{jobs.QueueBuy, e.BuyInterval},
		{jobs.QueueList, e.ListInterval},
		{jobs.QueueDeliver, e.DeliverInterval},
		{jobs.QueueReprice, e.RepriceInterval},
		{jobs.QueueAllocate, e.AllocateInterval},
		{jobs.QueueExperiment, e.ExperimentInterval},
		{jobs.QueueGovern, e.GovernInterval},
		{jobs.QueueCollect, e.CollectInterval},
	}
}

// Run starts one scheduler loop per stage and blocks until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting trade engine...")

	var wg sync.WaitGroup
	for _, sq := range s.schedule() {
		wg.Add(1)
		go func(sq scheduledQueue) {
			defer wg.Done()
			s.runQueueLoop(ctx, sq)
		}(sq)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// runQueueLoop dispatches one queue on its interval until ctx ends.
func (s *Server) runQueueLoop(ctx context.Context, sq scheduledQueue) {
	if sq.interval <= 0 {
		s.logger.Printf("Queue %s disabled (interval %v)", sq.queue, sq.interval)
		return
	}

	ticker := time.NewTicker(sq.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, sq.queue)
		}
	}
}

// dispatch runs one queue job and records the outcome.
func (s *Server) dispatch(ctx context.Context, queue string) {
	start := time.Now()
	err := s.registry.Dispatch(ctx, queue, nil, nil)
	elapsed := time.Since(start)

	status := "success"
	switch {
	case err == nil:
		s.metrics.LastSuccessfulRun.WithLabelValues(queue).SetToCurrentTime()
	case errors.Is(err, jobs.ErrEngineNotRunning):
		// Skipped, not failed. The registry already logged it.
		status = "skipped"
	default:
		status = "error"
		s.logger.Printf("Queue %s failed: %v", queue, err)
	}
	s.metrics.RecordStageRun(queue, status, elapsed.Seconds())

	s.mu.Lock()
	s.lastRun[queue] = time.Now()
	s.runCount[queue]++
	s.mu.Unlock()
}

// startHTTPServer starts the HTTP control surface.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.cfg.Telemetry.MetricsEnabled {
		mux.Handle("/metrics", observability.Handler())
	}

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/engine/start", s.handleEngineTransition(domain.EngineRunning))
	mux.HandleFunc("/engine/pause", s.handleEngineTransition(domain.EnginePaused))
	mux.HandleFunc("/engine/stop", s.handleEngineTransition(domain.EngineStopped))

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	EngineState string                  `json:"engine_state"`
	Uptime      string                  `json:"uptime"`
	Throttles   []*domain.ThrottleState `json:"throttles,omitempty"`
	LastRuns    map[string]time.Time    `json:"last_runs"`
	RunCounts   map[string]int          `json:"run_counts"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := s.stores.controlStore.GetEngineState(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	throttles, err := s.stores.controlStore.GetThrottles(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	lastRuns := make(map[string]time.Time, len(s.lastRun))
	for q, ts := range s.lastRun {
		lastRuns[q] = ts
	}
	runCounts := make(map[string]int, len(s.runCount))
	for q, n := range s.runCount {
		runCounts[q] = n
	}
	uptime := time.Since(s.started).String()
	s.mu.Unlock()

	resp := StatusResponse{
		EngineState: string(state),
		Uptime:      uptime,
		Throttles:   throttles,
		LastRuns:    lastRuns,
		RunCounts:   runCounts,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleEngineTransition returns a POST handler that moves the engine to
// the target state. Illegal transitions report 409.
func (s *Server) handleEngineTransition(to domain.EngineState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := s.stores.controlStore.SetEngineState(r.Context(), to); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.syncEngineStateMetric(r.Context())
		s.logger.Printf("Engine state set to %s", to)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"engine_state": string(to)})
	}
}

func (s *Server) syncEngineStateMetric(ctx context.Context) {
	state, err := s.stores.controlStore.GetEngineState(ctx)
	if err != nil {
		return
	}
	s.metrics.SetEngineState(string(state))
}
