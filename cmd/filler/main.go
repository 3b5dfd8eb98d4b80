package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/intentfiller/bidstore"
	"github.com/web3guy0/intentfiller/chain"
	"github.com/web3guy0/intentfiller/config"
	"github.com/web3guy0/intentfiller/coprocessor"
	"github.com/web3guy0/intentfiller/ingest"
	"github.com/web3guy0/intentfiller/order"
	"github.com/web3guy0/intentfiller/pending"
	"github.com/web3guy0/intentfiller/schedule"
	"github.com/web3guy0/intentfiller/statusapi"
	"github.com/web3guy0/intentfiller/strategy"
)

const VERSION = "v1.0"

func main() {
	// ═══════════════════════════════════════════════════════════════════════════════
	// BOOTSTRAP
	// ═══════════════════════════════════════════════════════════════════════════════

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	} else {
		log.Info().Msg("✅ .env file loaded successfully")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("═══════════════════════════════════════════════════════════════")
	log.Info().Msgf("         INTENT FILLER %s", VERSION)
	log.Info().Msg("═══════════════════════════════════════════════════════════════")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 1: CHAIN CLIENTS
	// ═══════════════════════════════════════════════════════════════════════════════

	chains, err := chain.NewRegistry(ctx, cfg.Chains)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect chain clients")
	}
	log.Info().Int("count", len(cfg.Chains)).Msg("✅ chain registry connected")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 2: BID STORE
	// ═══════════════════════════════════════════════════════════════════════════════

	bids, err := bidstore.Open(cfg.BidStoreDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open bid store")
	}
	log.Info().Msg("✅ bid store initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 3: COPROCESSOR SESSION + STATUS API
	// ═══════════════════════════════════════════════════════════════════════════════

	fillerKey, err := coprocessor.NewFillerKey(cfg.CoprocessorSeedURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive coprocessor filler key")
	}

	coproc := coprocessor.NewSession(cfg.CoprocessorWSURL, fillerKey)
	coproc.Start()
	log.Info().Msg("✅ coprocessor session started")

	statusClient := statusapi.New(cfg.StatusAPIURL)
	_ = statusClient // collaborator interface, wired into strategies per deployment

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 4: SCHEDULER
	// ═══════════════════════════════════════════════════════════════════════════════

	scheduler := schedule.New(ctx, schedule.Config{
		MaxConcurrentOrders: cfg.MaxConcurrentOrders,
		LaneBufferSize:      cfg.LaneBufferSize,
		DrainDeadline:       cfg.DrainDeadline,
	})
	log.Info().Msg("✅ scheduler initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 5: STRATEGY REGISTRY + EVALUATOR
	// ═══════════════════════════════════════════════════════════════════════════════

	registry := strategy.NewRegistry()
	// Concrete strategies are registered here by deployment; the core ships
	// no bundled alpha (spec.md §1 Non-goals: no strategy-internal math).
	evaluator := strategy.NewEvaluator(registry, cfg.MinProfitScore)
	log.Info().Int("strategies", len(registry.All())).Msg("✅ strategy registry initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 6: PENDING QUEUE
	// ═══════════════════════════════════════════════════════════════════════════════

	bands := make(map[string]pending.Band, len(cfg.ConfirmationBands))
	for k, v := range cfg.ConfirmationBands {
		bands[k] = v
	}
	policy := pending.NewPolicy(bands)
	prices := noopPriceOracle{}
	confirmationSource := pending.NewPolicyAdapter(chains, policy, prices)

	onReady := func(o order.Order) {
		scheduler.SubmitEval(func(evalCtx context.Context) {
			decision := evaluator.Evaluate(evalCtx, o)
			if decision.Selected == nil {
				log.Info().Str("order", o.ID.String()).Str("reason", string(decision.Dropped)).Msg("order dropped")
				return
			}
			selected := decision.Selected.Strategy
			scheduler.SubmitExec(o.DestChain, func(execCtx context.Context) {
				result := selected.Execute(execCtx, o)
				if !result.Success {
					log.Warn().Str("order", o.ID.String()).Err(result.Error).Msg("execute failed")
					return
				}
				log.Info().Str("order", o.ID.String()).Str("strategy", selected.Name()).Msg("order filled")
			})
		})
	}
	onExhausted := func(o order.Order) {
		log.Warn().Str("order", o.ID.String()).Msg("order exhausted pending rechecks, dropping")
	}

	pendingQueue := pending.NewQueue(pending.Config{
		MaxRechecks:  cfg.MaxRechecks,
		RecheckDelay: cfg.RecheckDelay,
	}, confirmationSource, onReady, onExhausted)
	log.Info().Msg("✅ pending queue initialized")

	// ═══════════════════════════════════════════════════════════════════════════════
	// LAYER 7: ORDER INGESTION
	// ═══════════════════════════════════════════════════════════════════════════════

	// Gateway addresses/ABI events are deployment-specific and supplied by
	// the operator; with the empty source list here, Run returns at once and
	// closes Orders(), so no orders are ingested (spec.md §1 Non-goals: no
	// gateway contract implementation).
	watcher := ingest.NewWatcher(nil)
	go watcher.Run(ctx)
	go func() {
		for o := range watcher.Orders() {
			pendingQueue.Submit(ctx, o)
		}
	}()
	log.Info().Msg("✅ order ingestion started")

	log.Info().Msg("🚀 running...")

	// ═══════════════════════════════════════════════════════════════════════════════
	// GRACEFUL SHUTDOWN
	// ═══════════════════════════════════════════════════════════════════════════════

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Warn().Msg("🛑 shutdown signal received")

	// 1. Stop accepting new orders.
	rootCancel()

	// 2. Cancel pending timers — no leaked wakeups.
	pendingQueue.Shutdown()

	// 3. Await in-flight queues to drain with a bounded deadline.
	scheduler.Shutdown()

	// 4. Close remaining resources.
	coproc.Stop()
	chains.Close()
	if err := bids.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing bid store")
	}

	log.Info().Msg("👋 shutdown complete")
}

// noopPriceOracle values every token at zero. Real deployments supply a
// DEX-quote or price-feed backed oracle; the core never guesses a price
// (spec.md §1 Non-goals: no strategy-internal math).
type noopPriceOracle struct{}

func (noopPriceOracle) USDPrice(tokenID string) order.Amount { return order.Zero() }
