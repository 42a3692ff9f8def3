// Package controlplane implements the control plane: it wires the
// kernel, liquidity manager, message envelope, reputation oracle, auction
// engine, profit estimator, router, and executor together behind a small
// operation surface, and runs the periodic housekeeping tasks that keep
// auction/execution state bounded.
package controlplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"

	"github.com/orbital-intents/settlement-core/internal/auction"
	"github.com/orbital-intents/settlement-core/internal/chain"
	"github.com/orbital-intents/settlement-core/internal/corebase"
	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/executor"
	"github.com/orbital-intents/settlement-core/internal/intent"
	"github.com/orbital-intents/settlement-core/internal/liquidity"
	"github.com/orbital-intents/settlement-core/internal/profit"
	"github.com/orbital-intents/settlement-core/internal/router"
	"github.com/orbital-intents/settlement-core/internal/store"
	"github.com/orbital-intents/settlement-core/pkg/logger"
	"github.com/orbital-intents/settlement-core/pkg/metrics"
)

// componentDescriptors advertises what is wired into a Plane at startup,
// one entry per wired collaborator.
var componentDescriptors = []corebase.Descriptor{
	{Name: "auction", Domain: "settlement", Layer: corebase.LayerEngine, Capabilities: []string{"open", "bid", "finalize"}},
	{Name: "router", Domain: "settlement", Layer: corebase.LayerEngine, Capabilities: []string{"same_chain", "cross_chain"}},
	{Name: "executor", Domain: "settlement", Layer: corebase.LayerEngine, Capabilities: []string{"phased_execution", "rollback"}},
	{Name: "profit", Domain: "settlement", Layer: corebase.LayerEngine, Capabilities: []string{"estimate"}},
	{Name: "liquidity", Domain: "settlement", Layer: corebase.LayerEngine, Capabilities: []string{"add_position", "remove_position"}},
}

// cleanupSchedule runs auction and execution housekeeping every minute.
const cleanupSchedule = "@every 60s"

// Config wires the Plane's collaborators.
type Config struct {
	Auction  *auction.Engine
	Router   *router.Graph
	Executor *executor.Executor
	Oracle   chain.PriceOracle
	// Store, when set, is read once at Start to rebuild the intent table
	// after a restart and written through on every status change. The
	// in-memory tables stay authoritative while the process runs.
	Store                 store.IntentStore
	AuctionDuration       time.Duration
	MinDestAmountBps      uint32       // applied on top of the intent's own MinDestAmount when quoting
	MaxIntentSourceAmount *uint256.Int // nil means no per-intent cap is enforced
	Metrics               *metrics.Metrics
	Logger                *logger.Logger
	ServiceName           string
}

// Plane is the control plane's running instance: it owns the intent
// registry and the cron scheduler driving periodic cleanup.
type Plane struct {
	cfg Config

	mu      sync.RWMutex
	intents map[common.Hash]*domain.Intent
	owners  map[common.Hash]common.Address
	pools   map[common.Hash]*liquidity.Manager

	cron *cron.Cron
}

// New creates a Plane. Call Start to begin the periodic housekeeping loop.
func New(cfg Config) *Plane {
	if cfg.AuctionDuration <= 0 {
		cfg.AuctionDuration = 30 * time.Second
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-core"
	}
	return &Plane{
		cfg:     cfg,
		intents: make(map[common.Hash]*domain.Intent),
		owners:  make(map[common.Hash]common.Address),
		pools:   make(map[common.Hash]*liquidity.Manager),
		cron:    cron.New(),
	}
}

// Start rebuilds the intent table from the configured store and schedules
// the periodic cleanup task. It does not block.
func (p *Plane) Start(ctx context.Context) error {
	if err := p.rehydrate(ctx); err != nil {
		return err
	}

	if p.cfg.Logger != nil {
		for _, d := range componentDescriptors {
			p.cfg.Logger.WithField("component", d.Name).
				WithField("layer", string(d.Layer)).
				WithField("capabilities", d.Capabilities).
				Info("component wired")
		}
	}

	_, err := p.cron.AddFunc(cleanupSchedule, func() {
		p.runCleanup(time.Now())
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	p.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight cron job to finish.
func (p *Plane) Stop(ctx context.Context) error {
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rehydrate reloads persisted intents, re-registering non-terminal ones.
// An intent that was mid-auction gets a fresh auction window: its previous
// bids were in-memory only and solvers must compete again.
func (p *Plane) rehydrate(ctx context.Context) error {
	if p.cfg.Store == nil {
		return nil
	}
	intents, err := p.cfg.Store.ListIntents(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate intents: %w", err)
	}

	restored := 0
	for _, in := range intents {
		switch in.Status {
		case domain.IntentSettled, domain.IntentFailed, domain.IntentExpired, domain.IntentCancelled:
			continue
		}
		if in.Expired(time.Now()) {
			continue
		}

		p.mu.Lock()
		p.intents[in.ID] = in
		p.owners[in.ID] = in.User
		p.mu.Unlock()

		if in.Status == domain.IntentAuctioning && p.cfg.Auction != nil {
			if err := p.cfg.Auction.Open(in, p.cfg.AuctionDuration, time.Now()); err != nil && p.cfg.Logger != nil {
				p.cfg.Logger.WithField("intent_id", in.ID.Hex()).WithField("error", err).Warn("could not reopen auction for restored intent")
			}
		}
		restored++
	}

	if p.cfg.Logger != nil && restored > 0 {
		p.cfg.Logger.WithField("restored_intents", restored).Info("intent table rebuilt from store")
	}
	return nil
}

// persistIntent writes in through to the store, if one is configured.
// Failures are logged, not returned: the in-memory table is authoritative.
func (p *Plane) persistIntent(ctx context.Context, in *domain.Intent) {
	if p.cfg.Store == nil {
		return
	}
	if err := p.cfg.Store.SaveIntent(ctx, in); err != nil && p.cfg.Logger != nil {
		p.cfg.Logger.WithField("intent_id", in.ID.Hex()).WithField("error", err).Warn("could not persist intent")
	}
}

func (p *Plane) runCleanup(now time.Time) {
	expiredAuctions := 0
	if p.cfg.Auction != nil {
		expiredAuctions = p.cfg.Auction.CleanupExpired(now)
		if p.cfg.Metrics != nil {
			for i := 0; i < expiredAuctions; i++ {
				p.cfg.Metrics.RecordAuctionExpired()
			}
		}
	}
	reapedExecutions := 0
	if p.cfg.Executor != nil {
		reapedExecutions = p.cfg.Executor.Reap(now.Add(-10 * time.Minute))
	}
	if p.cfg.Logger != nil && (expiredAuctions > 0 || reapedExecutions > 0) {
		p.cfg.Logger.WithField("expired_auctions", expiredAuctions).
			WithField("reaped_executions", reapedExecutions).
			Info("periodic cleanup completed")
	}
}

// SubmitIntent registers an intent and opens its auction, quoting a
// provisional route to validate the request is fillable at all.
func (p *Plane) SubmitIntent(ctx context.Context, in *domain.Intent) error {
	done := corebase.StartObservation(ctx, p.observationHooks(), map[string]string{
		"op": "submit_intent", "intent_id": in.ID.Hex(),
	})
	var err error
	defer func() { done(err) }()

	if in.Expired(time.Now()) {
		err = domainerrors.InvalidInput("deadline", "intent deadline is in the past")
		return err
	}

	if verr := intent.Validate(in, p.cfg.MaxIntentSourceAmount); verr != nil {
		err = verr
		return err
	}

	if p.cfg.Router != nil {
		// The provisional quote clears a cushion above the user's minimum, so
		// intents that would only fill at the exact edge are rejected up front
		// rather than failing mid-execution.
		minDest := in.MinDestAmount
		if p.cfg.MinDestAmountBps > 0 {
			cushioned, overflow := new(uint256.Int).MulDivOverflow(
				minDest,
				uint256.NewInt(uint64(10_000+p.cfg.MinDestAmountBps)),
				uint256.NewInt(10_000),
			)
			if !overflow {
				minDest = cushioned
			}
		}
		if _, rerr := router.Quote(ctx, p.cfg.Router, in, minDest); rerr != nil {
			err = rerr
			return err
		}
	}

	p.mu.Lock()
	if _, exists := p.intents[in.ID]; exists {
		p.mu.Unlock()
		err = domainerrors.Conflict("intent already submitted")
		return err
	}
	in.Status = domain.IntentAuctioning
	p.intents[in.ID] = in
	p.owners[in.ID] = in.User
	p.mu.Unlock()

	if p.cfg.Auction == nil {
		err = domainerrors.InvalidInput("auction", "no auction engine configured")
		return err
	}
	if oerr := p.cfg.Auction.Open(in, p.cfg.AuctionDuration, time.Now()); oerr != nil {
		err = oerr
		return err
	}
	p.persistIntent(ctx, in)
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordAuctionOpened(p.cfg.ServiceName, uint64(in.SourceChainID), uint64(in.DestChainID))
	}
	return nil
}

// observationHooks wires SubmitIntent/FinalizeAuction timing into the
// configured logger without coupling the auction/executor packages to it.
func (p *Plane) observationHooks() corebase.ObservationHooks {
	if p.cfg.Logger == nil {
		return corebase.NoopObservationHooks
	}
	return corebase.ObservationHooks{
		OnComplete: func(_ context.Context, meta map[string]string, err error, duration time.Duration) {
			entry := p.cfg.Logger.WithField("op", meta["op"]).
				WithField("intent_id", meta["intent_id"]).
				WithField("duration_ms", duration.Milliseconds())
			if err != nil {
				entry.WithField("error", err).Warn("operation failed")
				return
			}
			entry.Debug("operation completed")
		},
	}
}

// ListOpenAuctions returns up to limit open auctions (clamped to the
// control plane's standard pagination bounds); limit <= 0 uses the default.
func (p *Plane) ListOpenAuctions(limit int) []*domain.Auction {
	if p.cfg.Auction == nil {
		return nil
	}
	all := p.cfg.Auction.ListOpen()
	clamped := corebase.ClampLimit(limit, corebase.DefaultListLimit, corebase.MaxListLimit)
	if clamped >= len(all) {
		return all
	}
	return all[:clamped]
}

// PostBid submits a solver's bid to intentID's open auction.
func (p *Plane) PostBid(intentID common.Hash, bid domain.Bid) error {
	if p.cfg.Auction == nil {
		return domainerrors.InvalidInput("auction", "no auction engine configured")
	}
	outcome := "accepted"
	err := p.cfg.Auction.Submit(intentID, bid, time.Now())
	if err != nil {
		outcome = "rejected"
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordBidSubmitted(p.cfg.ServiceName, outcome)
	}
	return err
}

// FinalizeAuction finalizes intentID's auction and, on success, hands the
// matched intent to the executor for settlement.
func (p *Plane) FinalizeAuction(ctx context.Context, intentID common.Hash) (*domain.MatchedIntent, error) {
	done := corebase.StartObservation(ctx, p.observationHooks(), map[string]string{
		"op": "finalize_auction", "intent_id": intentID.Hex(),
	})
	var err error
	defer func() { done(err) }()

	if p.cfg.Auction == nil {
		err = domainerrors.InvalidInput("auction", "no auction engine configured")
		return nil, err
	}
	var matched *domain.MatchedIntent
	matched, err = p.cfg.Auction.Finalize(intentID, time.Now())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if intent, ok := p.intents[intentID]; ok {
		intent.Status = domain.IntentMatched
		p.persistIntent(ctx, intent)
	}
	p.mu.Unlock()

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordAuctionFinalized(p.cfg.ServiceName)
	}

	if p.cfg.Executor != nil {
		go func() {
			p.mu.Lock()
			if intent, ok := p.intents[intentID]; ok {
				intent.Status = domain.IntentExecuting
				p.persistIntent(context.Background(), intent)
			}
			p.mu.Unlock()

			execErr := p.cfg.Executor.Execute(context.Background(), matched)

			p.mu.Lock()
			if intent, ok := p.intents[intentID]; ok {
				if execErr != nil {
					intent.Status = domain.IntentFailed
				} else {
					intent.Status = domain.IntentSettled
				}
				p.persistIntent(context.Background(), intent)
			}
			p.mu.Unlock()
		}()
	}

	return matched, nil
}

// QueryIntent returns a snapshot copy of a registered intent.
func (p *Plane) QueryIntent(intentID common.Hash) (*domain.Intent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	in, ok := p.intents[intentID]
	if !ok {
		return nil, false
	}
	cp := *in
	return &cp, true
}

// QueryMatched returns the matched record for intentID, if finalized.
func (p *Plane) QueryMatched(intentID common.Hash) (*domain.MatchedIntent, bool) {
	if p.cfg.Auction == nil {
		return nil, false
	}
	return p.cfg.Auction.Matched(intentID)
}

// QueryExecutionStatus returns the executor's phase context for intentID.
func (p *Plane) QueryExecutionStatus(intentID common.Hash) (*domain.ExecutionContext, bool) {
	if p.cfg.Executor == nil {
		return nil, false
	}
	return p.cfg.Executor.Status(intentID)
}

// CancelIntent cancels an intent on behalf of caller, rejecting callers who
// do not own the intent and executions that have reached the
// asset-locking phase (cancellation is unsafe once funds are locked
// and swaps may already be in flight).
func (p *Plane) CancelIntent(caller common.Address, intentID common.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner, ok := p.owners[intentID]
	if !ok {
		return domainerrors.NotFound("intent", intentID.Hex())
	}
	if owner != caller {
		return domainerrors.Unauthorized("only the intent's owner may cancel it")
	}

	intent := p.intents[intentID]
	if intent == nil {
		return domainerrors.NotFound("intent", intentID.Hex())
	}

	if p.cfg.Executor != nil {
		if ec, ok := p.cfg.Executor.Status(intentID); ok {
			switch ec.Phase {
			case domain.PhaseValidatingIntent:
				// not yet locked; safe to cancel
			default:
				return domainerrors.Cancelled("execution has already progressed past validation")
			}
		}
	}

	intent.Status = domain.IntentCancelled
	p.persistIntent(context.Background(), intent)
	return nil
}

// EstimateProfit runs the Profit Estimator for in against the plane's own
// route graph, used by solver clients deciding whether to bid at all.
// Exposed on the plane so a single collaborator set serves both bidding and
// settlement decisions.
func (p *Plane) EstimateProfit(ctx context.Context, in *domain.Intent, cfg profit.Config) (*profit.Estimation, error) {
	if p.cfg.Router == nil {
		return nil, domainerrors.InvalidInput("router", "no route graph configured")
	}
	edge, iIn, iOut, ok := router.FindPool(p.cfg.Router, in.SourceChainID, in.SourceToken, in.DestToken)
	if !ok {
		return nil, domainerrors.InsufficientLiquidity("no pool backs the intent's source chain token pair")
	}
	return profit.Estimate(ctx, in, cfg, edge.Pool, iIn, iOut, p.cfg.Router, p.cfg.Oracle, time.Now())
}

// QuoteRoute runs the Route Optimizer for intent against the plane's graph.
func (p *Plane) QuoteRoute(ctx context.Context, intent *domain.Intent, minDest *uint256.Int) (*router.Route, error) {
	if p.cfg.Router == nil {
		return nil, domainerrors.InvalidInput("router", "no route graph configured")
	}
	return router.Quote(ctx, p.cfg.Router, intent, minDest)
}

// RegisterPool creates a liquidity manager for poolID over the given ticks,
// so solvers and liquidity providers can register/withdraw positions on a
// pool the router already quotes against.
func (p *Plane) RegisterPool(poolID common.Hash, ticks []*domain.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pools[poolID] = liquidity.NewManager(ticks)
}

// AddLiquidity opens a new position on poolID, returning its id.
func (p *Plane) AddLiquidity(poolID common.Hash, owner common.Address, lo, hi int, amount *uint256.Int, atBlock uint64) (uint64, error) {
	p.mu.RLock()
	mgr, ok := p.pools[poolID]
	p.mu.RUnlock()
	if !ok {
		return 0, domainerrors.NotFound("pool", poolID.Hex())
	}
	return mgr.AddPosition(owner, lo, hi, amount, atBlock)
}

// RemoveLiquidity closes a position on poolID, returning the principal and
// accrued fees.
func (p *Plane) RemoveLiquidity(poolID common.Hash, positionID uint64) (*uint256.Int, *uint256.Int, error) {
	p.mu.RLock()
	mgr, ok := p.pools[poolID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil, domainerrors.NotFound("pool", poolID.Hex())
	}
	return mgr.RemovePosition(positionID)
}
