// Package executor drives a matched intent through its phased settlement
// pipeline under a bounded concurrency budget, a wall-clock timeout,
// MEV-protection delay, retry-with-backoff on transient phases, and
// rollback on failure.
package executor

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"golang.org/x/sync/semaphore"

	"github.com/orbital-intents/settlement-core/internal/chain"
	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/message"
	"github.com/orbital-intents/settlement-core/internal/resilience"
	"github.com/orbital-intents/settlement-core/internal/router"
	"github.com/orbital-intents/settlement-core/internal/state"
	"github.com/orbital-intents/settlement-core/pkg/logger"
	"github.com/orbital-intents/settlement-core/pkg/metrics"
)

// DefaultMaxConcurrentExecutions bounds the number of executions the
// executor runs at once (solver config: max_concurrent_executions).
const DefaultMaxConcurrentExecutions = 10

// DefaultExecutionTimeout is the wall-clock budget for one execution,
// measured from PhaseValidatingIntent to a terminal phase.
const DefaultExecutionTimeout = 300 * time.Second

// mevDelayMin and mevDelayMax bound the randomized pre-submission delay
// applied before the source swap, to blunt front-running of the intent's
// source-chain transaction.
const (
	mevDelayMin = 2 * time.Second
	mevDelayMax = 8 * time.Second
)

// DefaultBridgePollInterval and DefaultBridgeConfirmTimeout bound the
// destination-chain confirmation wait (poll every 10s, up to 300s).
const (
	DefaultBridgePollInterval   = 10 * time.Second
	DefaultBridgeConfirmTimeout = 300 * time.Second
)

// SwapFunc executes one leg of a route hop on the given chain, returning
// the amount received and the submitting transaction hash.
type SwapFunc func(ctx context.Context, ch chain.Chain, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, common.Hash, error)

// Config wires the executor's collaborators and tunables.
type Config struct {
	Chains                  map[domain.ChainID]chain.Chain
	Bridges                 chain.BridgeRegistry
	Swap                    SwapFunc
	Router                  *router.Graph
	MaxConcurrentExecutions int64
	ExecutionTimeout        time.Duration
	BridgePollInterval      time.Duration
	BridgeConfirmTimeout    time.Duration
	MEVProtectionEnabled    bool
	Retry                   resilience.RetryConfig
	CircuitBreaker          resilience.Config
	Persistence             *state.PersistentState
	Metrics                 *metrics.Metrics
	Logger                  *logger.Logger
	ServiceName             string
}

// Executor drives matched intents through the settlement pipeline.
type Executor struct {
	cfg       Config
	sem       *semaphore.Weighted
	mu        sync.RWMutex
	ctxs      map[common.Hash]*domain.ExecutionContext
	rollbacks int
	inFlight  int

	breakersMu sync.Mutex
	breakers   map[domain.ChainID]*resilience.CircuitBreaker
}

// New creates an Executor. A zero-value MaxConcurrentExecutions or
// ExecutionTimeout falls back to the defaults above.
func New(cfg Config) *Executor {
	if cfg.MaxConcurrentExecutions <= 0 {
		cfg.MaxConcurrentExecutions = DefaultMaxConcurrentExecutions
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = DefaultExecutionTimeout
	}
	if cfg.BridgePollInterval <= 0 {
		cfg.BridgePollInterval = DefaultBridgePollInterval
	}
	if cfg.BridgeConfirmTimeout <= 0 {
		cfg.BridgeConfirmTimeout = DefaultBridgeConfirmTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		// Transaction submission retries up to 3 times, 1s backoff doubling
		// per attempt.
		cfg.Retry = resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       0.1,
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "solver-executor"
	}
	return &Executor{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrentExecutions),
		ctxs:     make(map[common.Hash]*domain.ExecutionContext),
		breakers: make(map[domain.ChainID]*resilience.CircuitBreaker),
	}
}

// breakerFor returns the circuit breaker guarding calls to chainID,
// creating it lazily on first use so a solver configured for N chains
// doesn't pre-allocate N breakers it may never need.
func (e *Executor) breakerFor(chainID domain.ChainID) *resilience.CircuitBreaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	if cb, ok := e.breakers[chainID]; ok {
		return cb
	}
	cfg := e.cfg.CircuitBreaker
	cfg.OnStateChange = func(from, to resilience.State) {
		if e.cfg.Logger != nil {
			e.cfg.Logger.WithField("chain_id", uint64(chainID)).
				WithField("from", from.String()).
				WithField("to", to.String()).
				Warn("chain circuit breaker state changed")
		}
	}
	cb := resilience.New(cfg)
	e.breakers[chainID] = cb
	return cb
}

// Execute drives matched through the full phased pipeline. It blocks the
// caller until the execution reaches a terminal phase, the context is
// cancelled, or the semaphore cannot be acquired.
func (e *Executor) Execute(ctx context.Context, matched *domain.MatchedIntent) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return domainerrors.ExecutionTimeout(matched.Intent.ID.Hex())
	}
	defer e.sem.Release(1)

	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecutionTimeout)
	defer cancel()

	ec := &domain.ExecutionContext{
		TraceID:      uuid.NewString(),
		Intent:       matched.Intent,
		Solver:       matched.WinningBid.Solver,
		StartedAt:    time.Now(),
		Phase:        domain.PhaseValidatingIntent,
		LockedAssets: make(map[common.Address]*uint256.Int),
	}
	e.setContext(matched.Intent.ID, ec)
	e.recordInFlight()
	defer e.clearInFlight()

	if e.cfg.Logger != nil {
		e.cfg.Logger.WithField("trace_id", ec.TraceID).
			WithField("intent_id", ec.Intent.ID.Hex()).
			Info("execution started")
	}

	err := e.run(timeoutCtx, ec, matched)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		ec.Phase = domain.PhaseFailed
		ec.FailureReason = err.Error()
		e.rollback(ctx, ec)
	} else {
		ec.Phase = domain.PhaseCompleted
	}

	e.persistContext(ec.Intent.ID, ec)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordExecution(e.cfg.ServiceName, string(ec.Phase), outcome, time.Since(ec.StartedAt))
	}
	return err
}

func (e *Executor) run(ctx context.Context, ec *domain.ExecutionContext, matched *domain.MatchedIntent) error {
	if err := e.validate(ctx, ec); err != nil {
		return err
	}
	if err := e.lockSourceAssets(ctx, ec); err != nil {
		return err
	}
	if e.cfg.MEVProtectionEnabled {
		if err := e.applyMEVDelay(ctx); err != nil {
			return err
		}
	}
	if err := e.executeSourceSwap(ctx, ec); err != nil {
		return err
	}

	if !ec.Intent.SameChain() {
		if err := e.initiateBridge(ctx, ec); err != nil {
			return err
		}
		if err := e.waitForBridgeConfirmation(ctx, ec); err != nil {
			return err
		}
	}

	if err := e.executeDestinationSwap(ctx, ec); err != nil {
		return err
	}
	return e.finalValidation(ctx, ec, matched)
}

func (e *Executor) validate(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseValidatingIntent
	if ec.Intent.Expired(time.Now()) {
		return domainerrors.InvalidInput("deadline", "intent expired before execution could begin")
	}
	sourceChain, ok := e.cfg.Chains[ec.Intent.SourceChainID]
	if !ok {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.SourceChainID))
	}
	if !ec.Intent.SameChain() {
		if _, ok := e.cfg.Chains[ec.Intent.DestChainID]; !ok {
			return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
		}
		if e.cfg.Bridges == nil {
			return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
		}
		if _, err := e.cfg.Bridges.FindBridge(ec.Intent.SourceChainID, ec.Intent.DestChainID); err != nil {
			return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
		}
	}

	balance, err := sourceChain.Balance(ctx, ec.Solver, ec.Intent.SourceToken)
	if err != nil {
		return domainerrors.ExternalServiceFailure("chain_balance", err)
	}
	if balance == nil || balance.Cmp(ec.Intent.SourceAmount) < 0 {
		return domainerrors.InsufficientLiquidity("solver balance is below the intent's source amount")
	}
	return nil
}

func (e *Executor) lockSourceAssets(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseLockingSourceAssets
	ec.LockedAssets[ec.Intent.SourceToken] = ec.Intent.SourceAmount
	return nil
}

func (e *Executor) applyMEVDelay(ctx context.Context) error {
	delay, err := randomDelay(mevDelayMin, mevDelayMax)
	if err != nil {
		return domainerrors.ExternalServiceFailure("rand", err)
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordMEVDelay(delay)
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// randomDelay returns a uniformly random duration in [min, max), drawn from
// crypto/rand rather than math/rand, so the pre-submission delay can't be
// predicted by a solver watching for front-running opportunities.
func randomDelay(min, max time.Duration) (time.Duration, error) {
	span := int64(max - min)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return min + time.Duration(n.Int64()), nil
}

// quoteRoute asks the router for the route an intent's winning bid is
// settled over. Called once per phase rather than cached on the execution
// context, since router.Route can't cross the domain/router package
// boundary domain.ExecutionContext lives behind.
func (e *Executor) quoteRoute(ctx context.Context, ec *domain.ExecutionContext) (*router.Route, error) {
	if e.cfg.Router == nil {
		return nil, domainerrors.InvalidInput("router", "no route graph configured")
	}
	return router.Quote(ctx, e.cfg.Router, ec.Intent, ec.Intent.MinDestAmount)
}

// executeSourceSwap dispatches the source-chain leg of settlement: a bare
// transfer when the intent needs no conversion at all (same chain, same
// token), otherwise the first hop of the router's chosen route.
func (e *Executor) executeSourceSwap(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseExecutingSourceSwap

	if ec.Intent.SameChain() && ec.Intent.SourceToken == ec.Intent.DestToken {
		return e.executeBareTransfer(ctx, ec)
	}

	route, err := e.quoteRoute(ctx, ec)
	if err != nil {
		return err
	}
	if len(route.Hops) == 0 {
		return domainerrors.InsufficientLiquidity("route has no hops")
	}
	hop := route.Hops[0]
	if hop.Protocol != router.ProtocolPool {
		// The route starts at the bridge itself; there is no source-chain
		// conversion to perform before dispatch.
		return nil
	}

	ch, ok := e.cfg.Chains[ec.Intent.SourceChainID]
	if !ok {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.SourceChainID))
	}
	if e.cfg.Swap == nil {
		return domainerrors.InvalidInput("swap", "no swap function configured")
	}

	cb := e.breakerFor(ec.Intent.SourceChainID)
	return cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, e.cfg.Retry, func() error {
			out, txHash, err := e.cfg.Swap(ctx, ch, hop.TokenIn, hop.TokenOut, hop.AmountIn)
			if err != nil {
				return err
			}
			ec.SourceTxHash = &txHash
			ec.LockedAssets[hop.TokenOut] = out
			e.recordGas(ctx, ch, txHash, ec)
			return nil
		})
	})
}

// recordGas folds the mined transaction's gas into the execution context.
// Best-effort: a receipt that cannot be fetched leaves the cumulative figure
// short rather than failing a swap that already landed.
func (e *Executor) recordGas(ctx context.Context, ch chain.Chain, txHash common.Hash, ec *domain.ExecutionContext) {
	receipt, err := ch.WaitReceipt(ctx, txHash)
	if err != nil || receipt == nil {
		if e.cfg.Logger != nil {
			e.cfg.Logger.WithField("trace_id", ec.TraceID).
				WithField("tx_hash", txHash.Hex()).
				WithField("error", err).
				Warn("could not fetch receipt for gas accounting")
		}
		return
	}
	ec.CumulativeGas += receipt.GasUsed
}

// executeBareTransfer moves the locked source amount straight to the
// intent's user, used when source and destination are the same token on
// the same chain and no swap is needed at all.
func (e *Executor) executeBareTransfer(ctx context.Context, ec *domain.ExecutionContext) error {
	ch, ok := e.cfg.Chains[ec.Intent.SourceChainID]
	if !ok {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.SourceChainID))
	}

	cb := e.breakerFor(ec.Intent.SourceChainID)
	return cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, e.cfg.Retry, func() error {
			txHash, err := ch.SendTx(ctx, ec.Intent.User, nil, ec.Intent.SourceAmount, 21_000, nil)
			if err != nil {
				return err
			}
			ec.SourceTxHash = &txHash
			ec.LockedAssets[ec.Intent.DestToken] = ec.Intent.SourceAmount
			e.recordGas(ctx, ch, txHash, ec)
			return nil
		})
	})
}

func (e *Executor) initiateBridge(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseInitiatingBridge
	bridge, err := e.cfg.Bridges.FindBridge(ec.Intent.SourceChainID, ec.Intent.DestChainID)
	if err != nil {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
	}

	msg, err := message.New(ec.Intent.SourceChainID, ec.Intent.DestChainID, domain.MessageIntentExecution, bridgePayload(ec), 250_000, nil)
	if err != nil {
		return err
	}

	cb := e.breakerFor(ec.Intent.DestChainID)
	return cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, e.cfg.Retry, func() error {
			receipt, err := bridge.Send(ctx, msg)
			if err != nil {
				return err
			}
			if advErr := message.Advance(msg, domain.MessageSent); advErr != nil {
				return advErr
			}
			ec.BridgeTxHash = &receipt.SourceTx
			return nil
		})
	})
}

// bridgePayload encodes what the destination chain needs to finish
// settlement: intent id, recipient, destination token, the post-source-swap
// amount being bridged, and the user's minimum acceptable output.
func bridgePayload(ec *domain.ExecutionContext) []byte {
	bridged := ec.Intent.SourceAmount
	for token, amount := range ec.LockedAssets {
		if token != ec.Intent.SourceToken {
			bridged = amount
		}
	}

	var buf []byte
	buf = append(buf, ec.Intent.ID.Bytes()...)
	buf = append(buf, ec.Intent.User.Bytes()...)
	buf = append(buf, ec.Intent.DestToken.Bytes()...)
	buf = append(buf, amount32(bridged)...)
	buf = append(buf, amount32(ec.Intent.MinDestAmount)...)
	return buf
}

func amount32(v *uint256.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	b := v.Bytes32()
	return b[:]
}

func (e *Executor) waitForBridgeConfirmation(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseWaitingForBridgeConfirmation
	bridge, err := e.cfg.Bridges.FindBridge(ec.Intent.SourceChainID, ec.Intent.DestChainID)
	if err != nil {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.BridgeConfirmTimeout)
	defer cancel()

	for {
		delivered, err := bridge.VerifyDelivery(waitCtx, ec.Intent.ID, ec.Intent.DestChainID)
		if err != nil {
			return domainerrors.ExternalServiceFailure("bridge", err)
		}
		if delivered {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return domainerrors.BridgeTimeout(ec.Intent.ID.Hex())
		case <-time.After(e.cfg.BridgePollInterval):
		}
	}
}

// executeDestinationSwap dispatches the destination-chain leg: a no-op for
// a same-chain intent (fully settled by executeSourceSwap/executeBareTransfer
// already) or when the bridge delivered the exact destination token,
// otherwise the last hop of the router's chosen route.
func (e *Executor) executeDestinationSwap(ctx context.Context, ec *domain.ExecutionContext) error {
	ec.Phase = domain.PhaseExecutingDestinationSwap
	if ec.Intent.SameChain() {
		return nil
	}

	route, err := e.quoteRoute(ctx, ec)
	if err != nil {
		return err
	}
	if len(route.Hops) == 0 {
		return domainerrors.InsufficientLiquidity("route has no hops")
	}
	hop := route.Hops[len(route.Hops)-1]
	if hop.Protocol != router.ProtocolPool {
		// The bridge already delivered the exact destination token; record
		// its output as the settled amount finalValidation checks.
		ec.LockedAssets[ec.Intent.DestToken] = hop.AmountOut
		return nil
	}

	ch, ok := e.cfg.Chains[ec.Intent.DestChainID]
	if !ok {
		return domainerrors.ChainNotSupported(uint64(ec.Intent.DestChainID))
	}
	if e.cfg.Swap == nil {
		return domainerrors.InvalidInput("swap", "no swap function configured")
	}

	amountIn := ec.LockedAssets[hop.TokenIn]
	if amountIn == nil {
		amountIn = hop.AmountIn
	}

	cb := e.breakerFor(ec.Intent.DestChainID)
	return cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, e.cfg.Retry, func() error {
			out, txHash, err := e.cfg.Swap(ctx, ch, hop.TokenIn, hop.TokenOut, amountIn)
			if err != nil {
				return err
			}
			ec.DestTxHash = &txHash
			ec.LockedAssets[hop.TokenOut] = out
			e.recordGas(ctx, ch, txHash, ec)
			return nil
		})
	})
}

func (e *Executor) finalValidation(ctx context.Context, ec *domain.ExecutionContext, matched *domain.MatchedIntent) error {
	ec.Phase = domain.PhaseFinalValidation
	out := ec.LockedAssets[ec.Intent.DestToken]
	if out == nil || out.Cmp(ec.Intent.MinDestAmount) < 0 {
		return domainerrors.SlippageExceeded(ec.Intent.MinDestAmount.String(), amountString(out))
	}

	destBlock := uint64(0)
	if ch, ok := e.cfg.Chains[ec.Intent.DestChainID]; ok {
		if block, err := ch.CurrentBlock(ctx); err == nil {
			destBlock = block
		}
	}
	ec.ProofBytes = computeProof(ec.Intent.ID, ec.Solver, out, destBlock, ec.SourceTxHash, ec.DestTxHash)
	return nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// computeProof produces a 32-byte SHA-256 settlement proof over the
// execution's identifying facts.
func computeProof(intentID common.Hash, solver common.Address, amountOut *uint256.Int, destBlock uint64, sourceTx, destTx *common.Hash) [32]byte {
	h := sha256.New()
	h.Write(intentID.Bytes())
	h.Write(solver.Bytes())
	if amountOut != nil {
		h.Write(amountOut.Bytes())
	}
	var blockBuf [8]byte
	binary.BigEndian.PutUint64(blockBuf[:], destBlock)
	h.Write(blockBuf[:])
	if sourceTx != nil {
		h.Write(sourceTx.Bytes())
	}
	if destTx != nil {
		h.Write(destTx.Bytes())
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// rollback releases any held locks and best-effort cancels an in-flight
// bridge message after a failed phase.
func (e *Executor) rollback(ctx context.Context, ec *domain.ExecutionContext) {
	for token := range ec.LockedAssets {
		delete(ec.LockedAssets, token)
	}
	if ec.BridgeTxHash != nil && e.cfg.Bridges != nil {
		if bridge, err := e.cfg.Bridges.FindBridge(ec.Intent.SourceChainID, ec.Intent.DestChainID); err == nil {
			_ = bridge.Cancel(ctx, ec.Intent.ID)
		}
	}

	e.mu.Lock()
	e.rollbacks++
	e.mu.Unlock()

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordRollback(e.cfg.ServiceName, string(ec.Phase))
	}
	if e.cfg.Logger != nil {
		e.cfg.Logger.WithField("trace_id", ec.TraceID).
			WithField("intent_id", ec.Intent.ID.Hex()).
			WithField("phase", ec.Phase).
			WithField("reason", ec.FailureReason).
			Warn("execution rolled back")
	}
}

func (e *Executor) setContext(intentID common.Hash, ec *domain.ExecutionContext) {
	e.mu.Lock()
	e.ctxs[intentID] = ec
	e.mu.Unlock()
	e.persistContext(intentID, ec)
}

// persistContext checkpoints ec's durable fields so Status survives a
// process restart when the executor is configured with a persistence
// backend; failures are logged and otherwise ignored, since the in-memory
// table remains the source of truth for any execution still running in
// this process.
func (e *Executor) persistContext(intentID common.Hash, ec *domain.ExecutionContext) {
	if e.cfg.Persistence == nil {
		return
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return
	}
	if saveErr := e.cfg.Persistence.Save(context.Background(), intentID.Hex(), data); saveErr != nil && e.cfg.Logger != nil {
		e.cfg.Logger.WithField("intent_id", intentID.Hex()).WithField("error", saveErr).Warn("failed to persist execution context")
	}
}

// Status returns the execution context for intentID, if one exists,
// falling back to the persistence backend for an execution this process
// no longer holds in memory (e.g. after a restart).
func (e *Executor) Status(intentID common.Hash) (*domain.ExecutionContext, bool) {
	e.mu.RLock()
	ec, ok := e.ctxs[intentID]
	e.mu.RUnlock()
	if ok {
		return ec, true
	}
	if e.cfg.Persistence == nil {
		return nil, false
	}
	data, err := e.cfg.Persistence.Load(context.Background(), intentID.Hex())
	if err != nil {
		return nil, false
	}
	var restored domain.ExecutionContext
	if err := json.Unmarshal(data, &restored); err != nil {
		return nil, false
	}
	return &restored, true
}

// RollbackCount returns the total number of rollbacks performed.
func (e *Executor) RollbackCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rollbacks
}

func (e *Executor) recordInFlight() {
	if e.cfg.Metrics == nil {
		return
	}
	e.mu.Lock()
	e.inFlight++
	count := e.inFlight
	e.mu.Unlock()
	e.cfg.Metrics.SetExecutionsInFlight(count)
}

func (e *Executor) clearInFlight() {
	if e.cfg.Metrics == nil {
		return
	}
	e.mu.Lock()
	e.inFlight--
	count := e.inFlight
	e.mu.Unlock()
	e.cfg.Metrics.SetExecutionsInFlight(count)
}

// Reap removes completed/failed contexts started before cutoff, returning
// the number removed. Intended to be called periodically by the control
// plane alongside auction cleanup.
func (e *Executor) Reap(cutoff time.Time) int {
	e.mu.Lock()
	reaped := make([]common.Hash, 0)
	removed := 0
	for id, ec := range e.ctxs {
		if (ec.Phase == domain.PhaseCompleted || ec.Phase == domain.PhaseFailed) && ec.StartedAt.Before(cutoff) {
			delete(e.ctxs, id)
			reaped = append(reaped, id)
			removed++
		}
	}
	e.mu.Unlock()

	if e.cfg.Persistence != nil {
		for _, id := range reaped {
			if err := e.cfg.Persistence.Delete(context.Background(), id.Hex()); err != nil && e.cfg.Logger != nil {
				e.cfg.Logger.WithField("intent_id", id.Hex()).WithField("error", err).Warn("failed to delete persisted execution context")
			}
		}
	}
	return removed
}
