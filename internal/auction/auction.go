// Package auction runs the sealed-bid auctions: opens one per intent,
// accepts bids under reputation gating, and selects the winner by weighted
// score.
package auction

import (
	"bytes"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/time/rate"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/reputation"
)

// DefaultQuorum is the minimum bid count required before finalization.
const DefaultQuorum = 2

// OrbitalScorer computes the orbital-optimization score contribution
// used by the scoring formula; implemented by the profit package to avoid
// a direct import cycle (auction -> profit would be natural, but profit
// also depends on the kernel/router, so the engine accepts a narrow
// function instead of the whole estimator).
type OrbitalScorer func(bid domain.Bid, intent *domain.Intent) (float64, error)

// Engine holds the two auction tables: open_auctions and matched_intents.
// Safe for concurrent use; writers take the exclusive lock, read-only
// queries take the shared lock.
type Engine struct {
	mu             sync.RWMutex
	openAuctions   map[common.Hash]*domain.Auction
	matchedIntents map[common.Hash]*domain.MatchedIntent
	reputation     reputation.Oracle
	orbitalScore   OrbitalScorer
	bidLimiter     *rate.Limiter
}

// Config configures an Engine.
type Config struct {
	Reputation    reputation.Oracle
	OrbitalScorer OrbitalScorer
	// BidRateLimit throttles the rate at which Submit accepts bids
	// across all auctions, guarding against bid-spam from a misbehaving
	// solver client. Zero disables throttling.
	BidRateLimit rate.Limit
	BidBurst     int
}

// New creates an Engine.
func New(cfg Config) *Engine {
	var limiter *rate.Limiter
	if cfg.BidRateLimit > 0 {
		burst := cfg.BidBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.BidRateLimit, burst)
	}
	return &Engine{
		openAuctions:   make(map[common.Hash]*domain.Auction),
		matchedIntents: make(map[common.Hash]*domain.MatchedIntent),
		reputation:     cfg.Reputation,
		orbitalScore:   cfg.OrbitalScorer,
		bidLimiter:     limiter,
	}
}

// Open registers a new auction for intent, failing if one is already open.
func (e *Engine) Open(intent *domain.Intent, duration time.Duration, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.openAuctions[intent.ID]; exists {
		return domainerrors.Conflict("auction already open for this intent")
	}

	quorum := DefaultQuorum
	e.openAuctions[intent.ID] = &domain.Auction{
		IntentID: intent.ID,
		Intent:   intent,
		OpenedAt: now,
		Deadline: now.Add(duration),
		Quorum:   quorum,
		Status:   domain.AuctionOpen,
	}
	return nil
}

// Submit appends bid to intentID's open auction, rejecting closed
// auctions, duplicate solvers, and ineligible solvers.
func (e *Engine) Submit(intentID common.Hash, bid domain.Bid, now time.Time) error {
	if e.bidLimiter != nil && !e.bidLimiter.Allow() {
		return domainerrors.InvalidInput("bid", "rate limit exceeded")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.openAuctions[intentID]
	if !ok {
		return domainerrors.NotFound("auction", intentID.Hex())
	}
	if now.After(a.Deadline) {
		return domainerrors.Conflict("auction is closed")
	}
	for _, existing := range a.Bids {
		if existing.Solver == bid.Solver {
			return domainerrors.Conflict("solver has already submitted a bid")
		}
	}

	if e.reputation != nil {
		eligible, err := e.reputation.Eligible(bid.Solver, a.Intent.SourceAmount)
		if err != nil {
			return domainerrors.ExternalServiceFailure("reputation_oracle", err)
		}
		if !eligible {
			return domainerrors.Unauthorized("solver is not eligible to bid")
		}
	}

	a.Bids = append(a.Bids, bid)
	return nil
}

// Weighted-score components for winner selection.
const (
	weightOutput     = 0.35
	weightReputation = 0.25
	weightSpeed      = 0.15
	weightConfidence = 0.10
	weightOrbital    = 0.15
)

type scoredBid struct {
	bid   domain.Bid
	score float64
}

// Finalize scores every bid and selects the winner once the deadline has
// passed and quorum is met. Idempotent: re-entry on an already-finalized
// intent returns the stored winner.
func (e *Engine) Finalize(intentID common.Hash, now time.Time) (*domain.MatchedIntent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if matched, ok := e.matchedIntents[intentID]; ok {
		return matched, nil
	}

	a, ok := e.openAuctions[intentID]
	if !ok {
		return nil, domainerrors.NotFound("auction", intentID.Hex())
	}
	if now.Before(a.Deadline) {
		return nil, domainerrors.InvalidInput("deadline", "auction has not reached its deadline")
	}
	if len(a.Bids) < a.Quorum {
		a.Status = domain.AuctionAborted
		return nil, domainerrors.Conflict("quorum not met")
	}

	scored := make([]scoredBid, 0, len(a.Bids))
	for _, bid := range a.Bids {
		score, err := e.score(bid, a.Intent)
		if err != nil {
			return nil, err
		}
		scored = append(scored, scoredBid{bid: bid, score: score})
	}

	winner := scored[0]
	for _, s := range scored[1:] {
		if s.score > winner.score {
			winner = s
			continue
		}
		if s.score == winner.score {
			if s.bid.ExpectedProfit != nil && winner.bid.ExpectedProfit != nil &&
				s.bid.ExpectedProfit.Cmp(winner.bid.ExpectedProfit) > 0 {
				winner = s
				continue
			}
			if bytes.Compare(s.bid.Solver.Bytes(), winner.bid.Solver.Bytes()) < 0 {
				winner = s
			}
		}
	}

	matched := &domain.MatchedIntent{
		Intent:         a.Intent,
		WinningBid:     winner.bid,
		ExpectedProfit: winner.bid.ExpectedProfit,
		MatchedAt:      now,
	}

	a.Status = domain.AuctionFinalized
	e.matchedIntents[intentID] = matched
	delete(e.openAuctions, intentID)

	return matched, nil
}

func (e *Engine) score(bid domain.Bid, intent *domain.Intent) (float64, error) {
	outputRatio := ratio(bid.DestAmount, intent.MinDestAmount) - 1
	outputScore := clamp01(outputRatio) * weightOutput

	var repScore float64
	if e.reputation != nil {
		score, err := e.reputation.Score(bid.Solver)
		if err != nil {
			return 0, domainerrors.ExternalServiceFailure("reputation_oracle", err)
		}
		repScore = float64(score) / float64(reputation.MaxScore) * weightReputation
	}

	speedScore := (1 / (1 + float64(bid.ExecSeconds)/60)) * weightSpeed
	confidenceScore := clamp01(bid.Confidence) * weightConfidence

	var orbitalScore float64
	if e.orbitalScore != nil {
		s, err := e.orbitalScore(bid, intent)
		if err != nil {
			return 0, err
		}
		orbitalScore = clamp01(s) * weightOrbital
	}

	return outputScore + repScore + speedScore + confidenceScore + orbitalScore, nil
}

// ratioScale gives ratio six decimal digits of precision, enough for the
// scoring formula's [0,1] clamp.
var ratioScale = uint256.NewInt(1_000_000)

func ratio(a, b *uint256.Int) float64 {
	if a == nil || b == nil || b.IsZero() {
		return 0
	}
	scaled, overflow := new(uint256.Int).MulDivOverflow(a, ratioScale, b)
	if overflow || !scaled.IsUint64() {
		return 1
	}
	return float64(scaled.Uint64()) / 1_000_000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CleanupExpired prunes both tables of anything whose deadline has passed:
// open auctions whose own deadline or whose intent's deadline has elapsed,
// and matched intents whose intent deadline has elapsed, regardless of
// whether quorum was ever met.
func (e *Engine) CleanupExpired(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for id, a := range e.openAuctions {
		if now.After(a.Deadline) || (a.Intent != nil && now.After(a.Intent.Deadline)) {
			a.Status = domain.AuctionAborted
			delete(e.openAuctions, id)
			removed++
		}
	}
	for id, m := range e.matchedIntents {
		if m.Intent != nil && now.After(m.Intent.Deadline) {
			delete(e.matchedIntents, id)
			removed++
		}
	}
	return removed
}

// Matched returns the matched record for intentID, if any.
func (e *Engine) Matched(intentID common.Hash) (*domain.MatchedIntent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.matchedIntents[intentID]
	return m, ok
}

// ListOpen returns a snapshot copy of all currently open auctions.
func (e *Engine) ListOpen() []*domain.Auction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.Auction, 0, len(e.openAuctions))
	for _, a := range e.openAuctions {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
