// Package profit estimates solver profitability: composes kernel quotes,
// market rates, gas, slippage, MEV, LP rewards, and bridge cost into a
// net-profit figure with a confidence score, and supplies the
// orbital-optimization score consumed by the auction scoring formula.
package profit

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/chain"
	"github.com/orbital-intents/settlement-core/internal/domain"
	"github.com/orbital-intents/settlement-core/internal/kernel"
	"github.com/orbital-intents/settlement-core/internal/router"
)

// Config carries the solver-level constants used by the cost model.
type Config struct {
	MinProfitBps uint32
	BaseRiskBps  uint32
}

// PoolSnapshot is the kernel/router-derived market data the estimator
// composes into an Estimation. It is produced by derivePoolSnapshot, never
// supplied directly by a caller.
type PoolSnapshot struct {
	ArbitrageProfit      *uint256.Int
	LPRewards            *uint256.Int
	MEVAdjustment        *uint256.Int
	PathBonus            *uint256.Int
	SlippageCost         *uint256.Int
	PathEfficiency       float64 // [0,2], capped at 2.0 as in the original scorer
	ConstraintHealth     float64 // [0,1]
	DimensionUtilization float64 // [0,1]
}

// Estimation is the composed net-profit figure with its confidence score.
type Estimation struct {
	Gross        *uint256.Int
	Costs        *uint256.Int
	Net          *uint256.Int
	Final        *uint256.Int
	MarginBps    *uint256.Int
	Confidence   uint8
	OrbitalScore float64
}

// Estimate composes intent, solver config, and the kernel/router-derived
// market data for (pool, iIn, iOut) into an Estimation. pool is the source
// chain's pool for intent's token pair; graph is consulted for the
// alternate-path comparison behind PathBonus/PathEfficiency.
func Estimate(ctx context.Context, intent *domain.Intent, cfg Config, pool *domain.PoolState, iIn, iOut int, graph *router.Graph, oracle chain.PriceOracle, now time.Time) (*Estimation, error) {
	snapshot, err := derivePoolSnapshot(ctx, intent, pool, iIn, iOut, graph)
	if err != nil {
		return nil, err
	}

	gross := addAll(snapshot.ArbitrageProfit, snapshot.LPRewards, snapshot.MEVAdjustment, snapshot.PathBonus)

	gasCost, err := gasCostFor(ctx, intent, oracle)
	if err != nil {
		return nil, err
	}
	risk := riskPremium(intent, cfg, oracle, ctx)
	crossChainCost := crossChainCostFor(intent)

	costs := addAll(gasCost, snapshot.SlippageCost, risk, crossChainCost)

	net := subOrZero(gross, costs)

	threshold, overflow := new(uint256.Int).MulDivOverflow(intent.SourceAmount, uint256.NewInt(uint64(cfg.MinProfitBps)), uint256.NewInt(10_000))
	var final *uint256.Int
	if overflow {
		final = new(uint256.Int)
	} else if net.Cmp(threshold) >= 0 {
		final = net
	} else {
		final = new(uint256.Int)
	}

	var margin *uint256.Int
	if intent.SourceAmount != nil && !intent.SourceAmount.IsZero() {
		m, overflow := new(uint256.Int).MulDivOverflow(final, uint256.NewInt(10_000), intent.SourceAmount)
		if overflow {
			m = new(uint256.Int)
		}
		margin = m
	} else {
		margin = new(uint256.Int)
	}

	confidence := confidenceScore(ctx, intent, oracle, now)
	orbital := orbitalOptimizationScore(snapshot)

	return &Estimation{
		Gross:        gross,
		Costs:        costs,
		Net:          net,
		Final:        final,
		MarginBps:    margin,
		Confidence:   confidence,
		OrbitalScore: orbital,
	}, nil
}

// derivePoolSnapshot grounds every PoolSnapshot field in a kernel or router
// call against pool rather than accepting it as an opaque caller input:
// the trade's kernel quote and its price impact drive ArbitrageProfit,
// SlippageCost and MEVAdjustment; the kernel's dynamic fee drives
// LPRewards; graph's alternate routes drive PathBonus/PathEfficiency; and
// the kernel's invariant check drives ConstraintHealth.
func derivePoolSnapshot(ctx context.Context, intent *domain.Intent, pool *domain.PoolState, iIn, iOut int, graph *router.Graph) (PoolSnapshot, error) {
	amountOut, err := kernel.AmountOut(pool, iIn, iOut, intent.SourceAmount)
	if err != nil {
		return PoolSnapshot{}, err
	}

	reservesAfter := cloneReserves(pool.Reserves)
	reservesAfter[iIn] = new(uint256.Int).Add(pool.Reserves[iIn], intent.SourceAmount)
	reservesAfter[iOut] = new(uint256.Int).Sub(pool.Reserves[iOut], amountOut)

	impactBp, err := kernel.PriceImpactBp(pool.Reserves, reservesAfter, iIn, iOut)
	if err != nil {
		return PoolSnapshot{}, err
	}
	slippageCost := bpOf(intent.MinDestAmount, impactBp)

	totalLiquidity := sumReserves(pool.Reserves)
	feeBp := kernel.DynamicFeeBp(intent.SourceAmount, totalLiquidity)
	tradingFee := bpOf(amountOut, feeBp)
	lpRewards := new(uint256.Int).Div(tradingFee, uint256.NewInt(2))

	arbitrageProfit := subOrZero(amountOut, intent.MinDestAmount)
	// Orbital pools afford better sandwich protection than a plain AMM; the
	// adjustment is a bid-side enhancement on the arbitrage surplus, not a
	// cost-side term.
	mevAdjustment := bpOf(arbitrageProfit, 1_000)

	pathBonus, pathEfficiency := pathOptimization(ctx, intent, graph, amountOut)

	return PoolSnapshot{
		ArbitrageProfit:      arbitrageProfit,
		LPRewards:            lpRewards,
		MEVAdjustment:        mevAdjustment,
		PathBonus:            pathBonus,
		SlippageCost:         slippageCost,
		PathEfficiency:       pathEfficiency,
		ConstraintHealth:     constraintHealthScore(pool),
		DimensionUtilization: dimensionUtilizationScore(pool),
	}, nil
}

// pathOptimization compares the direct quote (directOut) against the best
// route graph can find for intent, capping the efficiency ratio at 2.0 and
// the bonus itself at 2% of the source amount, matching the original
// estimator's path-optimization bonus.
func pathOptimization(ctx context.Context, intent *domain.Intent, graph *router.Graph, directOut *uint256.Int) (*uint256.Int, float64) {
	if graph == nil || directOut == nil || directOut.IsZero() {
		return new(uint256.Int), 1.0
	}

	route, err := router.Quote(ctx, graph, intent, directOut)
	if err != nil {
		return new(uint256.Int), 1.0
	}
	optimalOut := route.FinalOutput()
	if optimalOut.Cmp(directOut) <= 0 {
		return new(uint256.Int), 1.0
	}

	improvement := new(uint256.Int).Sub(optimalOut, directOut)
	maxBonus := new(uint256.Int).Div(intent.SourceAmount, uint256.NewInt(50)) // 2% cap
	bonus := improvement
	if bonus.Cmp(maxBonus) > 0 {
		bonus = maxBonus
	}

	ratio, overflow := new(uint256.Int).MulDivOverflow(optimalOut, uint256.NewInt(100), directOut)
	efficiency := 2.0
	if !overflow {
		efficiency = float64(ratio.Uint64()) / 100
		if efficiency > 2.0 {
			efficiency = 2.0
		}
	}
	return bonus, efficiency
}

// constraintHealthScore grades a pool by the tightest tolerance its
// invariant still verifies at (10/50/100 bp), falling back to a poor-health
// floor when even the loosest tolerance is violated.
func constraintHealthScore(pool *domain.PoolState) float64 {
	for _, step := range []struct {
		tolBp uint32
		score float64
	}{
		{10, 0.95},
		{50, 0.80},
		{kernel.DefaultInvariantTolBp, 0.60},
	} {
		if ok, err := kernel.VerifyConstraint(pool, step.tolBp); err == nil && ok {
			return step.score
		}
	}
	return 0.30
}

// dimensionUtilizationScore rewards pools with more tokens, since they
// afford more multi-hop routing opportunities for the same trade.
func dimensionUtilizationScore(pool *domain.PoolState) float64 {
	switch {
	case pool.NumTokens() > 5:
		return 0.80
	case pool.NumTokens() > 3:
		return 0.60
	default:
		return 0.30
	}
}

func cloneReserves(reserves []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(reserves))
	for i, r := range reserves {
		out[i] = new(uint256.Int).Set(r)
	}
	return out
}

func sumReserves(reserves []*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, r := range reserves {
		if r == nil {
			continue
		}
		var overflow bool
		sum, overflow = new(uint256.Int).AddOverflow(sum, r)
		if overflow {
			return new(uint256.Int).Not(new(uint256.Int))
		}
	}
	return sum
}

// bpOf returns amount * bp / 10_000, saturating to zero on overflow.
func bpOf(amount *uint256.Int, bp uint32) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(bp)), uint256.NewInt(10_000))
	if overflow {
		return new(uint256.Int)
	}
	return out
}

func addAll(values ...*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, v := range values {
		if v == nil {
			continue
		}
		var overflow bool
		sum, overflow = new(uint256.Int).AddOverflow(sum, v)
		if overflow {
			return new(uint256.Int).Not(new(uint256.Int))
		}
	}
	return sum
}

func subOrZero(a, b *uint256.Int) *uint256.Int {
	if a == nil || b == nil || a.Cmp(b) <= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

func gasCostFor(ctx context.Context, intent *domain.Intent, oracle chain.PriceOracle) (*uint256.Int, error) {
	if oracle == nil {
		return new(uint256.Int), nil
	}
	gasPrice, err := oracle.GasPrice(ctx, intent.SourceChainID)
	if err != nil {
		return nil, err
	}
	// A fixed gas-unit estimate stands in for a real simulation; the
	// executor's on-chain call reports the authoritative figure.
	const estimatedGasUnits = 250_000
	cost, overflow := new(uint256.Int).MulOverflow(gasPrice, uint256.NewInt(estimatedGasUnits))
	if overflow {
		return new(uint256.Int).Not(new(uint256.Int)), nil
	}
	return cost, nil
}

func riskPremium(intent *domain.Intent, cfg Config, oracle chain.PriceOracle, ctx context.Context) *uint256.Int {
	riskBps := uint64(cfg.BaseRiskBps)
	if oracle != nil {
		if vol, err := oracle.TokenVolatilityBp(ctx, intent.SourceToken); err == nil && vol > 1000 {
			riskBps += 50
		}
	}
	if !intent.SameChain() {
		riskBps += 150
	}
	return bpOf(intent.SourceAmount, uint32(riskBps))
}

func crossChainCostFor(intent *domain.Intent) *uint256.Int {
	if intent.SameChain() {
		return new(uint256.Int)
	}
	// Flat bridge overhead estimate; the router supplies the precise
	// bridge fee once a route is chosen.
	return bpOf(intent.SourceAmount, 10)
}

// confidenceScore starts at 100 and subtracts per risk heuristic.
func confidenceScore(ctx context.Context, intent *domain.Intent, oracle chain.PriceOracle, now time.Time) uint8 {
	score := 100
	if !intent.SameChain() {
		score -= 20
	}
	if oracle != nil {
		if vol, err := oracle.TokenVolatilityBp(ctx, intent.SourceToken); err == nil && vol > 1000 {
			score -= 15
		}
		if liq, err := oracle.PairLiquidityScore(ctx, intent.SourceToken, intent.DestToken); err == nil && liq < 70 {
			score -= 25
		}
	}
	if intent.Deadline.Sub(now) < 300*time.Second {
		score -= 30
	}
	if score < 0 {
		score = 0
	}
	return uint8(score)
}

// orbitalOptimizationScore is 0.4*path_efficiency + 0.3*constraint_health +
// 0.3*dimension_utilization, consumed by the auction scoring formula.
// path_efficiency is already capped at 2.0 by pathOptimization, matching
// the original scorer's cap before applying its 0.4 weight.
func orbitalOptimizationScore(snapshot PoolSnapshot) float64 {
	return 0.4*snapshot.PathEfficiency + 0.3*snapshot.ConstraintHealth + 0.3*snapshot.DimensionUtilization
}

// OrbitalScorerFor adapts the kernel/router-grounded optimization score into
// an auction.OrbitalScorer closure, letting the control plane wire this
// estimator's pool-health factors into the auction engine's scoring formula
// without a direct profit<->auction import cycle. It looks up graph fresh
// for every bid/intent pair rather than freezing a snapshot at construction
// time, so the score reflects the pool state at scoring time.
func OrbitalScorerFor(graph *router.Graph) func(bid domain.Bid, intent *domain.Intent) (float64, error) {
	return func(_ domain.Bid, intent *domain.Intent) (float64, error) {
		if graph == nil {
			return 0, nil
		}
		edge, iIn, iOut, ok := router.FindPool(graph, intent.SourceChainID, intent.SourceToken, intent.DestToken)
		if !ok {
			return 0, nil
		}
		snapshot, err := derivePoolSnapshot(context.Background(), intent, edge.Pool, iIn, iOut, graph)
		if err != nil {
			return 0, err
		}
		return orbitalOptimizationScore(snapshot), nil
	}
}
