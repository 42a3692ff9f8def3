package kernel

import (
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// boundaryFeeMultiplier is applied (x1.5) to the base dynamic fee when a
// trade crosses a tick boundary.
const boundaryFeeMultiplierNum = 3
const boundaryFeeMultiplierDen = 2

// crossingSearchRounds bounds the bisection that pins the input amount
// consumed reaching a tick plane. 64 rounds resolve any uint64-sized trade
// to a single unit.
const crossingSearchRounds = 64

// TradeResult is the outcome of executing a (possibly multi-segment)
// toroidal trade.
type TradeResult struct {
	AmountOut     *uint256.Int
	ReservesAfter []*uint256.Int
	CrossedTicks  []int
	TotalFeeBp    uint32
}

// ExecuteToroidalTrade splits a trade across tick boundaries. When
// pool has no ticks, it executes a single sphere/superellipse step. Each
// segment that crosses a tick boundary pays the boundary-crossing fee
// (base dynamic fee x1.5) and flips that tick's IsBoundary flag.
func ExecuteToroidalTrade(pool *domain.PoolState, iIn, iOut int, deltaIn *uint256.Int, totalLiquidity *uint256.Int) (*TradeResult, error) {
	if len(pool.Ticks) == 0 {
		out, err := AmountOut(pool, iIn, iOut, deltaIn)
		if err != nil {
			return nil, err
		}
		after := applyTrade(pool.Reserves, iIn, iOut, deltaIn, out)
		return &TradeResult{AmountOut: out, ReservesAfter: after, TotalFeeBp: DynamicFeeBp(deltaIn, totalLiquidity)}, nil
	}

	reserves := cloneReserves(pool.Reserves)
	remaining := new(uint256.Int).Set(deltaIn)
	totalOut := new(uint256.Int)
	var crossed []int
	baseFee := DynamicFeeBp(deltaIn, totalLiquidity)
	maxFee := baseFee

	for iterations := 0; !remaining.IsZero(); iterations++ {
		if iterations > len(pool.Ticks)+1 {
			return nil, domainerrors.InvariantViolation("no progress")
		}

		snapshot := &domain.PoolState{Reserves: reserves, Curve: pool.Curve, K: pool.K}
		crossingIdx, consumed, err := findNextCrossing(snapshot, pool.Ticks, iIn, iOut, remaining)
		if err != nil {
			return nil, err
		}
		if crossingIdx < 0 {
			out, err := AmountOut(snapshot, iIn, iOut, remaining)
			if err != nil {
				return nil, err
			}
			reserves = applyTrade(reserves, iIn, iOut, remaining, out)
			totalOut = new(uint256.Int).Add(totalOut, out)
			remaining = new(uint256.Int)
			break
		}

		if consumed.IsZero() {
			return nil, domainerrors.InvariantViolation("no progress")
		}

		out, err := AmountOut(snapshot, iIn, iOut, consumed)
		if err != nil {
			return nil, err
		}
		reserves = applyTrade(reserves, iIn, iOut, consumed, out)
		totalOut = new(uint256.Int).Add(totalOut, out)

		pool.Ticks[crossingIdx].IsBoundary = !pool.Ticks[crossingIdx].IsBoundary
		crossed = append(crossed, pool.Ticks[crossingIdx].Index)
		boundaryFee := baseFee * boundaryFeeMultiplierNum / boundaryFeeMultiplierDen
		if boundaryFee > maxFee {
			maxFee = boundaryFee
		}

		if consumed.Cmp(remaining) >= 0 {
			remaining = new(uint256.Int)
		} else {
			remaining = new(uint256.Int).Sub(remaining, consumed)
		}
	}

	return &TradeResult{AmountOut: totalOut, ReservesAfter: reserves, CrossedTicks: crossed, TotalFeeBp: maxFee}, nil
}

// findNextCrossing locates the nearest tick plane crossed by the path from
// the current reserve point to the post-trade target. Tick planes are
// equal-weight hyperplanes over the reserve sum; a tick is crossed when the
// sum projection passes its PlaneConstant. The input amount consumed
// reaching the boundary is pinned by bisection (exact inversion of the
// curve formula has no closed form once the output leg bends the
// projection). Returns (-1, nil, nil) when no plane lies on the path.
func findNextCrossing(pool *domain.PoolState, ticks []*domain.Tick, iIn, iOut int, remaining *uint256.Int) (int, *uint256.Int, error) {
	projStart := reserveSum(pool.Reserves)
	projEnd, err := projectionAfter(pool, iIn, iOut, remaining)
	if err != nil {
		return -1, nil, err
	}

	bestIdx := -1
	var bestC *uint256.Int
	for idx, t := range ticks {
		if t.IsBoundary || t.PlaneConstant == nil || t.PlaneConstant.IsZero() {
			continue
		}
		if !between(t.PlaneConstant, projStart, projEnd) {
			continue
		}
		if bestC == nil || closerTo(projStart, t.PlaneConstant, bestC) {
			bestIdx, bestC = idx, t.PlaneConstant
		}
	}
	if bestIdx < 0 {
		return -1, nil, nil
	}

	consumed, err := bisectCrossing(pool, iIn, iOut, remaining, projStart, bestC)
	if err != nil {
		return -1, nil, err
	}
	return bestIdx, consumed, nil
}

// bisectCrossing finds the smallest input amount whose post-trade sum
// projection reaches planeC, searching [1, remaining].
func bisectCrossing(pool *domain.PoolState, iIn, iOut int, remaining, projStart, planeC *uint256.Int) (*uint256.Int, error) {
	decreasing := planeC.Cmp(projStart) < 0

	lo := uint256.NewInt(1)
	hi := new(uint256.Int).Set(remaining)
	for i := 0; i < crossingSearchRounds; i++ {
		if lo.Cmp(hi) >= 0 {
			break
		}
		span := new(uint256.Int).Sub(hi, lo)
		mid := new(uint256.Int).Add(lo, new(uint256.Int).Rsh(span, 1))
		proj, err := projectionAfter(pool, iIn, iOut, mid)
		if err != nil {
			// Too large a step for the pool; the crossing, if any, lies below.
			hi = mid
			continue
		}
		reached := proj.Cmp(planeC) <= 0
		if !decreasing {
			reached = proj.Cmp(planeC) >= 0
		}
		if reached {
			hi = mid
		} else {
			lo = new(uint256.Int).Add(mid, uint256.NewInt(1))
		}
	}
	return hi, nil
}

// projectionAfter evaluates the reserve-sum projection after trading delta
// of iIn for iOut against the current reserves.
func projectionAfter(pool *domain.PoolState, iIn, iOut int, delta *uint256.Int) (*uint256.Int, error) {
	out, err := AmountOut(pool, iIn, iOut, delta)
	if err != nil {
		return nil, err
	}
	after := applyTrade(pool.Reserves, iIn, iOut, delta, out)
	return reserveSum(after), nil
}

func reserveSum(reserves []*uint256.Int) *uint256.Int {
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

// between reports whether c lies strictly between a and b (in either order).
func between(c, a, b *uint256.Int) bool {
	if a.Cmp(b) <= 0 {
		return c.Cmp(a) > 0 && c.Cmp(b) < 0
	}
	return c.Cmp(b) > 0 && c.Cmp(a) < 0
}

// closerTo reports whether x is nearer to origin than y.
func closerTo(origin, x, y *uint256.Int) bool {
	return absDiff(origin, x).Cmp(absDiff(origin, y)) < 0
}

func absDiff(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) >= 0 {
		return new(uint256.Int).Sub(a, b)
	}
	return new(uint256.Int).Sub(b, a)
}

func applyTrade(reserves []*uint256.Int, iIn, iOut int, deltaIn, deltaOut *uint256.Int) []*uint256.Int {
	out := cloneReserves(reserves)
	out[iIn] = new(uint256.Int).Add(out[iIn], deltaIn)
	out[iOut] = new(uint256.Int).Sub(out[iOut], deltaOut)
	return out
}

func cloneReserves(reserves []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(reserves))
	for i, r := range reserves {
		out[i] = new(uint256.Int).Set(r)
	}
	return out
}
