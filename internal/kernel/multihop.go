package kernel

import (
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// MultiHopResult is the outcome of executing a swap along a token path
// within one pool.
type MultiHopResult struct {
	AmountOut     *uint256.Int
	ReservesAfter []*uint256.Int
	Hops          []Hop
}

// ExecuteMultiHopSwap swaps deltaIn along path (a sequence of at least two
// token indices) within pool, verifying the curve invariant after every
// intermediate transition. It returns SlippageExceeded when the final
// output falls below minOut. The pool snapshot itself is not mutated.
func ExecuteMultiHopSwap(pool *domain.PoolState, path []int, deltaIn, minOut *uint256.Int) (*MultiHopResult, error) {
	if len(path) < 2 {
		return nil, domainerrors.InvalidInput("path", "must contain at least two token indices")
	}
	if deltaIn == nil || deltaIn.IsZero() {
		return nil, domainerrors.InvalidInput("delta_in", "must be greater than zero")
	}
	for _, idx := range path {
		if idx < 0 || idx >= len(pool.Reserves) {
			return nil, domainerrors.InvalidInput("path", "token index out of range")
		}
	}

	reserves := cloneReserves(pool.Reserves)
	amount := new(uint256.Int).Set(deltaIn)
	hops := make([]Hop, 0, len(path)-1)

	for h := 0; h+1 < len(path); h++ {
		iIn, iOut := path[h], path[h+1]
		snapshot := &domain.PoolState{Reserves: reserves, Curve: pool.Curve, K: pool.K}
		out, err := AmountOut(snapshot, iIn, iOut, amount)
		if err != nil {
			return nil, err
		}

		reserves = applyTrade(reserves, iIn, iOut, amount, out)
		stepped := &domain.PoolState{Reserves: reserves, Curve: pool.Curve, K: pool.K}
		ok, err := VerifyConstraint(stepped, DefaultInvariantTolBp)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domainerrors.InvariantViolation("intermediate hop drifted the pool invariant past tolerance")
		}

		hops = append(hops, Hop{TokenIn: iIn, TokenOut: iOut, AmountIn: amount, AmountOut: out})
		amount = out
	}

	if minOut != nil && amount.Cmp(minOut) < 0 {
		return nil, domainerrors.SlippageExceeded(minOut.String(), amount.String())
	}

	return &MultiHopResult{AmountOut: amount, ReservesAfter: reserves, Hops: hops}, nil
}
