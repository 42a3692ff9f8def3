package kernel

import (
	"github.com/holiman/uint256"

	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/domain"
)

// AmountOut dispatches to the curve-appropriate pricing function; adding a
// curve means adding one branch here and one in VerifyConstraint.
func AmountOut(pool *domain.PoolState, iIn, iOut int, deltaIn *uint256.Int) (*uint256.Int, error) {
	switch pool.Curve.Kind {
	case domain.CurveSphere:
		return AmountOutSphere(pool.Reserves, iIn, iOut, deltaIn, pool.K)
	case domain.CurveSuperellipse:
		return AmountOutSuperellipse(pool.Reserves, iIn, iOut, deltaIn, pool.K, pool.Curve.U)
	default:
		return nil, domainerrors.InvalidInput("curve", "unknown curve kind")
	}
}

// VerifyConstraint dispatches the invariant check for pool's curve.
func VerifyConstraint(pool *domain.PoolState, tolBp uint32) (bool, error) {
	switch pool.Curve.Kind {
	case domain.CurveSphere:
		return VerifySphereConstraint(pool.Reserves, pool.K, tolBp)
	case domain.CurveSuperellipse:
		return VerifySuperellipseConstraint(pool.Reserves, pool.K, pool.Curve.U, tolBp)
	default:
		return false, domainerrors.InvalidInput("curve", "unknown curve kind")
	}
}

// Hop is one leg of a multi-hop route within a single pool.
type Hop struct {
	TokenIn   int
	TokenOut  int
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// OptimalRoute enumerates every intermediate token k != i,j and returns the
// best chained output for amount_out(k,j, amount_out(i,k,Δin)). For
// maxHops == 1 it returns the direct pair; hop counts above 2 are not
// explored by this exhaustive search (pools top out at a few dozen tokens,
// making 2-hop search the practical ceiling).
func OptimalRoute(pool *domain.PoolState, i, j int, deltaIn *uint256.Int, maxHops int) ([]Hop, *uint256.Int, error) {
	if maxHops < 1 {
		return nil, nil, domainerrors.InvalidInput("max_hops", "must be at least 1")
	}

	direct, directErr := AmountOut(pool, i, j, deltaIn)
	if maxHops == 1 {
		if directErr != nil {
			return nil, nil, directErr
		}
		return []Hop{{TokenIn: i, TokenOut: j, AmountIn: deltaIn, AmountOut: direct}}, direct, nil
	}

	var bestRoute []Hop
	var bestOut *uint256.Int
	if directErr == nil {
		bestRoute = []Hop{{TokenIn: i, TokenOut: j, AmountIn: deltaIn, AmountOut: direct}}
		bestOut = direct
	}

	n := len(pool.Reserves)
	for k := 0; k < n; k++ {
		if k == i || k == j {
			continue
		}
		mid, err := AmountOut(pool, i, k, deltaIn)
		if err != nil {
			continue
		}
		final, err := AmountOut(pool, k, j, mid)
		if err != nil {
			continue
		}
		if bestOut == nil || final.Cmp(bestOut) > 0 {
			bestOut = final
			bestRoute = []Hop{
				{TokenIn: i, TokenOut: k, AmountIn: deltaIn, AmountOut: mid},
				{TokenIn: k, TokenOut: j, AmountIn: mid, AmountOut: final},
			}
		}
	}

	if bestOut == nil {
		return nil, nil, domainerrors.InsufficientLiquidity("no viable route found")
	}
	return bestRoute, bestOut, nil
}
