// Package kernel implements the orbital math kernel: pure,
// deterministic functions over pool reserves. Nothing here suspends,
// retries, or touches shared state — every function operates on a
// caller-supplied snapshot.
package kernel

import (
	"github.com/holiman/uint256"

	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// newtonIterations is the fixed iteration count for the Newton's-method
// sqrt inversion in AmountOutSphere.
const newtonIterations = 10

// bp10000 is the basis-point denominator used throughout the kernel.
var bp10000 = uint256.NewInt(10_000)

// DefaultInvariantTolBp is the tolerance applied when no caller-specific
// tolerance is warranted: 100 basis points of drift from K is accepted
// before a pool's spherical/superellipse invariant is considered violated.
const DefaultInvariantTolBp uint32 = 100

// VerifySphereConstraint reports whether Σ rᵢ² lies within tolBp basis
// points of K. Used before and after every mutation to detect drift.
func VerifySphereConstraint(reserves []*uint256.Int, K *uint256.Int, tolBp uint32) (bool, error) {
	s, err := sumOfSquares(reserves)
	if err != nil {
		return false, err
	}

	tol, overflow := new(uint256.Int).MulDivOverflow(K, uint256.NewInt(uint64(tolBp)), bp10000)
	if overflow {
		return false, domainerrors.Overflow("verify_sphere_constraint")
	}

	lower := new(uint256.Int)
	if tol.Cmp(K) >= 0 {
		lower.Clear()
	} else {
		lower.Sub(K, tol)
	}
	upper, overflow := new(uint256.Int).AddOverflow(K, tol)
	if overflow {
		upper = uint256.NewInt(0).Not(uint256.NewInt(0)) // saturate to max uint256
	}

	return s.Cmp(lower) >= 0 && s.Cmp(upper) <= 0, nil
}

func sumOfSquares(reserves []*uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int)
	for _, r := range reserves {
		if r == nil || r.IsZero() {
			return nil, domainerrors.InvalidInput("reserves", "all reserves must be strictly positive")
		}
		sq, overflow := new(uint256.Int).MulOverflow(r, r)
		if overflow {
			return nil, domainerrors.Overflow("sum_of_squares")
		}
		var addOverflow bool
		sum, addOverflow = new(uint256.Int).AddOverflow(sum, sq)
		if addOverflow {
			return nil, domainerrors.Overflow("sum_of_squares")
		}
	}
	return sum, nil
}

// AmountOutSphere computes the output amount for a trade of Δin of token
// iIn into token iOut, maintaining Σ rⱼ² = K via Newton's-method sqrt
// inversion (fixed 10 iterations, early exit on non-decreasing step).
func AmountOutSphere(reserves []*uint256.Int, iIn, iOut int, deltaIn *uint256.Int, K *uint256.Int) (*uint256.Int, error) {
	if iIn == iOut {
		return nil, domainerrors.InvalidInput("indices", "i_in and i_out must differ")
	}
	if iIn < 0 || iIn >= len(reserves) || iOut < 0 || iOut >= len(reserves) {
		return nil, domainerrors.InvalidInput("indices", "index out of range")
	}
	if deltaIn == nil || deltaIn.IsZero() {
		return nil, domainerrors.InvalidInput("delta_in", "must be greater than zero")
	}

	reserveIn := reserves[iIn]
	if reserveIn == nil || reserveIn.IsZero() {
		return nil, domainerrors.InvalidInput("reserves", "reserve_in must be strictly positive")
	}

	reserveInNew, overflow := new(uint256.Int).AddOverflow(reserveIn, deltaIn)
	if overflow {
		return nil, domainerrors.Overflow("amount_out_sphere")
	}

	// S' = Σ_{j != i_out} (r_j')^2, using reserveInNew for j == i_in.
	sPrime := new(uint256.Int)
	for j, r := range reserves {
		if j == iOut {
			continue
		}
		rj := r
		if j == iIn {
			rj = reserveInNew
		}
		if rj == nil || rj.IsZero() {
			return nil, domainerrors.InvalidInput("reserves", "all reserves must be strictly positive")
		}
		sq, ovf := new(uint256.Int).MulOverflow(rj, rj)
		if ovf {
			return nil, domainerrors.Overflow("amount_out_sphere")
		}
		var addOvf bool
		sPrime, addOvf = new(uint256.Int).AddOverflow(sPrime, sq)
		if addOvf {
			return nil, domainerrors.Overflow("amount_out_sphere")
		}
	}

	if sPrime.Cmp(K) > 0 {
		return nil, domainerrors.InsufficientLiquidity("trade would require an imaginary reserve")
	}

	target := new(uint256.Int).Sub(K, sPrime)
	reserveOutNew, err := isqrtNewton(target, reserves[iOut])
	if err != nil {
		return nil, err
	}

	reserveOut := reserves[iOut]
	if reserveOutNew.Cmp(reserveOut) >= 0 {
		return nil, domainerrors.InsufficientLiquidity("trade does not reduce reserve_out")
	}

	return new(uint256.Int).Sub(reserveOut, reserveOutNew), nil
}

// isqrtNewton computes ⌊√target⌋ using Newton's method seeded from seed,
// a fixed 10 iterations, with an early exit when a step stops decreasing.
func isqrtNewton(target, seed *uint256.Int) (*uint256.Int, error) {
	if target.IsZero() {
		return new(uint256.Int), nil
	}
	x := new(uint256.Int).Set(seed)
	if x.IsZero() {
		x = uint256.NewInt(1)
	}

	for i := 0; i < newtonIterations; i++ {
		quotient := new(uint256.Int).Div(target, x)
		sum, overflow := new(uint256.Int).AddOverflow(x, quotient)
		if overflow {
			return nil, domainerrors.Overflow("isqrt_newton")
		}
		next := sum.Rsh(sum, 1)
		if next.Cmp(x) >= 0 {
			break
		}
		x = next
	}

	// Correct for Newton's method overshoot/undershoot: x*x may exceed
	// target by one ULP in either direction.
	for {
		sq, overflow := new(uint256.Int).MulOverflow(x, x)
		if overflow || sq.Cmp(target) > 0 {
			x = new(uint256.Int).Sub(x, uint256.NewInt(1))
			continue
		}
		break
	}
	for {
		next := new(uint256.Int).Add(x, uint256.NewInt(1))
		sq, overflow := new(uint256.Int).MulOverflow(next, next)
		if !overflow && sq.Cmp(target) <= 0 {
			x = next
			continue
		}
		break
	}

	return x, nil
}

// fixedPointScale is the 18-decimal fixed-point scale used by Price.
var fixedPointScale = uint256.MustFromDecimal("1000000000000000000")

// Price returns reserve_in * 1e18 / reserve_out as an 18-decimal fixed
// point number.
func Price(reserves []*uint256.Int, iIn, iOut int) (*uint256.Int, error) {
	if iIn == iOut || iIn < 0 || iOut < 0 || iIn >= len(reserves) || iOut >= len(reserves) {
		return nil, domainerrors.InvalidInput("indices", "invalid price index pair")
	}
	reserveOut := reserves[iOut]
	if reserveOut == nil || reserveOut.IsZero() {
		return nil, domainerrors.InvalidInput("reserves", "reserve_out must be strictly positive")
	}
	result, overflow := new(uint256.Int).MulDivOverflow(reserves[iIn], fixedPointScale, reserveOut)
	if overflow {
		return nil, domainerrors.Overflow("price")
	}
	return result, nil
}

// PriceImpactBp returns |p_after - p_before| * 10000 / p_before in basis
// points, clamped to math.MaxUint32.
func PriceImpactBp(reservesBefore, reservesAfter []*uint256.Int, i, j int) (uint32, error) {
	before, err := Price(reservesBefore, i, j)
	if err != nil {
		return 0, err
	}
	after, err := Price(reservesAfter, i, j)
	if err != nil {
		return 0, err
	}
	if before.IsZero() {
		return 0, domainerrors.InvalidInput("reserves", "price_before must be nonzero")
	}

	var diff uint256.Int
	if after.Cmp(before) >= 0 {
		diff.Sub(after, before)
	} else {
		diff.Sub(before, after)
	}

	impact, overflow := new(uint256.Int).MulDivOverflow(&diff, bp10000, before)
	if overflow || !impact.IsUint64() || impact.Uint64() > uint64(^uint32(0)) {
		return ^uint32(0), nil
	}
	return uint32(impact.Uint64()), nil
}

// DynamicFeeBp computes the per-swap fee: a 30 bp floor plus a
// utilization surcharge capped at an additional 100 bp.
func DynamicFeeBp(deltaIn, totalLiquidity *uint256.Int) uint32 {
	if totalLiquidity == nil || totalLiquidity.IsZero() {
		return 30
	}
	utilization, overflow := new(uint256.Int).MulDivOverflow(deltaIn, bp10000, totalLiquidity)
	if overflow {
		return 130
	}
	surcharge := new(uint256.Int).Div(utilization, uint256.NewInt(100))
	if surcharge.Cmp(uint256.NewInt(100)) > 0 {
		surcharge = uint256.NewInt(100)
	}
	return 30 + uint32(surcharge.Uint64())
}
