package kernel

import (
	"github.com/holiman/uint256"

	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// uScale is the 1e4 scale applied to the superellipse exponent u.
var uScale = uint256.NewInt(10_000)

// VerifySuperellipseConstraint checks Σ|rⱼ|^u = K within tolBp. u is
// scaled by 1e4; u == 2*1e4 delegates to the sphere check, which the
// degree-2 superellipse equals exactly.
func VerifySuperellipseConstraint(reserves []*uint256.Int, K *uint256.Int, uScaled uint32, tolBp uint32) (bool, error) {
	if uScaled == 20_000 {
		return VerifySphereConstraint(reserves, K, tolBp)
	}
	if uScaled < 20_000 {
		return false, domainerrors.InvalidInput("u", "superellipse exponent must satisfy u >= 2")
	}

	s, err := sumOfPowers(reserves, uScaled)
	if err != nil {
		return false, err
	}

	tol, overflow := new(uint256.Int).MulDivOverflow(K, uint256.NewInt(uint64(tolBp)), bp10000)
	if overflow {
		return false, domainerrors.Overflow("verify_superellipse_constraint")
	}
	lower := new(uint256.Int)
	if tol.Cmp(K) >= 0 {
		lower.Clear()
	} else {
		lower.Sub(K, tol)
	}
	upper, overflow := new(uint256.Int).AddOverflow(K, tol)
	if overflow {
		upper = new(uint256.Int).Not(uint256.NewInt(0))
	}
	return s.Cmp(lower) >= 0 && s.Cmp(upper) <= 0, nil
}

// sumOfPowers computes Σ rⱼ^(u/1e4) using repeated-squaring for the
// integer part of the exponent. Non-integer exponents (u not a multiple of
// 1e4) are not expressible in 256-bit checked arithmetic and are rejected;
// this matches the kernel's "checked arithmetic on swap math" requirement.
func sumOfPowers(reserves []*uint256.Int, uScaled uint32) (*uint256.Int, error) {
	if uScaled%10_000 != 0 {
		return nil, domainerrors.InvalidInput("u", "fractional superellipse exponents are not supported by the checked-arithmetic kernel")
	}
	exp := uint64(uScaled / 10_000)

	sum := new(uint256.Int)
	for _, r := range reserves {
		if r == nil || r.IsZero() {
			return nil, domainerrors.InvalidInput("reserves", "all reserves must be strictly positive")
		}
		pow, err := checkedPow(r, exp)
		if err != nil {
			return nil, err
		}
		var overflow bool
		sum, overflow = new(uint256.Int).AddOverflow(sum, pow)
		if overflow {
			return nil, domainerrors.Overflow("sum_of_powers")
		}
	}
	return sum, nil
}

func checkedPow(base *uint256.Int, exp uint64) (*uint256.Int, error) {
	result := uint256.NewInt(1)
	b := new(uint256.Int).Set(base)
	for exp > 0 {
		if exp&1 == 1 {
			var overflow bool
			result, overflow = new(uint256.Int).MulOverflow(result, b)
			if overflow {
				return nil, domainerrors.Overflow("checked_pow")
			}
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		var overflow bool
		b, overflow = new(uint256.Int).MulOverflow(b, b)
		if overflow {
			return nil, domainerrors.Overflow("checked_pow")
		}
	}
	return result, nil
}

// AmountOutSuperellipse computes the output amount for a superellipse
// curve. u == 2*1e4 delegates to the closed-form sphere solver (fast
// Newton sqrt inversion); other exponents fall back to a bounded binary
// search over the output reserve since no closed-form root exists for
// Σ rⱼ^u = K in integer arithmetic.
func AmountOutSuperellipse(reserves []*uint256.Int, iIn, iOut int, deltaIn *uint256.Int, K *uint256.Int, uScaled uint32) (*uint256.Int, error) {
	if uScaled == 20_000 {
		return AmountOutSphere(reserves, iIn, iOut, deltaIn, K)
	}
	if uScaled%10_000 != 0 {
		return nil, domainerrors.InvalidInput("u", "fractional superellipse exponents are not supported by the checked-arithmetic kernel")
	}
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
	reserveInNew, overflow := new(uint256.Int).AddOverflow(reserveIn, deltaIn)
	if overflow {
		return nil, domainerrors.Overflow("amount_out_superellipse")
	}

	// S' = Σ_{j != i_out} (r_j')^u, j == i_in uses reserveInNew.
	sPrime := new(uint256.Int)
	exp := uint64(uScaled / 10_000)
	for j, r := range reserves {
		if j == iOut {
			continue
		}
		rj := r
		if j == iIn {
			rj = reserveInNew
		}
		pow, err := checkedPow(rj, exp)
		if err != nil {
			return nil, err
		}
		var addOvf bool
		sPrime, addOvf = new(uint256.Int).AddOverflow(sPrime, pow)
		if addOvf {
			return nil, domainerrors.Overflow("amount_out_superellipse")
		}
	}
	if sPrime.Cmp(K) > 0 {
		return nil, domainerrors.InsufficientLiquidity("trade would require an imaginary reserve")
	}
	target := new(uint256.Int).Sub(K, sPrime)

	reserveOut := reserves[iOut]
	reserveOutNew, err := binarySearchRoot(target, reserveOut, exp)
	if err != nil {
		return nil, err
	}
	if reserveOutNew.Cmp(reserveOut) >= 0 {
		return nil, domainerrors.InsufficientLiquidity("trade does not reduce reserve_out")
	}
	return new(uint256.Int).Sub(reserveOut, reserveOutNew), nil
}

// binarySearchRoot finds the largest x such that x^exp <= target, searching
// [0, hi] where hi is seeded from the current reserve (doubled until it
// brackets the root) to bound the number of iterations.
func binarySearchRoot(target, seed *uint256.Int, exp uint64) (*uint256.Int, error) {
	if target.IsZero() {
		return new(uint256.Int), nil
	}

	hi := new(uint256.Int).Set(seed)
	if hi.IsZero() {
		hi = uint256.NewInt(1)
	}
	for {
		pow, err := checkedPow(hi, exp)
		if err != nil || pow.Cmp(target) >= 0 {
			break
		}
		next, ovf := new(uint256.Int).MulOverflow(hi, uint256.NewInt(2))
		if ovf {
			break
		}
		hi = next
	}

	lo := new(uint256.Int)
	for i := 0; i < 256; i++ {
		if lo.Cmp(hi) >= 0 {
			break
		}
		diff := new(uint256.Int).Sub(hi, lo)
		if diff.IsZero() {
			break
		}
		mid := new(uint256.Int).Add(lo, new(uint256.Int).Rsh(new(uint256.Int).Add(diff, uint256.NewInt(1)), 1))
		pow, err := checkedPow(mid, exp)
		if err != nil {
			hi = new(uint256.Int).Sub(mid, uint256.NewInt(1))
			continue
		}
		if pow.Cmp(target) <= 0 {
			lo = mid
		} else {
			hi = new(uint256.Int).Sub(mid, uint256.NewInt(1))
		}
	}
	return lo, nil
}
