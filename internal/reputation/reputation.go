// Package reputation declares the Reputation Oracle interface consumed by
// the auction engine. Implementations (on-chain registry lookups,
// off-chain scoring services) are out of scope for this core.
package reputation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxScore is the upper bound of the score scale returned by Oracle.Score.
const MaxScore = 10_000

// Oracle is the pure-read reputation interface consulted on every bid
// admission and in the auction scoring formula.
type Oracle interface {
	// Score returns the solver's reputation in [0, MaxScore].
	Score(solver common.Address) (uint32, error)
	// Eligible reports whether solver may bid on a trade of the given
	// source amount (reputation + capacity check).
	Eligible(solver common.Address, sourceAmount *uint256.Int) (bool, error)
}

// NoopOracle is a permissive Oracle useful for tests and for running the
// control plane before a real reputation service is wired in: every
// solver scores at the maximum and is always eligible.
type NoopOracle struct{}

func (NoopOracle) Score(common.Address) (uint32, error) { return MaxScore, nil }

func (NoopOracle) Eligible(common.Address, *uint256.Int) (bool, error) { return true, nil }
