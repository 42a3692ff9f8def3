// Package liquidity maintains concentrated-liquidity positions, fee-growth
// accounting, and impermanent-loss/yield estimation.
package liquidity

import (
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// DefaultMinLiquidity is the minimum position size accepted by AddPosition.
const DefaultMinLiquidity = 1000

// fixedPointScale mirrors kernel.Price's 18-decimal scale; duplicated here
// (rather than imported) to keep liquidity depending only on the data model.
var fixedPointScale = uint256.MustFromDecimal("1000000000000000000")

// Manager owns a pool's ticks and positions. Safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	ticks        []*domain.Tick
	positions    map[uint64]*domain.LiquidityPosition
	nextPosition uint64
	minLiquidity *uint256.Int
}

// NewManager creates a Manager over the given ticks (ownership is
// transferred; callers should not mutate ticks concurrently).
func NewManager(ticks []*domain.Tick) *Manager {
	return &Manager{
		ticks:        ticks,
		positions:    make(map[uint64]*domain.LiquidityPosition),
		minLiquidity: uint256.NewInt(DefaultMinLiquidity),
	}
}

// AddPosition registers a new liquidity position over [lo, hi] and returns
// its id. Requires lo < hi, amount >= min_liquidity, and in-range indices.
func (m *Manager) AddPosition(owner common.Address, lo, hi int, amount *uint256.Int, atBlock uint64) (uint64, error) {
	if lo >= hi {
		return 0, domainerrors.InvalidInput("range", "lo must be less than hi")
	}
	if amount == nil || amount.Cmp(m.minLiquidity) < 0 {
		return 0, domainerrors.InvalidInput("amount", "below minimum liquidity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if lo < 0 || hi >= len(m.ticks) {
		return 0, domainerrors.InvalidInput("range", "tick index out of range")
	}

	for i := lo; i <= hi; i++ {
		m.ticks[i].LiquidityGross = addU256(m.ticks[i].LiquidityGross, amount)
	}

	m.nextPosition++
	id := m.nextPosition
	m.positions[id] = &domain.LiquidityPosition{
		ID:                id,
		Owner:             owner,
		LoTick:            lo,
		HiTick:            hi,
		Amount:            amount,
		CreatedAtBlock:    atBlock,
		FeeGrowthSnapshot: m.feeGrowthSnapshotLocked(lo, hi),
		AccruedFees:       new(uint256.Int),
		Active:            true,
	}
	return id, nil
}

// RemovePosition subtracts the position's liquidity from its tick range,
// marks it inactive, and returns (amount, earned fees).
func (m *Manager) RemovePosition(id uint64) (*uint256.Int, *uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok || !pos.Active {
		return nil, nil, domainerrors.NotFound("liquidity_position", strconv.FormatUint(id, 10))
	}

	for i := pos.LoTick; i <= pos.HiTick; i++ {
		t := m.ticks[i]
		if t.LiquidityGross.Cmp(pos.Amount) >= 0 {
			t.LiquidityGross = new(uint256.Int).Sub(t.LiquidityGross, pos.Amount)
		} else {
			t.LiquidityGross = new(uint256.Int)
		}
	}

	current := m.feeGrowthSnapshotLocked(pos.LoTick, pos.HiTick)
	earned := earnedFees(current, pos.FeeGrowthSnapshot, pos.Amount)

	pos.Active = false
	return pos.Amount, earned, nil
}

func earnedFees(current, snapshot, amount *uint256.Int) *uint256.Int {
	var delta *uint256.Int
	if current.Cmp(snapshot) >= 0 {
		delta = new(uint256.Int).Sub(current, snapshot)
	} else {
		delta = new(uint256.Int)
	}
	product, overflow := new(uint256.Int).MulDivOverflow(delta, amount, fixedPointScale)
	if overflow {
		return new(uint256.Int).Not(new(uint256.Int))
	}
	return product
}

// feeGrowthSnapshotLocked returns (Σ fee_growth[i] for i in [lo,hi]) / range_len.
// Caller must hold m.mu.
func (m *Manager) feeGrowthSnapshotLocked(lo, hi int) *uint256.Int {
	sum := new(uint256.Int)
	for i := lo; i <= hi; i++ {
		if m.ticks[i].FeeGrowthOutside != nil {
			sum = addU256(sum, m.ticks[i].FeeGrowthOutside)
		}
	}
	rangeLen := uint256.NewInt(uint64(hi - lo + 1))
	return new(uint256.Int).Div(sum, rangeLen)
}

// DistributeFees splits fees evenly across the given active tick indices,
// appending the share to each tick's per-tick accumulator.
func (m *Manager) DistributeFees(fees *uint256.Int, activeTicks []int) error {
	if len(activeTicks) == 0 {
		return domainerrors.InvalidInput("active_ticks", "must be non-empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	share := new(uint256.Int).Div(fees, uint256.NewInt(uint64(len(activeTicks))))
	for _, idx := range activeTicks {
		if idx < 0 || idx >= len(m.ticks) {
			return domainerrors.InvalidInput("active_ticks", "tick index out of range")
		}
		t := m.ticks[idx]
		if t.FeeGrowthOutside == nil {
			t.FeeGrowthOutside = new(uint256.Int)
		}
		t.FeeGrowthOutside = addU256(t.FeeGrowthOutside, share)
	}
	return nil
}

// ActiveLiquidity sums position.Amount for positions whose full range
// contains the current point, defined as every tick in the position's
// range being "interior" (isTickActive reports true for it).
func (m *Manager) ActiveLiquidity(isTickActive func(tickIndex int) bool) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := new(uint256.Int)
	for _, pos := range m.positions {
		if !pos.Active {
			continue
		}
		contained := true
		for i := pos.LoTick; i <= pos.HiTick; i++ {
			if !isTickActive(i) {
				contained = false
				break
			}
		}
		if contained {
			total = addU256(total, pos.Amount)
		}
	}
	return total
}

// ActiveLiquidityAt sums positions whose full tick range is interior to
// the current reserve point: the point sits strictly on the sphere side of
// every tick plane in the range. Ticks without a plane constant never
// exclude a position.
func (m *Manager) ActiveLiquidityAt(currentReserves []*uint256.Int) *uint256.Int {
	projection := sumU256(currentReserves)
	return m.ActiveLiquidity(func(i int) bool {
		t := m.ticks[i]
		if t.PlaneConstant == nil || t.PlaneConstant.IsZero() {
			return true
		}
		return projection.Cmp(t.PlaneConstant) > 0
	})
}

// ImpermanentLoss returns (ρ-1)²/4 where ρ = Σcurrent/Σinitial, scaled by
// 1e18.
func ImpermanentLoss(initialReserves, currentReserves []*uint256.Int) (*uint256.Int, error) {
	initSum := sumU256(initialReserves)
	currSum := sumU256(currentReserves)
	if initSum.IsZero() {
		return nil, domainerrors.InvalidInput("initial_reserves", "sum must be nonzero")
	}

	rho, overflow := new(uint256.Int).MulDivOverflow(currSum, fixedPointScale, initSum)
	if overflow {
		return nil, domainerrors.Overflow("impermanent_loss")
	}

	var diff uint256.Int
	if rho.Cmp(fixedPointScale) >= 0 {
		diff.Sub(rho, fixedPointScale)
	} else {
		diff.Sub(fixedPointScale, rho)
	}

	sq, overflow := new(uint256.Int).MulDivOverflow(&diff, &diff, fixedPointScale)
	if overflow {
		return nil, domainerrors.Overflow("impermanent_loss")
	}
	return new(uint256.Int).Div(sq, uint256.NewInt(4)), nil
}

func sumU256(values []*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, v := range values {
		sum = addU256(sum, v)
	}
	return sum
}

func addU256(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Add(a, b)
}
