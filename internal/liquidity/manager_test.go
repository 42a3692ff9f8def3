package liquidity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

func newTicks(n int) []*domain.Tick {
	ticks := make([]*domain.Tick, n)
	for i := range ticks {
		ticks[i] = &domain.Tick{
			Index:            i,
			LiquidityGross:   new(uint256.Int),
			FeeGrowthOutside: new(uint256.Int),
		}
	}
	return ticks
}

func TestAddPosition_RejectsBadRange(t *testing.T) {
	m := NewManager(newTicks(5))
	_, err := m.AddPosition(common.Address{}, 3, 1, uint256.NewInt(DefaultMinLiquidity), 1)
	assert.Error(t, err)
}

func TestAddPosition_RejectsBelowMinimum(t *testing.T) {
	m := NewManager(newTicks(5))
	_, err := m.AddPosition(common.Address{}, 0, 2, uint256.NewInt(1), 1)
	assert.Error(t, err)
}

func TestAddThenRemovePosition(t *testing.T) {
	m := NewManager(newTicks(5))
	id, err := m.AddPosition(common.Address{1}, 0, 2, uint256.NewInt(5000), 1)
	require.NoError(t, err)

	amount, fees, err := m.RemovePosition(id)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(5000).String(), amount.String())
	assert.NotNil(t, fees)
}

func TestDistributeFees(t *testing.T) {
	m := NewManager(newTicks(5))
	err := m.DistributeFees(uint256.NewInt(100), []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(50).String(), m.ticks[0].FeeGrowthOutside.String())
}

func TestActiveLiquidityAt_CountsInteriorPositions(t *testing.T) {
	ticks := newTicks(5)
	for _, tick := range ticks {
		tick.PlaneConstant = uint256.NewInt(1_000)
	}
	m := NewManager(ticks)

	_, err := m.AddPosition(common.Address{1}, 0, 2, uint256.NewInt(5000), 1)
	require.NoError(t, err)

	inside := m.ActiveLiquidityAt([]*uint256.Int{uint256.NewInt(900), uint256.NewInt(900)})
	assert.Equal(t, uint64(5000), inside.Uint64())

	outside := m.ActiveLiquidityAt([]*uint256.Int{uint256.NewInt(100), uint256.NewInt(100)})
	assert.True(t, outside.IsZero())
}

func TestImpermanentLoss_NoChange(t *testing.T) {
	initial := []*uint256.Int{uint256.NewInt(100), uint256.NewInt(100)}
	current := []*uint256.Int{uint256.NewInt(100), uint256.NewInt(100)}
	il, err := ImpermanentLoss(initial, current)
	require.NoError(t, err)
	assert.True(t, il.IsZero())
}

func TestImpermanentLoss_PriceMoved(t *testing.T) {
	initial := []*uint256.Int{uint256.NewInt(100), uint256.NewInt(100)}
	current := []*uint256.Int{uint256.NewInt(150), uint256.NewInt(100)}
	il, err := ImpermanentLoss(initial, current)
	require.NoError(t, err)
	assert.True(t, il.Sign() > 0)
}
