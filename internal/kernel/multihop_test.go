package kernel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

func threeTokenPoolState() *domain.PoolState {
	reserves, K := threeTokenPool()
	return &domain.PoolState{Reserves: reserves, Curve: domain.Sphere(), K: K}
}

func TestExecuteMultiHopSwap_PathSucceeds(t *testing.T) {
	pool := threeTokenPoolState()

	res, err := ExecuteMultiHopSwap(pool, []int{0, 1, 2}, uint256.NewInt(10_000), uint256.NewInt(9_800))
	require.NoError(t, err)
	require.Len(t, res.Hops, 2)
	assert.True(t, res.AmountOut.Sign() > 0)

	ok, err := VerifySphereConstraint(res.ReservesAfter, pool.K, DefaultInvariantTolBp)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecuteMultiHopSwap_SlippageRejected(t *testing.T) {
	pool := threeTokenPoolState()

	_, err := ExecuteMultiHopSwap(pool, []int{0, 1}, uint256.NewInt(10_000), uint256.NewInt(15_000))
	require.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeSlippageExceeded, domainerrors.CodeOf(err))
}

func TestExecuteMultiHopSwap_RejectsShortPath(t *testing.T) {
	pool := threeTokenPoolState()
	_, err := ExecuteMultiHopSwap(pool, []int{0}, uint256.NewInt(10_000), nil)
	assert.Error(t, err)
}

func TestExecuteMultiHopSwap_DoesNotMutateSnapshot(t *testing.T) {
	pool := threeTokenPoolState()
	before := pool.Reserves[0].Clone()

	_, err := ExecuteMultiHopSwap(pool, []int{0, 1, 2}, uint256.NewInt(10_000), nil)
	require.NoError(t, err)
	assert.Equal(t, before.String(), pool.Reserves[0].String())
}

func TestAmountOutSphere_RoundTripReturnsApproximateInput(t *testing.T) {
	reserves, K := threeTokenPool()
	deltaIn := uint256.NewInt(10_000)

	out, err := AmountOutSphere(reserves, 0, 1, deltaIn, K)
	require.NoError(t, err)

	after := applyTrade(reserves, 0, 1, deltaIn, out)
	back, err := AmountOutSphere(after, 1, 0, out, K)
	require.NoError(t, err)

	assert.True(t, back.Cmp(uint256.NewInt(9_990)) >= 0, "back=%s", back)
	assert.True(t, back.Cmp(uint256.NewInt(10_010)) <= 0, "back=%s", back)
}
