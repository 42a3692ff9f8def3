package kernel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

func threeTokenPool() ([]*uint256.Int, *uint256.Int) {
	r := []*uint256.Int{
		uint256.NewInt(1_000_000),
		uint256.NewInt(1_000_000),
		uint256.NewInt(1_000_000),
	}
	K := new(uint256.Int)
	for _, ri := range r {
		sq := new(uint256.Int).Mul(ri, ri)
		K.Add(K, sq)
	}
	return r, K
}

func TestVerifySphereConstraint(t *testing.T) {
	reserves, K := threeTokenPool()
	ok, err := VerifySphereConstraint(reserves, K, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAmountOutSphere_DirectSwap(t *testing.T) {
	reserves, K := threeTokenPool()
	deltaIn := uint256.NewInt(10_000)

	out, err := AmountOutSphere(reserves, 0, 1, deltaIn, K)
	require.NoError(t, err)

	// Pre-fee sphere output lands within ~1% of the input amount; the
	// dynamic fee is assessed separately by DynamicFeeBp.
	assert.True(t, out.Cmp(uint256.NewInt(9_950)) >= 0, "out=%s", out)
	assert.True(t, out.Cmp(uint256.NewInt(10_150)) <= 0, "out=%s", out)

	after := make([]*uint256.Int, len(reserves))
	after[0] = new(uint256.Int).Add(reserves[0], deltaIn)
	after[1] = new(uint256.Int).Sub(reserves[1], out)
	after[2] = reserves[2]

	ok, err := VerifySphereConstraint(after, K, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAmountOutSphere_SameIndexRejected(t *testing.T) {
	reserves, K := threeTokenPool()
	_, err := AmountOutSphere(reserves, 0, 0, uint256.NewInt(1), K)
	assert.Error(t, err)
}

func TestAmountOutSphere_ZeroDeltaRejected(t *testing.T) {
	reserves, K := threeTokenPool()
	_, err := AmountOutSphere(reserves, 0, 1, uint256.NewInt(0), K)
	assert.Error(t, err)
}

func TestAmountOutSphere_ZeroReserveRejected(t *testing.T) {
	reserves, K := threeTokenPool()
	reserves[2] = uint256.NewInt(0)
	_, err := AmountOutSphere(reserves, 0, 1, uint256.NewInt(1000), K)
	assert.Error(t, err)
}

func TestPrice(t *testing.T) {
	reserves := []*uint256.Int{uint256.NewInt(2_000_000), uint256.NewInt(1_000_000)}
	p, err := Price(reserves, 0, 1)
	require.NoError(t, err)
	want := new(uint256.Int).Mul(uint256.NewInt(2), fixedPointScale)
	assert.Equal(t, want.String(), p.String())
}

func TestDynamicFeeBp_FloorAndCap(t *testing.T) {
	assert.Equal(t, uint32(30), DynamicFeeBp(uint256.NewInt(1), uint256.NewInt(1_000_000_000)))
	assert.Equal(t, uint32(130), DynamicFeeBp(uint256.NewInt(1_000_000_000), uint256.NewInt(1)))
}

func TestOptimalRoute_DirectWhenSingleHop(t *testing.T) {
	reserves, K := threeTokenPool()
	pool := &domain.PoolState{Reserves: reserves, Curve: domain.Sphere(), K: K}
	hops, out, err := OptimalRoute(pool, 0, 1, uint256.NewInt(10_000), 1)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	assert.True(t, out.Sign() > 0)
}

func TestOptimalRoute_MultiHopConsidersIntermediate(t *testing.T) {
	reserves, K := threeTokenPool()
	pool := &domain.PoolState{Reserves: reserves, Curve: domain.Sphere(), K: K}
	hops, out, err := OptimalRoute(pool, 0, 1, uint256.NewInt(10_000), 2)
	require.NoError(t, err)
	assert.NotEmpty(t, hops)
	assert.True(t, out.Sign() > 0)
}
