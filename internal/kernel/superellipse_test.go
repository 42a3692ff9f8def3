package kernel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cubeTokenPool() ([]*uint256.Int, *uint256.Int) {
	r := []*uint256.Int{
		uint256.NewInt(1_000),
		uint256.NewInt(1_000),
		uint256.NewInt(1_000),
	}
	K := new(uint256.Int)
	for _, ri := range r {
		cube, _ := checkedPow(ri, 3)
		K.Add(K, cube)
	}
	return r, K
}

func TestVerifySuperellipseConstraint_DegreeTwoDelegatesToSphere(t *testing.T) {
	reserves, K := threeTokenPool()
	ok, err := VerifySuperellipseConstraint(reserves, K, 20_000, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySuperellipseConstraint_RejectsExponentBelowTwo(t *testing.T) {
	reserves, _ := threeTokenPool()
	_, err := VerifySuperellipseConstraint(reserves, uint256.NewInt(1), 10_000, 100)
	assert.Error(t, err)
}

func TestAmountOutSuperellipse_DegreeTwoMatchesSphere(t *testing.T) {
	reserves, K := threeTokenPool()
	deltaIn := uint256.NewInt(10_000)

	sphere, err := AmountOutSphere(reserves, 0, 1, deltaIn, K)
	require.NoError(t, err)
	super, err := AmountOutSuperellipse(reserves, 0, 1, deltaIn, K, 20_000)
	require.NoError(t, err)
	assert.Equal(t, sphere.String(), super.String())
}

func TestAmountOutSuperellipse_DegreeThree(t *testing.T) {
	reserves, K := cubeTokenPool()

	out, err := AmountOutSuperellipse(reserves, 0, 1, uint256.NewInt(10), K, 30_000)
	require.NoError(t, err)
	assert.True(t, out.Sign() > 0)

	after := applyTrade(reserves, 0, 1, uint256.NewInt(10), out)
	ok, err := VerifySuperellipseConstraint(after, K, 30_000, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAmountOutSuperellipse_RejectsFractionalExponent(t *testing.T) {
	reserves, K := cubeTokenPool()
	_, err := AmountOutSuperellipse(reserves, 0, 1, uint256.NewInt(10), K, 25_000)
	assert.Error(t, err)
}
