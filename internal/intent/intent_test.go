package intent

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	deadline = time.Unix(1_900_000_000, 0)
)

func TestNew_IDIsDeterministic(t *testing.T) {
	a := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	b := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	assert.Equal(t, a.ID, b.ID)

	c := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(900), deadline, 8)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestVerifyID_DetectsTampering(t *testing.T) {
	i := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	require.True(t, VerifyID(i))

	i.SourceAmount = uint256.NewInt(2000)
	assert.False(t, VerifyID(i))
}

func TestValidate_RejectsZeroSourceAmount(t *testing.T) {
	i := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(0), uint256.NewInt(900), deadline, 7)
	assert.Error(t, Validate(i, nil))
}

func TestValidate_RejectsZeroMinDest(t *testing.T) {
	i := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(0), deadline, 7)
	assert.Error(t, Validate(i, nil))
}

func TestValidate_RejectsIdenticalTokenAndChain(t *testing.T) {
	i := New(user, 1, 1, tokenA, tokenA, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	assert.Error(t, Validate(i, nil))
}

func TestValidate_AllowsSameTokenAcrossChains(t *testing.T) {
	i := New(user, 1, 2, tokenA, tokenA, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	assert.NoError(t, Validate(i, nil))
}

func TestValidate_EnforcesSourceAmountCap(t *testing.T) {
	i := New(user, 1, 2, tokenA, tokenB, uint256.NewInt(1000), uint256.NewInt(900), deadline, 7)
	assert.Error(t, Validate(i, uint256.NewInt(999)))
	assert.NoError(t, Validate(i, uint256.NewInt(1000)))
}
