package router

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

func spherePool(id byte, reserves []uint64) PoolEdge {
	r := make([]*uint256.Int, len(reserves))
	for i, v := range reserves {
		r[i] = uint256.NewInt(v)
	}
	k := new(uint256.Int)
	for _, v := range r {
		sq := new(uint256.Int).Mul(v, v)
		k = k.Add(k, sq)
	}
	return PoolEdge{
		Identity: common.Hash{id},
		Chain:    1,
		Pool:     &domain.PoolState{Reserves: r, Curve: domain.Sphere(), K: k},
	}
}

func TestQuoteSameChain_Direct(t *testing.T) {
	tokenA := common.HexToAddress("0xaa")
	tokenB := common.HexToAddress("0xbb")

	pool := spherePool(1, []uint64{1_000_000, 1_000_000})
	pool.TokenIdx = map[common.Address]int{tokenA: 0, tokenB: 1}

	g := &Graph{Pools: []PoolEdge{pool}}
	intent := &domain.Intent{
		SourceChainID: 1,
		DestChainID:   1,
		SourceToken:   tokenA,
		DestToken:     tokenB,
		SourceAmount:  uint256.NewInt(1000),
		Deadline:      time.Now().Add(time.Hour),
	}

	route, err := Quote(context.Background(), g, intent, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Len(t, route.Hops, 1)
	assert.Equal(t, ProtocolPool, route.Hops[0].Protocol)
}

func TestQuoteSameChain_TwoHopViaBaseToken(t *testing.T) {
	tokenA := common.HexToAddress("0xaa")
	tokenB := common.HexToAddress("0xbb")
	base := common.HexToAddress("0xcc")

	poolAB := spherePool(1, []uint64{100, 100})
	poolAB.TokenIdx = map[common.Address]int{tokenA: 0, tokenB: 1}

	poolABase := spherePool(2, []uint64{1_000_000, 1_000_000})
	poolABase.TokenIdx = map[common.Address]int{tokenA: 0, base: 1}

	poolBaseB := spherePool(3, []uint64{1_000_000, 1_000_000})
	poolBaseB.TokenIdx = map[common.Address]int{base: 0, tokenB: 1}

	g := &Graph{
		Pools:      []PoolEdge{poolAB, poolABase, poolBaseB},
		BaseTokens: map[domain.ChainID][]common.Address{1: {base}},
	}
	intent := &domain.Intent{
		SourceChainID: 1,
		DestChainID:   1,
		SourceToken:   tokenA,
		DestToken:     tokenB,
		SourceAmount:  uint256.NewInt(1000),
		Deadline:      time.Now().Add(time.Hour),
	}

	route, err := Quote(context.Background(), g, intent, uint256.NewInt(900))
	require.NoError(t, err)
	assert.Len(t, route.Hops, 2)
}

func TestQuoteSameChain_InsufficientLiquidity(t *testing.T) {
	tokenA := common.HexToAddress("0xaa")
	tokenB := common.HexToAddress("0xbb")

	g := &Graph{}
	intent := &domain.Intent{
		SourceChainID: 1,
		DestChainID:   1,
		SourceToken:   tokenA,
		DestToken:     tokenB,
		SourceAmount:  uint256.NewInt(1000),
		Deadline:      time.Now().Add(time.Hour),
	}

	_, err := Quote(context.Background(), g, intent, uint256.NewInt(1))
	assert.Error(t, err)
}

func TestQuoteCrossChain_ComposesBridge(t *testing.T) {
	tokenA := common.HexToAddress("0xaa")
	tokenB := common.HexToAddress("0xbb")

	g := &Graph{
		Bridges: []BridgeEdge{{
			Identity: common.Hash{9},
			SrcChain: 1,
			DstChain: 2,
			FeeBp:    10,
			TokenPairs: []BridgeTokenPair{{SrcToken: tokenA, DstToken: tokenB}},
		}},
	}
	intent := &domain.Intent{
		SourceChainID: 1,
		DestChainID:   2,
		SourceToken:   tokenA,
		DestToken:     tokenB,
		SourceAmount:  uint256.NewInt(1_000_000),
		Deadline:      time.Now().Add(time.Hour),
	}

	route, err := Quote(context.Background(), g, intent, uint256.NewInt(900_000))
	require.NoError(t, err)
	assert.Len(t, route.Hops, 1)
	assert.Equal(t, ProtocolBridge, route.Hops[0].Protocol)
	assert.Equal(t, uint64(999_000), route.FinalOutput().Uint64())
}

func TestQuoteCrossChain_NoBridgeFound(t *testing.T) {
	g := &Graph{}
	intent := &domain.Intent{
		SourceChainID: 1,
		DestChainID:   2,
		SourceAmount:  uint256.NewInt(1000),
		Deadline:      time.Now().Add(time.Hour),
	}

	_, err := Quote(context.Background(), g, intent, uint256.NewInt(1))
	assert.Error(t, err)
}
