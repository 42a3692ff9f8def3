// Package router finds settlement routes: same-chain direct/multi-hop
// routing via base-token intermediates, and cross-chain routing over a
// bridge graph.
package router

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/kernel"
)

// Protocol identifies the kind of hop in a Route.
type Protocol string

const (
	ProtocolPool   Protocol = "pool"
	ProtocolBridge Protocol = "bridge"
)

// Hop is one leg of a cross-pool or cross-chain route.
type Hop struct {
	Protocol  Protocol
	Chain     domain.ChainID
	Identity  common.Hash
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	EstGas    uint64
}

// Route is the sequence of hops chosen by the optimizer.
type Route struct {
	Hops []Hop
}

// FinalOutput returns the amount out of the route's last hop.
func (r *Route) FinalOutput() *uint256.Int {
	if len(r.Hops) == 0 {
		return new(uint256.Int)
	}
	return r.Hops[len(r.Hops)-1].AmountOut
}

// PoolEdge is a same-chain pool usable as a direct or base-token hop.
type PoolEdge struct {
	Identity common.Hash
	Chain    domain.ChainID
	Pool     *domain.PoolState
	TokenIdx map[common.Address]int
}

// BridgeEdge is a cross-chain bridge connection for one (src_chain,
// dst_chain) pair, supporting one or more (src_bridge_token,
// dst_bridge_token) pairs.
type BridgeEdge struct {
	Identity    common.Hash
	SrcChain    domain.ChainID
	DstChain    domain.ChainID
	FeeBp       uint32
	TokenPairs  []BridgeTokenPair
}

// BridgeTokenPair is one token pair a BridgeEdge supports.
type BridgeTokenPair struct {
	SrcToken common.Address
	DstToken common.Address
}

// Graph is the pool/bridge graph the optimizer searches. BaseTokens lists,
// per chain, the intermediates tried for same-chain multi-hop search
// (WETH/USDC/USDT/DAI on chains where pools for them exist).
type Graph struct {
	Pools      []PoolEdge
	Bridges    []BridgeEdge
	BaseTokens map[domain.ChainID][]common.Address
}

// Quote finds the best route for intent, trying same-chain direct/2-hop
// when source and dest chains match, otherwise enumerating bridge
// compositions.
func Quote(ctx context.Context, g *Graph, intent *domain.Intent, minDest *uint256.Int) (*Route, error) {
	if intent.SameChain() {
		return quoteSameChain(ctx, g, intent.SourceChainID, intent.SourceToken, intent.DestToken, intent.SourceAmount, minDest)
	}
	return quoteCrossChain(ctx, g, intent, minDest)
}

// FindPool exposes poolOn for callers outside the package (the profit
// estimator looks up the pool backing an intent's token pair to derive its
// PoolSnapshot).
func FindPool(g *Graph, chainID domain.ChainID, tokenA, tokenB common.Address) (*PoolEdge, int, int, bool) {
	return poolOn(g, chainID, tokenA, tokenB)
}

func poolOn(g *Graph, chainID domain.ChainID, tokenA, tokenB common.Address) (*PoolEdge, int, int, bool) {
	for i := range g.Pools {
		p := &g.Pools[i]
		if p.Chain != chainID {
			continue
		}
		ia, okA := p.TokenIdx[tokenA]
		ib, okB := p.TokenIdx[tokenB]
		if okA && okB {
			return p, ia, ib, true
		}
	}
	return nil, 0, 0, false
}

func quoteSameChain(ctx context.Context, g *Graph, chainID domain.ChainID, tokenIn, tokenOut common.Address, amountIn, minDest *uint256.Int) (*Route, error) {
	if p, i, j, ok := poolOn(g, chainID, tokenIn, tokenOut); ok {
		out, err := kernel.AmountOut(p.Pool, i, j, amountIn)
		if err == nil && out.Cmp(minDest) >= 0 {
			return &Route{Hops: []Hop{{
				Protocol: ProtocolPool, Chain: chainID, Identity: p.Identity,
				TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: out,
			}}}, nil
		}
	}

	bases := g.BaseTokens[chainID]
	type candidate struct {
		mid            common.Address
		mOut           *uint256.Int
		fOut           *uint256.Int
		pool1, pool2   *PoolEdge
		i1, j1, i2, j2 int
	}
	results := make([]*candidate, len(bases))

	group, gctx := errgroup.WithContext(ctx)
	for idx, base := range bases {
		idx, base := idx, base
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if base == tokenIn || base == tokenOut {
				return nil
			}
			p1, i1, m1, ok1 := poolOn(g, chainID, tokenIn, base)
			if !ok1 {
				return nil
			}
			midOut, err := kernel.AmountOut(p1.Pool, i1, m1, amountIn)
			if err != nil {
				return nil
			}
			p2, m2, j2, ok2 := poolOn(g, chainID, base, tokenOut)
			if !ok2 {
				return nil
			}
			finalOut, err := kernel.AmountOut(p2.Pool, m2, j2, midOut)
			if err != nil {
				return nil
			}
			results[idx] = &candidate{mid: base, mOut: midOut, fOut: finalOut, pool1: p1, pool2: p2, i1: i1, j1: m1, i2: m2, j2: j2}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var best *candidate
	for _, c := range results {
		if c == nil {
			continue
		}
		if best == nil || c.fOut.Cmp(best.fOut) > 0 {
			best = c
		}
	}
	if best == nil || best.fOut.Cmp(minDest) < 0 {
		return nil, domainerrors.InsufficientLiquidity("no same-chain route satisfies minimum output")
	}

	return &Route{Hops: []Hop{
		{Protocol: ProtocolPool, Chain: chainID, Identity: best.pool1.Identity, TokenIn: tokenIn, TokenOut: best.mid, AmountIn: amountIn, AmountOut: best.mOut},
		{Protocol: ProtocolPool, Chain: chainID, Identity: best.pool2.Identity, TokenIn: best.mid, TokenOut: tokenOut, AmountIn: best.mOut, AmountOut: best.fOut},
	}}, nil
}

func quoteCrossChain(ctx context.Context, g *Graph, intent *domain.Intent, minDest *uint256.Int) (*Route, error) {
	var best *Route
	var bestOut *uint256.Int

	for i := range g.Bridges {
		b := &g.Bridges[i]
		if b.SrcChain != intent.SourceChainID || b.DstChain != intent.DestChainID {
			continue
		}
		for _, pair := range b.TokenPairs {
			route, out, err := composeBridgeRoute(ctx, g, intent, b, pair, minDest)
			if err != nil {
				continue
			}
			if bestOut == nil || out.Cmp(bestOut) > 0 {
				best, bestOut = route, out
			}
		}
	}

	if best == nil {
		return nil, domainerrors.InsufficientLiquidity("no cross-chain composition satisfies minimum output")
	}
	return best, nil
}

func composeBridgeRoute(ctx context.Context, g *Graph, intent *domain.Intent, bridge *BridgeEdge, pair BridgeTokenPair, minDest *uint256.Int) (*Route, *uint256.Int, error) {
	var hops []Hop
	amount := intent.SourceAmount

	if intent.SourceToken != pair.SrcToken {
		p, i, j, ok := poolOn(g, intent.SourceChainID, intent.SourceToken, pair.SrcToken)
		if !ok {
			return nil, nil, domainerrors.InsufficientLiquidity("no source-leg pool")
		}
		out, err := kernel.AmountOut(p.Pool, i, j, amount)
		if err != nil {
			return nil, nil, err
		}
		hops = append(hops, Hop{Protocol: ProtocolPool, Chain: intent.SourceChainID, Identity: p.Identity, TokenIn: intent.SourceToken, TokenOut: pair.SrcToken, AmountIn: amount, AmountOut: out})
		amount = out
	}

	bridged, overflow := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(10_000-bridge.FeeBp)), uint256.NewInt(10_000))
	if overflow {
		return nil, nil, domainerrors.Overflow("bridge_fee")
	}
	hops = append(hops, Hop{Protocol: ProtocolBridge, Chain: bridge.DstChain, Identity: bridge.Identity, TokenIn: pair.SrcToken, TokenOut: pair.DstToken, AmountIn: amount, AmountOut: bridged})
	amount = bridged

	if pair.DstToken != intent.DestToken {
		p, i, j, ok := poolOn(g, intent.DestChainID, pair.DstToken, intent.DestToken)
		if !ok {
			return nil, nil, domainerrors.InsufficientLiquidity("no destination-leg pool")
		}
		out, err := kernel.AmountOut(p.Pool, i, j, amount)
		if err != nil {
			return nil, nil, err
		}
		hops = append(hops, Hop{Protocol: ProtocolPool, Chain: intent.DestChainID, Identity: p.Identity, TokenIn: pair.DstToken, TokenOut: intent.DestToken, AmountIn: amount, AmountOut: out})
		amount = out
	}

	if amount.Cmp(minDest) < 0 {
		return nil, nil, domainerrors.InsufficientLiquidity("composition below minimum output")
	}
	return &Route{Hops: hops}, amount, nil
}
