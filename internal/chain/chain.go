// Package chain declares the external collaborator interfaces the executor
// and router depend on: chains, bridges, and price/gas oracles. No
// concrete implementation lives here — blockchain RPC clients, bridge
// protocols, and price oracles are explicitly out of scope for this core.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

// Receipt is the result of waiting for a submitted transaction.
type Receipt struct {
	Status      bool
	GasUsed     uint64
	BlockNumber uint64
	Logs        [][]byte
}

// Chain is the abstract capability the executor uses to interact with a
// specific chain. Implementations maintain the spherical invariant within
// the tolerance the kernel checks and require >=2 blocks between a
// MEV-protection commit and its reveal.
type Chain interface {
	Balance(ctx context.Context, addr, token common.Address) (*uint256.Int, error)
	SendTx(ctx context.Context, to common.Address, data []byte, value *uint256.Int, gasLimit uint64, gasPrice *uint256.Int) (common.Hash, error)
	WaitReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
	CurrentBlock(ctx context.Context) (uint64, error)
}

// BridgeReceipt is returned by Bridge.Send.
type BridgeReceipt struct {
	SourceTx common.Hash
}

// Bridge is the abstract capability used to dispatch and confirm
// cross-chain messages.
type Bridge interface {
	Send(ctx context.Context, msg *domain.CrossChainMessage) (*BridgeReceipt, error)
	VerifyDelivery(ctx context.Context, messageID common.Hash, destChain domain.ChainID) (bool, error)
	// Cancel attempts a best-effort refund/cancellation of an in-flight
	// message; used by the executor's rollback path.
	Cancel(ctx context.Context, messageID common.Hash) error
}

// BridgeRegistry resolves a Bridge capable of moving between two chains.
type BridgeRegistry interface {
	FindBridge(srcChain, dstChain domain.ChainID) (Bridge, error)
}

// PriceOracle is the pure-read interface the Profit Estimator consults for
// market rates, gas price, and token price.
type PriceOracle interface {
	MarketRate(ctx context.Context, base, quote common.Address) (*uint256.Int, error)
	GasPrice(ctx context.Context, chainID domain.ChainID) (*uint256.Int, error)
	TokenVolatilityBp(ctx context.Context, token common.Address) (uint32, error)
	PairLiquidityScore(ctx context.Context, tokenA, tokenB common.Address) (uint32, error)
}
