// Package domain holds the shared entities operated on by the kernel,
// liquidity manager, auction engine, profit estimator, router, and executor.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ChainID identifies a chain the solver is configured to operate on.
type ChainID uint64

// IntentStatus is the lifecycle state of an Intent.
type IntentStatus string

const (
	IntentCreated    IntentStatus = "created"
	IntentAuctioning IntentStatus = "auctioning"
	IntentMatched    IntentStatus = "matched"
	IntentExecuting  IntentStatus = "executing"
	IntentSettled    IntentStatus = "settled"
	IntentFailed     IntentStatus = "failed"
	IntentExpired    IntentStatus = "expired"
	IntentCancelled  IntentStatus = "cancelled"
)

// Intent is a user's declarative cross-chain swap request. It is immutable
// once accepted; the ID is a content hash over every other field plus a
// nonce (see intent.New).
type Intent struct {
	ID            common.Hash
	User          common.Address
	SourceChainID ChainID
	DestChainID   ChainID
	SourceToken   common.Address
	DestToken     common.Address
	SourceAmount  *uint256.Int
	MinDestAmount *uint256.Int
	Deadline      time.Time
	Nonce         uint64
	Signature     []byte
	Status        IntentStatus
}

// SameChain reports whether source and destination chains coincide.
func (i *Intent) SameChain() bool {
	return i.SourceChainID == i.DestChainID
}

// Expired reports whether the intent's deadline has passed as of now.
func (i *Intent) Expired(now time.Time) bool {
	return !now.Before(i.Deadline)
}

// Bid is a solver's sealed offer to fulfill an Intent.
type Bid struct {
	Solver         common.Address
	DestAmount     *uint256.Int
	ExecSeconds    uint32
	ExpectedProfit *uint256.Int
	Confidence     float64 // [0, 1]
	SubmittedAt    time.Time
}

// AuctionStatus is the lifecycle state of an Auction.
type AuctionStatus string

const (
	AuctionOpen      AuctionStatus = "open"
	AuctionFinalized AuctionStatus = "finalized"
	AuctionAborted   AuctionStatus = "aborted"
)

// Auction tracks bids collected for one Intent.
type Auction struct {
	IntentID common.Hash
	Intent   *Intent
	OpenedAt time.Time
	Deadline time.Time
	Quorum   int
	Bids     []Bid
	Status   AuctionStatus
}

// MatchedIntent is the post-auction record retained until settlement.
type MatchedIntent struct {
	Intent         *Intent
	WinningBid     Bid
	ExpectedProfit *uint256.Int
	MatchedAt      time.Time
}

// CurveKind distinguishes the AMM invariant shape a PoolState uses.
type CurveKind int

const (
	CurveSphere CurveKind = iota
	CurveSuperellipse
)

// CurveType is the tagged variant {Sphere | Superellipse(u)}. U is scaled
// by 1e4 (u=2.0 is stored as 20000); it is only meaningful when Kind is
// CurveSuperellipse.
type CurveType struct {
	Kind CurveKind
	U    uint32
}

// Sphere returns the CurveType for the spherical invariant.
func Sphere() CurveType { return CurveType{Kind: CurveSphere} }

// Superellipse returns the CurveType for a superellipse of exponent u
// (scaled by 1e4, e.g. u=20000 for the degree-2 case).
func Superellipse(uScaled uint32) CurveType {
	return CurveType{Kind: CurveSuperellipse, U: uScaled}
}

// Tick is a concentrated-liquidity shell.
type Tick struct {
	Index            int
	PlaneConstant    *uint256.Int
	LiquidityGross   *uint256.Int
	LiquidityNet     *big.Int
	Radius           *uint256.Int
	DepegLimitBp     uint32
	FeeGrowthOutside *uint256.Int
	IsBoundary       bool
}

// LiquidityPosition references an inclusive tick-index range.
type LiquidityPosition struct {
	ID                uint64
	Owner             common.Address
	LoTick            int
	HiTick            int
	Amount            *uint256.Int
	CreatedAtBlock    uint64
	FeeGrowthSnapshot *uint256.Int
	AccruedFees       *uint256.Int
	Active            bool
}

// PoolState is the read-model the kernel operates on: an ordered sequence
// of reserves over N tokens, a curve, an invariant, and zero or more ticks.
type PoolState struct {
	PoolID   common.Hash
	Reserves []*uint256.Int
	Curve    CurveType
	K        *uint256.Int
	Ticks    []*Tick
}

// NumTokens returns the dimensionality of the pool.
func (p *PoolState) NumTokens() int { return len(p.Reserves) }

// MessageType enumerates cross-chain message kinds.
type MessageType string

const (
	MessageIntentExecution MessageType = "IntentExecution"
	MessageTokenTransfer   MessageType = "TokenTransfer"
	MessageLiquidityUpdate MessageType = "LiquidityUpdate"
	MessageSettlementProof MessageType = "SettlementProof"
)

// MessageStatus is the lifecycle state of a CrossChainMessage.
type MessageStatus string

const (
	MessageCreated   MessageStatus = "Created"
	MessageSent      MessageStatus = "MessageSent"
	MessageDelivered MessageStatus = "MessageDelivered"
	MessageExecuted  MessageStatus = "Executed"
	MessageSettled   MessageStatus = "Settled"
	MessageFailed    MessageStatus = "Failed"
)

// CrossChainMessage is the content-addressed envelope exchanged between
// chains during bridge dispatch.
type CrossChainMessage struct {
	ID             common.Hash
	SourceChainID  ChainID
	DestChainID    ChainID
	Type           MessageType
	Payload        []byte
	CreatedAt      time.Time
	Nonce          uint64
	DestGasLimit   uint64
	RelayerFee     *uint256.Int
	Status         MessageStatus
	FailureReason  string
}

// AssetLock records a reservation held against an in-flight execution.
type AssetLock struct {
	Token    common.Address
	Amount   *uint256.Int
	LockedAt time.Time
}

// ExecutionPhase is a step of the Solver Executor's phased state machine.
type ExecutionPhase string

const (
	PhaseValidatingIntent             ExecutionPhase = "ValidatingIntent"
	PhaseLockingSourceAssets          ExecutionPhase = "LockingSourceAssets"
	PhaseExecutingSourceSwap          ExecutionPhase = "ExecutingSourceSwap"
	PhaseInitiatingBridge             ExecutionPhase = "InitiatingBridge"
	PhaseWaitingForBridgeConfirmation ExecutionPhase = "WaitingForBridgeConfirmation"
	PhaseExecutingDestinationSwap     ExecutionPhase = "ExecutingDestinationSwap"
	PhaseFinalValidation              ExecutionPhase = "FinalValidation"
	PhaseCompleted                    ExecutionPhase = "Completed"
	PhaseFailed                       ExecutionPhase = "Failed"
)

// ExecutionContext is the mutable record driving the executor for one
// intent's winning bid.
type ExecutionContext struct {
	TraceID       string
	Intent        *Intent
	Solver        common.Address
	StartedAt     time.Time
	Phase         ExecutionPhase
	FailureReason string
	CumulativeGas uint64
	BridgeFee     *uint256.Int
	SourceTxHash  *common.Hash
	BridgeTxHash  *common.Hash
	DestTxHash    *common.Hash
	LockedAssets  map[common.Address]*uint256.Int
	ProofBytes    [32]byte
}
