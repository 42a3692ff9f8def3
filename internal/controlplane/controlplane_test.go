package controlplane

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/auction"
	"github.com/orbital-intents/settlement-core/internal/domain"
	"github.com/orbital-intents/settlement-core/internal/intent"
	"github.com/orbital-intents/settlement-core/internal/reputation"
	"github.com/orbital-intents/settlement-core/internal/state"
	"github.com/orbital-intents/settlement-core/internal/store"
)

var intentOwner = common.HexToAddress("0x00000000000000000000000000000000000000f1")

func testIntent() *domain.Intent {
	return intent.New(
		intentOwner,
		1, 1,
		common.HexToAddress("0xaa"),
		common.HexToAddress("0xbb"),
		uint256.NewInt(1000),
		uint256.NewInt(1),
		time.Now().Add(time.Hour),
		7,
	)
}

func TestSubmitIntent_OpensAuction(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	intent := testIntent()

	err := p.SubmitIntent(context.Background(), intent)
	require.NoError(t, err)
	assert.Len(t, p.ListOpenAuctions(0), 1)
}

func TestSubmitIntent_RejectsDuplicate(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	intent := testIntent()

	require.NoError(t, p.SubmitIntent(context.Background(), intent))
	assert.Error(t, p.SubmitIntent(context.Background(), intent))
}

func TestCancelIntent_RejectsNonOwner(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	intent := testIntent()
	require.NoError(t, p.SubmitIntent(context.Background(), intent))

	err := p.CancelIntent(common.HexToAddress("0x00000000000000000000000000000000000000f2"), intent.ID)
	assert.Error(t, err)
}

func TestCancelIntent_AllowsOwnerBeforeExecution(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	intent := testIntent()
	require.NoError(t, p.SubmitIntent(context.Background(), intent))

	err := p.CancelIntent(intent.User, intent.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.IntentCancelled, intent.Status)
}

func TestStart_RehydratesIntentsFromStore(t *testing.T) {
	st, err := state.NewPersistentState(state.StateConfig{
		Backend:   state.NewMemoryBackend(0),
		KeyPrefix: "intent:",
	})
	require.NoError(t, err)
	intents := store.NewStateStore(st)

	in := testIntent()
	in.Status = domain.IntentAuctioning
	require.NoError(t, intents.SaveIntent(context.Background(), in))

	p := New(Config{
		Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}}),
		Store:   intents,
	})
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Stop(context.Background()) }()

	assert.Len(t, p.ListOpenAuctions(0), 1)

	status, ok := p.QueryIntent(in.ID)
	require.True(t, ok)
	assert.Equal(t, domain.IntentAuctioning, status.Status)
}

func ticksForTest(n int) []*domain.Tick {
	ticks := make([]*domain.Tick, n)
	for i := range ticks {
		ticks[i] = &domain.Tick{Index: i, LiquidityGross: new(uint256.Int), FeeGrowthOutside: new(uint256.Int)}
	}
	return ticks
}

func TestAddAndRemoveLiquidity(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	poolID := common.HexToHash("0xpool")
	p.RegisterPool(poolID, ticksForTest(5))

	id, err := p.AddLiquidity(poolID, common.HexToAddress("0xlp"), 0, 2, uint256.NewInt(5000), 1)
	require.NoError(t, err)

	amount, _, err := p.RemoveLiquidity(poolID, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), amount.Uint64())
}

func TestAddLiquidity_UnknownPool(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}})})
	_, err := p.AddLiquidity(common.HexToHash("0xnope"), common.HexToAddress("0xlp"), 0, 2, uint256.NewInt(5000), 1)
	assert.Error(t, err)
}

func TestPostBidAndFinalize(t *testing.T) {
	p := New(Config{Auction: auction.New(auction.Config{Reputation: reputation.NoopOracle{}}), AuctionDuration: time.Millisecond})
	intent := testIntent()
	require.NoError(t, p.SubmitIntent(context.Background(), intent))

	bidA := domain.Bid{Solver: common.HexToAddress("0xaa"), DestAmount: uint256.NewInt(2), Confidence: 0.9}
	bidB := domain.Bid{Solver: common.HexToAddress("0xbb"), DestAmount: uint256.NewInt(3), Confidence: 0.8}
	require.NoError(t, p.PostBid(intent.ID, bidA))
	require.NoError(t, p.PostBid(intent.ID, bidB))

	time.Sleep(2 * time.Millisecond)
	matched, err := p.FinalizeAuction(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.NotNil(t, matched)

	queried, ok := p.QueryMatched(intent.ID)
	require.True(t, ok)
	assert.Equal(t, matched.WinningBid.Solver, queried.WinningBid.Solver)
}
