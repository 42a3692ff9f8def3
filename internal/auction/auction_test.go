package auction

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
	"github.com/orbital-intents/settlement-core/internal/reputation"
)

// scoreTable is a reputation stub with per-solver scores, always eligible.
type scoreTable map[common.Address]uint32

func (s scoreTable) Score(solver common.Address) (uint32, error) { return s[solver], nil }

func (s scoreTable) Eligible(common.Address, *uint256.Int) (bool, error) { return true, nil }

func testIntent() *domain.Intent {
	return &domain.Intent{
		ID:            common.HexToHash("0x01"),
		SourceAmount:  uint256.NewInt(10_000),
		MinDestAmount: uint256.NewInt(1000),
		Deadline:      time.Now().Add(time.Hour),
	}
}

func TestOpen_RejectsDuplicate(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()

	require.NoError(t, e.Open(intent, time.Minute, now))
	assert.Error(t, e.Open(intent, time.Minute, now))
}

func TestSubmit_RejectsDuplicateSolver(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))

	bid := domain.Bid{Solver: common.HexToAddress("0xaa"), DestAmount: uint256.NewInt(1100), Confidence: 0.9}
	require.NoError(t, e.Submit(intent.ID, bid, now))
	assert.Error(t, e.Submit(intent.ID, bid, now))
}

func TestFinalize_PicksHigherScoringBid(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))

	bidA := domain.Bid{Solver: common.HexToAddress("0xaa"), DestAmount: uint256.NewInt(1100), ExecSeconds: 30, Confidence: 0.9}
	bidB := domain.Bid{Solver: common.HexToAddress("0xbb"), DestAmount: uint256.NewInt(1050), ExecSeconds: 10, Confidence: 0.95}
	require.NoError(t, e.Submit(intent.ID, bidA, now))
	require.NoError(t, e.Submit(intent.ID, bidB, now))

	matched, err := e.Finalize(intent.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, bidB.Solver, matched.WinningBid.Solver)

	// A finalized intent leaves the open table entirely.
	assert.Empty(t, e.ListOpen())
}

func TestFinalize_WeighsReputationAgainstSpeed(t *testing.T) {
	solverA := common.HexToAddress("0xaa")
	solverB := common.HexToAddress("0xbb")
	e := New(Config{Reputation: scoreTable{solverA: 9_000, solverB: 8_000}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))

	// A's higher output and reputation outweigh B's faster execution and
	// slightly higher confidence: ~0.455 vs ~0.441 under the scoring weights.
	bidA := domain.Bid{Solver: solverA, DestAmount: uint256.NewInt(1100), ExecSeconds: 30, Confidence: 0.9}
	bidB := domain.Bid{Solver: solverB, DestAmount: uint256.NewInt(1050), ExecSeconds: 10, Confidence: 0.95}
	require.NoError(t, e.Submit(intent.ID, bidA, now))
	require.NoError(t, e.Submit(intent.ID, bidB, now))

	matched, err := e.Finalize(intent.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, solverA, matched.WinningBid.Solver)
}

func TestFinalize_Idempotent(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))

	bidA := domain.Bid{Solver: common.HexToAddress("0xaa"), DestAmount: uint256.NewInt(1100), ExecSeconds: 30, Confidence: 0.9}
	bidB := domain.Bid{Solver: common.HexToAddress("0xbb"), DestAmount: uint256.NewInt(1050), ExecSeconds: 10, Confidence: 0.95}
	require.NoError(t, e.Submit(intent.ID, bidA, now))
	require.NoError(t, e.Submit(intent.ID, bidB, now))

	finalizeAt := now.Add(2 * time.Minute)
	first, err := e.Finalize(intent.ID, finalizeAt)
	require.NoError(t, err)
	second, err := e.Finalize(intent.ID, finalizeAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.WinningBid.Solver, second.WinningBid.Solver)
}

func TestFinalize_FailsBelowQuorum(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))
	require.NoError(t, e.Submit(intent.ID, domain.Bid{Solver: common.HexToAddress("0xaa"), DestAmount: uint256.NewInt(1100), Confidence: 0.9}, now))

	_, err := e.Finalize(intent.ID, now.Add(2*time.Minute))
	assert.Error(t, err)
}

func TestCleanupExpired(t *testing.T) {
	e := New(Config{Reputation: reputation.NoopOracle{}})
	intent := testIntent()
	now := time.Now()
	require.NoError(t, e.Open(intent, time.Minute, now))

	removed := e.CleanupExpired(now.Add(2 * time.Minute))
	assert.Equal(t, 1, removed)
}
