package store

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
	"github.com/orbital-intents/settlement-core/internal/intent"
	"github.com/orbital-intents/settlement-core/internal/state"
)

func newStore(t *testing.T) *StateStore {
	t.Helper()
	st, err := state.NewPersistentState(state.StateConfig{
		Backend:   state.NewMemoryBackend(0),
		KeyPrefix: "intent:",
	})
	require.NoError(t, err)
	return NewStateStore(st)
}

func sampleIntent(nonce uint64) *domain.Intent {
	return intent.New(
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		1, 2,
		common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		uint256.NewInt(1000),
		uint256.NewInt(900),
		time.Unix(1_900_000_000, 0),
		nonce,
	)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := sampleIntent(1)
	require.NoError(t, s.SaveIntent(ctx, in))

	loaded, err := s.LoadIntent(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, loaded.ID)
	assert.Equal(t, in.SourceAmount.String(), loaded.SourceAmount.String())
	assert.Equal(t, in.User, loaded.User)
}

func TestLoad_MissingIntent(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadIntent(context.Background(), common.HexToHash("0x01"))
	assert.Error(t, err)
}

func TestListIntents(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for nonce := uint64(1); nonce <= 3; nonce++ {
		require.NoError(t, s.SaveIntent(ctx, sampleIntent(nonce)))
	}

	all, err := s.ListIntents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteIntent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := sampleIntent(1)
	require.NoError(t, s.SaveIntent(ctx, in))
	require.NoError(t, s.DeleteIntent(ctx, in.ID))

	_, err := s.LoadIntent(ctx, in.ID)
	assert.Error(t, err)
}
