package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

func TestNew_ComputesContentAddressedID(t *testing.T) {
	msg, err := New(1, 2, domain.MessageIntentExecution, []byte("payload"), 250_000, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageCreated, msg.Status)

	recomputed := computeID(msg.SourceChainID, msg.DestChainID, msg.Payload, msg.CreatedAt, msg.Nonce)
	assert.Equal(t, msg.ID, recomputed)
}

func TestNew_RejectsSameChain(t *testing.T) {
	_, err := New(1, 1, domain.MessageTokenTransfer, []byte("payload"), 250_000, nil)
	assert.Error(t, err)
}

func TestNew_RejectsEmptyPayload(t *testing.T) {
	_, err := New(1, 2, domain.MessageTokenTransfer, nil, 250_000, nil)
	assert.Error(t, err)
}

func TestNew_RejectsZeroGasLimit(t *testing.T) {
	_, err := New(1, 2, domain.MessageTokenTransfer, []byte("payload"), 0, nil)
	assert.Error(t, err)
}

func TestValidate_RejectsStaleMessage(t *testing.T) {
	msg, err := New(1, 2, domain.MessageSettlementProof, []byte("payload"), 100_000, nil)
	require.NoError(t, err)

	err = Validate(msg, msg.CreatedAt.Add(3601*time.Second))
	assert.Error(t, err)
}

func TestValidate_AcceptsHourOldMessage(t *testing.T) {
	msg, err := New(1, 2, domain.MessageSettlementProof, []byte("payload"), 100_000, nil)
	require.NoError(t, err)

	assert.NoError(t, Validate(msg, msg.CreatedAt.Add(3600*time.Second)))
}

func TestAdvance_WalksLifecycleInOrder(t *testing.T) {
	msg, err := New(1, 2, domain.MessageIntentExecution, []byte("payload"), 100_000, nil)
	require.NoError(t, err)

	for _, next := range []domain.MessageStatus{
		domain.MessageSent,
		domain.MessageDelivered,
		domain.MessageExecuted,
		domain.MessageSettled,
	} {
		require.NoError(t, Advance(msg, next))
	}
	assert.Equal(t, domain.MessageSettled, msg.Status)
}

func TestAdvance_RejectsSkippedState(t *testing.T) {
	msg, err := New(1, 2, domain.MessageIntentExecution, []byte("payload"), 100_000, nil)
	require.NoError(t, err)

	assert.Error(t, Advance(msg, domain.MessageDelivered))
}

func TestAdvance_FailedIsTerminal(t *testing.T) {
	msg, err := New(1, 2, domain.MessageIntentExecution, []byte("payload"), 100_000, nil)
	require.NoError(t, err)

	require.NoError(t, Advance(msg, domain.MessageFailed))
	assert.Error(t, Advance(msg, domain.MessageSent))
}
