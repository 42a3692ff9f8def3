// Package message implements the cross-chain message envelope:
// content-addressed ids, validation, and lifecycle transitions.
package message

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// maxAge is the maximum age a message
// may have to remain valid.
const maxAge = time.Hour

// New builds a CrossChainMessage, computing its content-addressed id as
// keccak256(source || dest || payload || timestamp || nonce). The nonce is
// the creation time's Unix seconds, matching "nonce = current unix
// seconds".
func New(source, dest domain.ChainID, msgType domain.MessageType, payload []byte, gasLimit uint64, fee *uint256.Int) (*domain.CrossChainMessage, error) {
	now := time.Now().UTC()
	nonce := uint64(now.Unix())

	id := computeID(source, dest, payload, now, nonce)

	msg := &domain.CrossChainMessage{
		ID:            id,
		SourceChainID: source,
		DestChainID:   dest,
		Type:          msgType,
		Payload:       payload,
		CreatedAt:     now,
		Nonce:         nonce,
		DestGasLimit:  gasLimit,
		RelayerFee:    fee,
		Status:        domain.MessageCreated,
	}

	if err := Validate(msg, now); err != nil {
		return nil, err
	}
	return msg, nil
}

// computeID is a pure function of its inputs: recomputing with the same
// arguments always yields the same id.
func computeID(source, dest domain.ChainID, payload []byte, timestamp time.Time, nonce uint64) common.Hash {
	var buf []byte
	buf = append(buf, uint64ToBytes(uint64(source))...)
	buf = append(buf, uint64ToBytes(uint64(dest))...)
	buf = append(buf, payload...)
	buf = append(buf, uint64ToBytes(uint64(timestamp.Unix()))...)
	buf = append(buf, uint64ToBytes(nonce)...)
	return crypto.Keccak256Hash(buf)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Validate reports the first violated invariant: source == dest, empty
// payload, zero gas limit, or age beyond one hour as of now.
func Validate(msg *domain.CrossChainMessage, now time.Time) error {
	if msg.SourceChainID == msg.DestChainID {
		return domainerrors.InvalidInput("dest_chain_id", "source and destination chains must differ")
	}
	if len(msg.Payload) == 0 {
		return domainerrors.InvalidInput("payload", "must not be empty")
	}
	if msg.DestGasLimit == 0 {
		return domainerrors.InvalidInput("gas_limit", "must be greater than zero")
	}
	if now.Sub(msg.CreatedAt) > maxAge {
		return domainerrors.InvalidInput("timestamp", "too old")
	}
	return nil
}

// transitions enumerates the allowed monotonic lifecycle steps.
var transitions = map[domain.MessageStatus][]domain.MessageStatus{
	domain.MessageCreated:   {domain.MessageSent, domain.MessageFailed},
	domain.MessageSent:      {domain.MessageDelivered, domain.MessageFailed},
	domain.MessageDelivered: {domain.MessageExecuted, domain.MessageFailed},
	domain.MessageExecuted:  {domain.MessageSettled, domain.MessageFailed},
	domain.MessageSettled:   {},
	domain.MessageFailed:    {},
}

// Advance transitions msg to next, rejecting non-monotonic jumps.
func Advance(msg *domain.CrossChainMessage, next domain.MessageStatus) error {
	allowed := transitions[msg.Status]
	for _, s := range allowed {
		if s == next {
			msg.Status = next
			return nil
		}
	}
	return domainerrors.InvariantViolation("invalid message lifecycle transition")
}
