// Package intent implements Intent construction and the invariants
// SubmitIntent must enforce, mirroring the content-addressed id pattern
// internal/message uses for CrossChainMessage.
package intent

import (
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
)

// New builds an Intent, computing its content-addressed id as
// keccak256(user || source_chain || dest_chain || source_token ||
// dest_token || source_amount || min_dest_amount || deadline || nonce).
func New(user common.Address, sourceChain, destChain domain.ChainID, sourceToken, destToken common.Address, sourceAmount, minDestAmount *uint256.Int, deadline time.Time, nonce uint64) *domain.Intent {
	return &domain.Intent{
		ID:            computeID(user, sourceChain, destChain, sourceToken, destToken, sourceAmount, minDestAmount, deadline, nonce),
		User:          user,
		SourceChainID: sourceChain,
		DestChainID:   destChain,
		SourceToken:   sourceToken,
		DestToken:     destToken,
		SourceAmount:  sourceAmount,
		MinDestAmount: minDestAmount,
		Deadline:      deadline,
		Nonce:         nonce,
		Status:        domain.IntentCreated,
	}
}

// computeID is a pure function of its inputs: recomputing with the same
// arguments always yields the same id, letting a caller verify Intent.ID
// without trusting whoever submitted it.
func computeID(user common.Address, sourceChain, destChain domain.ChainID, sourceToken, destToken common.Address, sourceAmount, minDestAmount *uint256.Int, deadline time.Time, nonce uint64) common.Hash {
	var buf []byte
	buf = append(buf, user.Bytes()...)
	buf = append(buf, uint64ToBytes(uint64(sourceChain))...)
	buf = append(buf, uint64ToBytes(uint64(destChain))...)
	buf = append(buf, sourceToken.Bytes()...)
	buf = append(buf, destToken.Bytes()...)
	buf = append(buf, amountBytes(sourceAmount)...)
	buf = append(buf, amountBytes(minDestAmount)...)
	buf = append(buf, uint64ToBytes(uint64(deadline.Unix()))...)
	buf = append(buf, uint64ToBytes(nonce)...)
	return crypto.Keccak256Hash(buf)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func amountBytes(amount *uint256.Int) []byte {
	if amount == nil {
		return make([]byte, 32)
	}
	b := amount.Bytes32()
	return b[:]
}

// VerifyID reports whether intent.ID matches the content hash over its
// other fields, catching a tampered or forged submission.
func VerifyID(i *domain.Intent) bool {
	want := computeID(i.User, i.SourceChainID, i.DestChainID, i.SourceToken, i.DestToken, i.SourceAmount, i.MinDestAmount, i.Deadline, i.Nonce)
	return want == i.ID
}

// Validate enforces the Intent invariants: positive source/min-dest
// amounts, a source token/chain pair that actually changes something, and
// (when maxSourceAmount is non-nil) a cap on the source amount.
func Validate(i *domain.Intent, maxSourceAmount *uint256.Int) error {
	if i.SourceAmount == nil || i.SourceAmount.IsZero() {
		return domainerrors.InvalidInput("source_amount", "must be greater than zero")
	}
	if i.MinDestAmount == nil || i.MinDestAmount.IsZero() {
		return domainerrors.InvalidInput("min_dest_amount", "must be greater than zero")
	}
	if i.SourceToken == i.DestToken && i.SourceChainID == i.DestChainID {
		return domainerrors.InvalidInput("dest_token", "source and destination must differ in token or chain")
	}
	if maxSourceAmount != nil && i.SourceAmount.Cmp(maxSourceAmount) > 0 {
		return domainerrors.InvalidInput("source_amount", "exceeds the configured per-intent cap")
	}
	if !VerifyID(i) {
		return domainerrors.InvalidInput("id", "does not match the content hash of the intent's fields")
	}
	return nil
}
