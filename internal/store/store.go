// Package store declares the intent persistence interface the control
// plane reads on startup, plus the shipped implementation over the generic
// state layer. A SQL-backed implementation belongs to the external
// persistence tier; it only has to satisfy IntentStore.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/orbital-intents/settlement-core/internal/domain"
	domainerrors "github.com/orbital-intents/settlement-core/internal/errors"
	"github.com/orbital-intents/settlement-core/internal/state"
)

// IntentStore is the durable record of submitted intents. The in-memory
// tables remain authoritative while the process runs; the store exists so
// a restarted control plane can rebuild them.
type IntentStore interface {
	SaveIntent(ctx context.Context, in *domain.Intent) error
	LoadIntent(ctx context.Context, id common.Hash) (*domain.Intent, error)
	ListIntents(ctx context.Context) ([]*domain.Intent, error)
	DeleteIntent(ctx context.Context, id common.Hash) error
}

// StateStore implements IntentStore over a state.PersistentState, encoding
// each intent as JSON under its id.
type StateStore struct {
	st *state.PersistentState
}

// NewStateStore wraps st as an IntentStore.
func NewStateStore(st *state.PersistentState) *StateStore {
	return &StateStore{st: st}
}

func (s *StateStore) SaveIntent(ctx context.Context, in *domain.Intent) error {
	data, err := json.Marshal(in)
	if err != nil {
		return domainerrors.InvalidInput("intent", "not serializable")
	}
	return s.st.Save(ctx, in.ID.Hex(), data)
}

func (s *StateStore) LoadIntent(ctx context.Context, id common.Hash) (*domain.Intent, error) {
	data, err := s.st.Load(ctx, id.Hex())
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, domainerrors.NotFound("intent", id.Hex())
		}
		return nil, err
	}
	var in domain.Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, domainerrors.InvalidInput("intent", "stored record is not decodable")
	}
	return &in, nil
}

func (s *StateStore) ListIntents(ctx context.Context) ([]*domain.Intent, error) {
	keys, err := s.st.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Intent, 0, len(keys))
	for _, key := range keys {
		in, err := s.LoadIntent(ctx, common.HexToHash(key))
		if err != nil {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func (s *StateStore) DeleteIntent(ctx context.Context, id common.Hash) error {
	return s.st.Delete(ctx, id.Hex())
}
