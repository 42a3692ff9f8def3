package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbital-intents/settlement-core/internal/domain"
)

func TestParseChainList(t *testing.T) {
	chains, err := parseChainList("1, 42161, 10")
	require.NoError(t, err)
	assert.Len(t, chains, 3)
}

func TestParseChainList_RejectsInvalid(t *testing.T) {
	_, err := parseChainList("1,not-a-number")
	assert.Error(t, err)
}

func TestValidate_RequiresSupportedChains(t *testing.T) {
	cfg := defaults()
	cfg.PrivateKeyHandle = "vault://solver/key"
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_RequiresPrivateKeyHandle(t *testing.T) {
	cfg := defaults()
	cfg.SupportedChains = []domain.ChainID{1}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_PassesWithRequiredFields(t *testing.T) {
	cfg := defaults()
	cfg.SupportedChains = []domain.ChainID{1}
	cfg.PrivateKeyHandle = "vault://solver/key"
	assert.NoError(t, cfg.Validate())
}
