// Package config loads the solver's configuration from a YAML file and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/orbital-intents/settlement-core/internal/domain"
	"github.com/orbital-intents/settlement-core/pkg/logger"
)

// SolverConfig is the configuration surface a solver process needs:
// its identity, the chains it operates on, its risk tolerances, and its
// execution concurrency/timeout budget.
type SolverConfig struct {
	Address                  common.Address       `yaml:"address"`
	SupportedChains          []domain.ChainID     `yaml:"supported_chains"`
	PrivateKeyHandle         string               `yaml:"private_key_handle"`
	MinProfitBps             uint32               `yaml:"min_profit_bps"`
	BaseRiskBps              uint32               `yaml:"base_risk_bps"`
	MaxIntentSourceAmountStr string               `yaml:"max_intent_source_amount"`
	MEVProtectionEnabled     bool                 `yaml:"mev_protection_enabled"`
	MaxConcurrentExecutions  int64                `yaml:"max_concurrent_executions"`
	ExecutionTimeoutSeconds  int                  `yaml:"execution_timeout_s"`
	Logging                  logger.LoggingConfig `yaml:"logging"`
	MetricsEnabled           bool                 `yaml:"metrics_enabled"`
	ServiceName              string               `yaml:"service_name"`
}

// ExecutionTimeout returns the configured execution timeout as a Duration.
func (c *SolverConfig) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// MaxIntentSourceAmount parses the configured per-intent source-amount cap.
// An empty/unset value means no cap is enforced.
func (c *SolverConfig) MaxIntentSourceAmount() (*uint256.Int, error) {
	raw := strings.TrimSpace(c.MaxIntentSourceAmountStr)
	if raw == "" {
		return nil, nil
	}
	cap, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid max_intent_source_amount %q: %w", raw, err)
	}
	return cap, nil
}

// SupportsChain reports whether chainID is in the solver's configured set.
func (c *SolverConfig) SupportsChain(chainID domain.ChainID) bool {
	for _, id := range c.SupportedChains {
		if id == chainID {
			return true
		}
	}
	return false
}

// defaults returns the base configuration that the YAML file and the
// environment variables are layered over.
func defaults() *SolverConfig {
	return &SolverConfig{
		MinProfitBps:            10,
		BaseRiskBps:             5,
		MEVProtectionEnabled:    true,
		MaxConcurrentExecutions: 10,
		ExecutionTimeoutSeconds: 300,
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		MetricsEnabled: true,
		ServiceName:    "settlement-core",
	}
}

// Load starts from the defaults, overlays SOLVER_CONFIG_FILE (default
// "config/solver.yaml") if present, then applies environment variable
// overrides. A value set explicitly in the file or environment, even a
// zero value, replaces the default.
func Load() (*SolverConfig, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := strings.TrimSpace(os.Getenv("SOLVER_CONFIG_FILE"))
	if path == "" {
		path = "config/solver.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *SolverConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read solver config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse solver config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *SolverConfig) error {
	if v := strings.TrimSpace(os.Getenv("SOLVER_ADDRESS")); v != "" {
		cfg.Address = common.HexToAddress(v)
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_PRIVATE_KEY_HANDLE")); v != "" {
		cfg.PrivateKeyHandle = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_SUPPORTED_CHAINS")); v != "" {
		chains, err := parseChainList(v)
		if err != nil {
			return err
		}
		cfg.SupportedChains = chains
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_MIN_PROFIT_BPS")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_MIN_PROFIT_BPS: %w", err)
		}
		cfg.MinProfitBps = uint32(n)
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_BASE_RISK_BPS")); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_BASE_RISK_BPS: %w", err)
		}
		cfg.BaseRiskBps = uint32(n)
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_MAX_INTENT_SOURCE_AMOUNT")); v != "" {
		cfg.MaxIntentSourceAmountStr = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_MEV_PROTECTION_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_MEV_PROTECTION_ENABLED: %w", err)
		}
		cfg.MEVProtectionEnabled = b
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_MAX_CONCURRENT_EXECUTIONS")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_MAX_CONCURRENT_EXECUTIONS: %w", err)
		}
		cfg.MaxConcurrentExecutions = n
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_EXECUTION_TIMEOUT_S")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SOLVER_EXECUTION_TIMEOUT_S: %w", err)
		}
		cfg.ExecutionTimeoutSeconds = n
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.Logging.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("METRICS_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED: %w", err)
		}
		cfg.MetricsEnabled = b
	}
	return nil
}

func parseChainList(raw string) ([]domain.ChainID, error) {
	parts := strings.Split(raw, ",")
	out := make([]domain.ChainID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", p, err)
		}
		out = append(out, domain.ChainID(n))
	}
	return out, nil
}

// Validate rejects a configuration that cannot run: no supported chains,
// no private key handle, or an out-of-range execution budget.
func (c *SolverConfig) Validate() error {
	if len(c.SupportedChains) == 0 {
		return fmt.Errorf("solver config: supported_chains must not be empty")
	}
	if c.PrivateKeyHandle == "" {
		return fmt.Errorf("solver config: private_key_handle is required")
	}
	if c.MaxConcurrentExecutions <= 0 {
		return fmt.Errorf("solver config: max_concurrent_executions must be positive")
	}
	if c.ExecutionTimeoutSeconds <= 0 {
		return fmt.Errorf("solver config: execution_timeout_s must be positive")
	}
	if _, err := c.MaxIntentSourceAmount(); err != nil {
		return fmt.Errorf("solver config: %w", err)
	}
	return nil
}
