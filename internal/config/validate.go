package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"arbcore/internal/model"
)

const (
	KindPool      = "pool"
	KindOrderBook = "orderbook"
)

// ParsePair parses "BASE-QUOTE".
func ParsePair(raw string) (model.Pair, error) {
	base, quote, ok := strings.Cut(strings.TrimSpace(raw), "-")
	base, quote = strings.TrimSpace(base), strings.TrimSpace(quote)
	if !ok || base == "" || quote == "" {
		return model.Pair{}, fmt.Errorf("pair %q must look like BASE-QUOTE", raw)
	}
	return model.Pair{Base: base, Quote: quote}, nil
}

// TakerFeeDecimal returns the configured taker fee, zero when unset.
func (v VenueConfig) TakerFeeDecimal() (decimal.Decimal, error) {
	if strings.TrimSpace(v.TakerFee) == "" {
		return decimal.Zero, nil
	}
	fee, err := decimal.NewFromString(strings.TrimSpace(v.TakerFee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("venue %s taker_fee: %w", v.ID, err)
	}
	return fee, nil
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.ThresholdBps < 0 {
		return fmt.Errorf("threshold-bps must not be negative")
	}
	if c.SlippageBps < 0 || c.SlippageBps >= 10000 {
		return fmt.Errorf("slippage-bps must be in [0, 10000)")
	}
	if c.FetchConcurrency <= 0 || c.ExecuteConcurrency <= 0 {
		return fmt.Errorf("concurrency settings must be positive")
	}
	if c.TradeSize == nil || c.TradeSize.Sign() <= 0 {
		return fmt.Errorf("trade-size must be positive")
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue is required")
	}

	kinds := make(map[string]string, len(c.Venues))
	needsRedis := false
	for i, venue := range c.Venues {
		if venue.ID == "" {
			return fmt.Errorf("venue %d: id is required", i)
		}
		if _, dup := kinds[venue.ID]; dup {
			return fmt.Errorf("venue %s: duplicate id", venue.ID)
		}
		kinds[venue.ID] = venue.Kind
		if _, err := ParsePair(venue.Pair); err != nil {
			return fmt.Errorf("venue %s: %w", venue.ID, err)
		}
		switch venue.Kind {
		case KindPool:
			if !isAddress(venue.Pool) {
				return fmt.Errorf("venue %s: pool %q is not an address", venue.ID, venue.Pool)
			}
			if venue.BaseToken != "" && !isAddress(venue.BaseToken) {
				return fmt.Errorf("venue %s: base_token %q is not an address", venue.ID, venue.BaseToken)
			}
		case KindOrderBook:
			needsRedis = true
			fee, err := venue.TakerFeeDecimal()
			if err != nil {
				return err
			}
			if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				return fmt.Errorf("venue %s: taker_fee must be in [0, 1)", venue.ID)
			}
		default:
			return fmt.Errorf("venue %s: unknown kind %q", venue.ID, venue.Kind)
		}
	}
	if needsRedis && c.RedisURL == "" {
		return fmt.Errorf("redis-url is required for orderbook venues")
	}

	for i, cycle := range c.Cycles {
		if len(cycle.Venues) != 3 {
			return fmt.Errorf("cycle %d: exactly 3 venues are required", i)
		}
		for _, id := range cycle.Venues {
			if kinds[id] != KindPool {
				return fmt.Errorf("cycle %d: %q is not a pool venue", i, id)
			}
		}
		if !isAddress(cycle.Start) {
			return fmt.Errorf("cycle %d: start %q is not an address", i, cycle.Start)
		}
	}
	return nil
}

// ValidateExecution checks the settings the run command needs on top of
// Validate.
func (c Config) ValidateExecution() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case c.RelayURL == "":
		return fmt.Errorf("relay-url is required")
	case c.RelayAuthKey == "":
		return fmt.Errorf("relay-auth-key is required")
	case !isAddress(c.Executor):
		return fmt.Errorf("executor %q is not an address", c.Executor)
	case !isAddress(c.Quoter):
		return fmt.Errorf("quoter %q is not an address", c.Quoter)
	case !isAddress(c.Beneficiary):
		return fmt.Errorf("beneficiary %q is not an address", c.Beneficiary)
	case c.SignerKey == "" && c.SignerKeyFile == "":
		return fmt.Errorf("signer-key or signer-key-file is required")
	case c.GasLimit == 0:
		return fmt.Errorf("gas-limit must be positive")
	}
	return nil
}

func isAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}
