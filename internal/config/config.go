package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// VenueConfig describes one venue entry of the venues list.
type VenueConfig struct {
	ID        string `mapstructure:"id"`
	Kind      string `mapstructure:"kind"`
	Protocol  string `mapstructure:"protocol"`
	Pool      string `mapstructure:"pool"`
	Pair      string `mapstructure:"pair"`
	BaseToken string `mapstructure:"base_token"`
	TakerFee  string `mapstructure:"taker_fee"`
}

// CycleConfig is a triangular route over three pool venues.
type CycleConfig struct {
	Venues []string `mapstructure:"venues"`
	Start  string   `mapstructure:"start"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL              string
	ChainID             uint64
	RelayURL            string
	RelayAuthKey        string
	Executor            string
	Quoter              string
	SignerKey           string
	SignerKeyFile       string
	SignerKeyPassword   string
	Beneficiary         string
	ThresholdBps        int
	SlippageBps         int
	Interval            time.Duration
	FetchConcurrency    int
	ExecuteConcurrency  int
	QuoteRetries        int
	RetryBackoff        time.Duration
	QuoteMaxAge         time.Duration
	TradeSize           *big.Int
	CrossVenueSize      decimal.Decimal
	RedisURL            string
	PostgresDSN         string
	PoolStore           string
	GasLimit            uint64
	PriorityFee         *big.Int
	LockTTL             time.Duration
	RelayPollInterval   time.Duration
	RelayResolveTimeout time.Duration
	Venues              []VenueConfig
	Cycles              []CycleConfig
	LogLevel            string
}

// Load merges .env, config file, environment variables, and flags into
// Config. Later sources win: flags over env over file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ARBCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("threshold-bps", 10)
	v.SetDefault("slippage-bps", 50)
	v.SetDefault("interval", 2*time.Second)
	v.SetDefault("fetch-concurrency", 8)
	v.SetDefault("execute-concurrency", 2)
	v.SetDefault("quote-retries", 2)
	v.SetDefault("retry-backoff", 200*time.Millisecond)
	v.SetDefault("quote-max-age", 5*time.Second)
	v.SetDefault("trade-size", "1000000000000000000")
	v.SetDefault("cross-venue-size", "1")
	v.SetDefault("pool-store", "./data/pools.jsonl")
	v.SetDefault("gas-limit", uint64(800000))
	v.SetDefault("priority-fee", "1000000000")
	v.SetDefault("lock-ttl", time.Minute)
	v.SetDefault("relay-poll", 2*time.Second)
	v.SetDefault("relay-resolve-timeout", time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:              v.GetString("rpc"),
		ChainID:             v.GetUint64("chain-id"),
		RelayURL:            v.GetString("relay-url"),
		RelayAuthKey:        v.GetString("relay-auth-key"),
		Executor:            v.GetString("executor"),
		Quoter:              v.GetString("quoter"),
		SignerKey:           v.GetString("signer-key"),
		SignerKeyFile:       v.GetString("signer-key-file"),
		SignerKeyPassword:   v.GetString("signer-key-password"),
		Beneficiary:         v.GetString("beneficiary"),
		ThresholdBps:        v.GetInt("threshold-bps"),
		SlippageBps:         v.GetInt("slippage-bps"),
		Interval:            v.GetDuration("interval"),
		FetchConcurrency:    v.GetInt("fetch-concurrency"),
		ExecuteConcurrency:  v.GetInt("execute-concurrency"),
		QuoteRetries:        v.GetInt("quote-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		QuoteMaxAge:         v.GetDuration("quote-max-age"),
		RedisURL:            v.GetString("redis-url"),
		PostgresDSN:         v.GetString("pg-dsn"),
		PoolStore:           v.GetString("pool-store"),
		GasLimit:            v.GetUint64("gas-limit"),
		LockTTL:             v.GetDuration("lock-ttl"),
		RelayPollInterval:   v.GetDuration("relay-poll"),
		RelayResolveTimeout: v.GetDuration("relay-resolve-timeout"),
		LogLevel:            v.GetString("log-level"),
	}

	var err error
	if cfg.TradeSize, err = parseWei("trade-size", v.GetString("trade-size")); err != nil {
		return Config{}, err
	}
	if cfg.PriorityFee, err = parseWei("priority-fee", v.GetString("priority-fee")); err != nil {
		return Config{}, err
	}
	if cfg.CrossVenueSize, err = decimal.NewFromString(strings.TrimSpace(v.GetString("cross-venue-size"))); err != nil {
		return Config{}, fmt.Errorf("cross-venue-size: %w", err)
	}

	if err := v.UnmarshalKey("venues", &cfg.Venues); err != nil {
		return Config{}, fmt.Errorf("decode venues: %w", err)
	}
	if err := v.UnmarshalKey("cycles", &cfg.Cycles); err != nil {
		return Config{}, fmt.Errorf("decode cycles: %w", err)
	}

	return cfg, nil
}

func parseWei(key, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s: %q is not a non-negative integer", key, raw)
	}
	return value, nil
}
