package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"arbcore/internal/cache"
	"arbcore/internal/cex"
	"arbcore/internal/chain"
	"arbcore/internal/config"
	"arbcore/internal/detector"
	"arbcore/internal/dex"
	"arbcore/internal/encoder"
	"arbcore/internal/engine"
	"arbcore/internal/nonce"
	"arbcore/internal/pathbuilder"
	"arbcore/internal/relay"
	"arbcore/internal/storage"
	"arbcore/internal/storage/postgres"
	"arbcore/internal/venue"
)

type components struct {
	runner  *engine.Runner
	chainID *big.Int
	signer  common.Address
	closers []func()
}

func (a *components) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire connects every component. Without execute the signer, relay and
// nonce coordinator are skipped and pool venues get no submitter.
func wire(ctx context.Context, cfg config.Config, execute bool, logger *zap.Logger) (*components, error) {
	a := &components{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, chainClient.Close)

	if cfg.ChainID != 0 {
		a.chainID = new(big.Int).SetUint64(cfg.ChainID)
	} else if a.chainID, err = chainClient.ChainID(ctx); err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	chainID := a.chainID.Uint64()

	var (
		submitter venue.BundleSubmitter
		nonces    *nonce.Coordinator
	)
	if execute {
		keyHex, err := chain.LoadKey(chain.KeyConfig{
			RawPrivateKey:    cfg.SignerKey,
			EncryptedKeyPath: cfg.SignerKeyFile,
			KeyPassword:      cfg.SignerKeyPassword,
		})
		if err != nil {
			return nil, err
		}
		signer, err := chain.NewLocalSigner(keyHex, a.chainID, chainClient)
		if err != nil {
			return nil, err
		}
		a.signer = signer.Address()
		nonces = nonce.NewCoordinator(signer, logger.Named("nonce"))

		relayClient, err := relay.NewClient(cfg.RelayURL, cfg.RelayAuthKey, chainClient, relay.Options{
			PollInterval:   cfg.RelayPollInterval,
			ResolveTimeout: cfg.RelayResolveTimeout,
		}, logger.Named("relay"))
		if err != nil {
			return nil, err
		}
		submitter = relay.NewSubmitter(relayClient, logger.Named("submitter"), signer)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	store, err := openPoolStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	metas := dex.NewPoolMetaCache()
	registry, err := venue.NewRegistry()
	if err != nil {
		return nil, err
	}
	var (
		targets []engine.Target
		pools   []common.Address
	)
	for _, vc := range cfg.Venues {
		pair, err := config.ParsePair(vc.Pair)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", vc.ID, err)
		}

		var v venue.Venue
		switch vc.Kind {
		case config.KindPool:
			pool := common.HexToAddress(vc.Pool)
			pools = append(pools, pool)
			var base common.Address
			if vc.BaseToken != "" {
				base = common.HexToAddress(vc.BaseToken)
			}
			v = dex.NewPoolVenue(dex.PoolConfig{
				ID:        vc.ID,
				Protocol:  vc.Protocol,
				Pool:      pool,
				Pair:      pair,
				BaseToken: base,
			}, chainID, chainClient, metas, submitter, logger.Named("pool"))
		case config.KindOrderBook:
			if rdb == nil {
				return nil, fmt.Errorf("venue %s: redis-url is required for orderbook venues", vc.ID)
			}
			fee, err := vc.TakerFeeDecimal()
			if err != nil {
				return nil, err
			}
			v = cex.NewOrderBookVenue(cex.Config{
				ID:       vc.ID,
				TakerFee: fee,
				MaxAge:   cfg.QuoteMaxAge,
			}, rdb, logger.Named("orderbook"))
		default:
			return nil, fmt.Errorf("venue %s: unknown kind %q", vc.ID, vc.Kind)
		}
		if err := registry.Add(v); err != nil {
			return nil, err
		}
		targets = append(targets, engine.Target{Venue: v, Pair: pair})
	}

	if len(pools) > 0 {
		if err := dex.WarmPoolMeta(ctx, chainClient, store, metas, chainID, pools, logger); err != nil {
			logger.Warn("pool metadata warmup failed", zap.Error(err))
		}
	}

	cycles := make([]detector.Cycle, 0, len(cfg.Cycles))
	for _, cc := range cfg.Cycles {
		var c detector.Cycle
		copy(c.Venues[:], cc.Venues)
		c.Start = common.HexToAddress(cc.Start)
		cycles = append(cycles, c)
	}

	enc, err := encoder.New()
	if err != nil {
		return nil, err
	}

	deps := engine.Deps{
		Venues:   registry,
		Detector: detector.New(detector.Config{ThresholdBps: uint64(cfg.ThresholdBps), TradeSize: cfg.TradeSize, CrossVenueSize: cfg.CrossVenueSize}, logger.Named("detector")),
		Encoder:  enc,
		Chain:    chainClient,
	}
	if cfg.Quoter != "" {
		deps.Simulator = dex.NewQuoter(chainClient, common.HexToAddress(cfg.Quoter))
	}
	if nonces != nil {
		deps.Nonces = nonces
	}
	if rdb != nil {
		deps.Locks = cache.NewRedisLocker(rdb, "arbcore:lock:")
	}

	a.runner = engine.NewRunner(engine.RunConfig{
		Interval:           cfg.Interval,
		FetchConcurrency:   cfg.FetchConcurrency,
		ExecuteConcurrency: cfg.ExecuteConcurrency,
		QuoteRetries:       cfg.QuoteRetries,
		RetryBaseDelay:     cfg.RetryBackoff,
		ChainID:            a.chainID,
		Executor:           common.HexToAddress(cfg.Executor),
		Signer:             a.signer,
		Build: pathbuilder.Params{
			SlippageBps: uint64(cfg.SlippageBps),
			Initiator:   a.signer.Hex(),
			Beneficiary: cfg.Beneficiary,
		},
		GasLimitFallback: cfg.GasLimit,
		PriorityFee:      cfg.PriorityFee,
		LockTTL:          cfg.LockTTL,
		Targets:          targets,
		Cycles:           cycles,
	}, deps, logger.Named("engine"))

	ok = true
	return a, nil
}

// openPoolStore prefers postgres when a DSN is set and falls back to the
// JSONL file otherwise.
func openPoolStore(ctx context.Context, cfg config.Config, a *components) (storage.PoolStore, error) {
	if cfg.PostgresDSN == "" {
		return storage.NewJsonlPoolStore(cfg.PoolStore), nil
	}
	pg, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
