package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arbcore/internal/chain"
	"arbcore/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "arbcore",
		Short:        "Cross-venue arbitrage detection and bundle execution",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("rpc", "", "chain RPC URL")
	root.PersistentFlags().Int("threshold-bps", 10, "minimum spread in basis points")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Detect and execute opportunities until interrupted",
		RunE:  runArb,
	}
	runCmd.Flags().Duration("interval", 2*time.Second, "delay between cycles")
	runCmd.Flags().Int("execute-concurrency", 2, "opportunities executed in parallel")
	runCmd.Flags().String("relay-url", "", "private relay URL")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one detection cycle and print opportunities as JSON lines",
		RunE:  runScan,
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt-key",
		Short: "Encrypt the signer key from ARBCORE_SIGNER_KEY into a key file",
		RunE:  runEncryptKey,
	}
	encryptCmd.Flags().String("out", "./data/signer.key.json", "output key file")
	encryptCmd.Flags().String("password", "", "key file password")

	root.AddCommand(runCmd, scanCmd, encryptCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runArb(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.ValidateExecution(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("arbcore start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", app.chainID.Uint64()),
		zap.Int("venues", len(cfg.Venues)),
		zap.Int("cycles", len(cfg.Cycles)),
		zap.Int("threshold_bps", cfg.ThresholdBps),
		zap.Int("slippage_bps", cfg.SlippageBps),
		zap.Duration("interval", cfg.Interval),
		zap.String("signer", app.signer.Hex()),
	)

	err = app.runner.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("arbcore stopped")
		return nil
	}
	return err
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	opps, err := app.runner.Scan(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, opp := range opps {
		if err := enc.Encode(opp); err != nil {
			return fmt.Errorf("write opportunity: %w", err)
		}
	}
	logger.Info("scan complete", zap.Int("opportunities", len(opps)))
	return nil
}

func runEncryptKey(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("ARBCORE_SIGNER_KEY_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	key := os.Getenv("ARBCORE_SIGNER_KEY")
	if key == "" {
		return fmt.Errorf("ARBCORE_SIGNER_KEY is not set")
	}
	data, err := chain.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
