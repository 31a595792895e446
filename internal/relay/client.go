// Package relay talks to a Flashbots-compatible private relay and drives a
// bundle from signing to a resolved inclusion result.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"arbcore/internal/chain"
	"arbcore/internal/model"
)

const (
	defaultHTTPTimeout    = 12 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultResolveTimeout = time.Minute
)

// ChainReader is what inclusion resolution needs from the node.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// SignedTx is a bundle transaction after signing.
type SignedTx struct {
	Signer common.Address
	Tx     *types.Transaction
}

// SimulationResult is the relay's verdict on a signed bundle.
type SimulationResult struct {
	BundleHash string
	GasUsed    uint64
	Failures   []string
}

// Reverted reports whether any transaction failed in simulation.
func (r SimulationResult) Reverted() bool {
	return len(r.Failures) > 0
}

// Handle identifies a sent bundle for resolution.
type Handle struct {
	BundleHash  string
	TargetBlock uint64
	Txs         []SignedTx
}

type Options struct {
	HTTPClient     *http.Client
	PollInterval   time.Duration
	ResolveTimeout time.Duration
}

type Client struct {
	url            string
	authKey        *ecdsa.PrivateKey
	authAddress    common.Address
	httpc          *http.Client
	chain          ChainReader
	pollInterval   time.Duration
	resolveTimeout time.Duration
	logger         *zap.Logger
}

// NewClient creates a relay client. The auth key only identifies the
// searcher to the relay; it never holds funds.
func NewClient(url, authKeyHex string, chainReader ChainReader, opts Options, logger *zap.Logger) (*Client, error) {
	h := strings.TrimPrefix(strings.TrimSpace(authKeyHex), "0x")
	if h == "" {
		return nil, fmt.Errorf("relay auth key is empty")
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("parse relay auth key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	return &Client{
		url:            strings.TrimSpace(url),
		authKey:        key,
		authAddress:    crypto.PubkeyToAddress(key.PublicKey),
		httpc:          opts.HTTPClient,
		chain:          chainReader,
		pollInterval:   opts.PollInterval,
		resolveTimeout: opts.ResolveTimeout,
		logger:         logger,
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type bundleParams struct {
	Txs              []string `json:"txs"`
	BlockNumber      string   `json:"blockNumber"`
	StateBlockNumber string   `json:"stateBlockNumber,omitempty"`
}

type callBundleResult struct {
	BundleHash   string `json:"bundleHash"`
	TotalGasUsed uint64 `json:"totalGasUsed"`
	Results      []struct {
		TxHash string `json:"txHash"`
		Error  string `json:"error"`
		Revert string `json:"revert"`
	} `json:"results"`
}

type sendBundleResult struct {
	BundleHash string `json:"bundleHash"`
}

func (c *Client) signBody(body []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(body), c.authKey)
	if err != nil {
		return "", fmt.Errorf("sign relay request: %w", err)
	}
	return c.authAddress.Hex() + ":" + hexutil.Encode(sig), nil
}

func (c *Client) rpc(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: []interface{}{params}})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	signature, err := c.signBody(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Flashbots-Signature", signature)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("%s: relay error %d: %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// Simulate runs eth_callBundle against the target block. A relay-level
// error is returned as an error; per-transaction failures are reported in
// the result.
func (c *Client) Simulate(ctx context.Context, txs []SignedTx, block uint64) (SimulationResult, error) {
	raw, err := encodeTxs(txs)
	if err != nil {
		return SimulationResult{}, err
	}
	var res callBundleResult
	params := bundleParams{Txs: raw, BlockNumber: hexutil.EncodeUint64(block), StateBlockNumber: "latest"}
	if err := c.rpc(ctx, "eth_callBundle", params, &res); err != nil {
		return SimulationResult{}, classify(model.ErrSimulationFailed, err)
	}

	out := SimulationResult{BundleHash: res.BundleHash, GasUsed: res.TotalGasUsed}
	for _, tx := range res.Results {
		switch {
		case tx.Error != "":
			out.Failures = append(out.Failures, tx.TxHash+": "+tx.Error)
		case tx.Revert != "":
			out.Failures = append(out.Failures, tx.TxHash+": revert "+tx.Revert)
		}
	}
	return out, nil
}

// Send submits the bundle with eth_sendBundle.
func (c *Client) Send(ctx context.Context, txs []SignedTx, block uint64) (Handle, error) {
	raw, err := encodeTxs(txs)
	if err != nil {
		return Handle{}, err
	}
	var res sendBundleResult
	if err := c.rpc(ctx, "eth_sendBundle", bundleParams{Txs: raw, BlockNumber: hexutil.EncodeUint64(block)}, &res); err != nil {
		return Handle{}, classify(model.ErrSubmission, err)
	}
	return Handle{BundleHash: res.BundleHash, TargetBlock: block, Txs: txs}, nil
}

// Resolve waits for the chain to move past the target block and reports
// whether the bundle landed. Running out of time counts as not included.
func (c *Client) Resolve(ctx context.Context, handle Handle) (model.Inclusion, error) {
	if c.chain == nil {
		return model.NotIncluded, fmt.Errorf("relay has no chain reader")
	}
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		head, err := c.chain.LatestBlockNumber(ctx)
		if err == nil && head > handle.TargetBlock {
			break
		}
		if err != nil {
			c.logger.Debug("head poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.logger.Info("bundle resolution timed out",
				zap.String("bundle", handle.BundleHash),
				zap.Uint64("target_block", handle.TargetBlock),
			)
			return model.NotIncluded, nil
		case <-ticker.C:
		}
	}

	included := true
	for _, tx := range handle.Txs {
		receipt, err := c.chain.TransactionReceipt(ctx, tx.Tx.Hash())
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return model.NotIncluded, fmt.Errorf("receipt %s: %w", tx.Tx.Hash().Hex(), err)
		}
		if receipt != nil && receipt.BlockNumber != nil && receipt.BlockNumber.Uint64() == handle.TargetBlock {
			continue
		}
		included = false

		confirmed, err := c.chain.NonceAt(ctx, tx.Signer, nil)
		if err != nil {
			return model.NotIncluded, fmt.Errorf("nonce of %s: %w", tx.Signer.Hex(), err)
		}
		if confirmed > tx.Tx.Nonce() {
			return model.NonceConflict, nil
		}
	}
	if included {
		return model.Included, nil
	}
	return model.NotIncluded, nil
}

func encodeTxs(txs []SignedTx) ([]string, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: empty bundle", model.ErrValidation)
	}
	out := make([]string, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.Tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode bundle tx %d: %w", i, err)
		}
		out = append(out, hexutil.Encode(raw))
	}
	return out, nil
}

// classify wraps err with kind, and additionally with ErrNonceRejected when
// the relay refused a nonce.
func classify(kind error, err error) error {
	if chain.IsNonceRejection(err) {
		return fmt.Errorf("%w: %w: %w", kind, model.ErrNonceRejected, err)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
