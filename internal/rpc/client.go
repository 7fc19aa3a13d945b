package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/metrics"
)

// rpcCaller is the transport surface EVMClient needs from go-ethereum's
// rpc.Client.
type rpcCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// EVMClient is the resilient call client for one EVM chain. Every remote
// call goes through rate limiting, retry with exponential backoff and the
// optional response cache; all components above this layer are transport
// agnostic.
type EVMClient struct {
	rpcClient      rpcCaller
	chain          string
	requestTimeout time.Duration
	retry          RetryConfig
	limiter        *rate.Limiter
	cache          *Cache
	logger         *zap.Logger
}

// NewEVMClient dials the chain's primary endpoint, falling back through the
// configured alternates until one connects. cache may be nil to disable
// response memoization.
func NewEVMClient(chainCfg config.ChainConfig, rpcCfg config.RPCConfig, cache *Cache, logger *zap.Logger) (*EVMClient, error) {
	endpoints := append([]string{chainCfg.PrimaryRPCURL}, chainCfg.FallbackRPCURLs...)
	connectTimeout := time.Duration(rpcCfg.ConnectTimeoutMs) * time.Millisecond

	var lastErr error
	for _, endpoint := range endpoints {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		client, err := gethrpc.DialContext(ctx, endpoint)
		cancel()
		if err == nil {
			return &EVMClient{
				rpcClient:      client,
				chain:          chainCfg.Name,
				requestTimeout: time.Duration(rpcCfg.RequestTimeoutMs) * time.Millisecond,
				retry:          RetryConfigFrom(rpcCfg.Retry),
				limiter:        rate.NewLimiter(rate.Limit(rpcCfg.RateLimit), rpcCfg.BurstLimit),
				cache:          cache,
				logger:         logger.Named("EVMClient").With(zap.String("chain", chainCfg.Name)),
			}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", endpoint, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for chain %s: %w", chainCfg.Name, lastErr)
}

// Chain returns the chain identifier this client is connected to.
func (c *EVMClient) Chain() string {
	return c.chain
}

// MakeRequest issues a JSON-RPC call with retry/backoff and decodes the
// response into result. Cacheable methods are served from the response cache
// when a fresh entry exists. On retry exhaustion the last error is returned,
// never swallowed.
func (c *EVMClient) MakeRequest(ctx context.Context, result any, method string, params ...any) error {
	if c.cache != nil && c.cache.Cacheable(method) {
		if raw, ok := c.cache.Get(method, params); ok {
			return json.Unmarshal(raw, result)
		}
	}

	raw, err := c.request(ctx, method, params...)
	if err != nil {
		return err
	}

	if c.cache != nil && c.cache.Cacheable(method) {
		c.cache.Set(method, params, raw, 0)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(raw, result)
}

func (c *EVMClient) request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		metrics.RPCRequestsTotal.WithLabelValues(c.chain, method).Inc()

		callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		var raw json.RawMessage
		err := c.rpcClient.CallContext(callCtx, &raw, method, params...)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		// Result-size errors are deterministic; retrying cannot help, the
		// scanner recovers them by chunking the block range instead.
		if IsTooManyResults(err) {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.retry.MaxRetries {
			break
		}

		delay := c.retry.Delay(attempt)
		metrics.RPCRetriesTotal.WithLabelValues(c.chain, method).Inc()
		c.logger.Debug("RPC call failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", c.retry.MaxRetries+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	metrics.RPCErrorsTotal.WithLabelValues(c.chain, method).Inc()
	return nil, fmt.Errorf("RPC call %s on %s failed: %w", method, c.chain, lastErr)
}

// CallContract performs a read-only eth_call against the given contract with
// pre-encoded calldata.
func (c *EVMClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	callArgs := map[string]any{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var out hexutil.Bytes
	if err := c.MakeRequest(ctx, &out, "eth_call", callArgs, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// BlockNumber returns the current head block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	var out hexutil.Uint64
	if err := c.MakeRequest(ctx, &out, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.rpcClient.Close()
}
