package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultLlamaBaseURL  = "https://coins.llama.fi"
	defaultLlamaTimeout  = 10 * time.Second
	defaultCoinsPerBatch = 50
)

// DeFiLlamaClient fetches USD token prices from the public DeFiLlama coins
// API. Tokens the API does not know stay absent from the result, which the
// caller reads as a zero price.
type DeFiLlamaClient struct {
	client           *fasthttp.Client
	baseURL          string
	timeout          time.Duration
	maxCoinsPerBatch int
	logger           *zap.Logger
}

// NewDeFiLlamaClient creates a DeFiLlama price client. Zero-valued options
// fall back to defaults.
func NewDeFiLlamaClient(baseURL string, timeout time.Duration, maxCoinsPerBatch int, logger *zap.Logger) *DeFiLlamaClient {
	if baseURL == "" {
		baseURL = defaultLlamaBaseURL
	}
	if timeout <= 0 {
		timeout = defaultLlamaTimeout
	}
	if maxCoinsPerBatch <= 0 {
		maxCoinsPerBatch = defaultCoinsPerBatch
	}
	return &DeFiLlamaClient{
		client:           &fasthttp.Client{},
		baseURL:          strings.TrimRight(baseURL, "/"),
		timeout:          timeout,
		maxCoinsPerBatch: maxCoinsPerBatch,
		logger:           logger.Named("DeFiLlamaClient"),
	}
}

type llamaPriceResponse struct {
	Coins map[string]struct {
		Price     decimal.Decimal `json:"price"`
		Symbol    string          `json:"symbol"`
		Decimals  int32           `json:"decimals"`
		Timestamp int64           `json:"timestamp"`
	} `json:"coins"`
}

// GetPrices implements port.PriceSource. Requests are batched to respect the
// API's URL length limits; one failing batch fails the whole lookup so the
// caller can decide whether to serve partially unpriced data.
func (c *DeFiLlamaClient) GetPrices(ctx context.Context, tokens []entity.TokenRef) (map[entity.TokenRef]decimal.Decimal, error) {
	prices := make(map[entity.TokenRef]decimal.Decimal, len(tokens))
	if len(tokens) == 0 {
		return prices, nil
	}

	for start := 0; start < len(tokens); start += c.maxCoinsPerBatch {
		end := min(start+c.maxCoinsPerBatch, len(tokens))
		if err := c.fetchBatch(ctx, tokens[start:end], prices); err != nil {
			return nil, err
		}
	}
	return prices, nil
}

func (c *DeFiLlamaClient) fetchBatch(ctx context.Context, tokens []entity.TokenRef, prices map[entity.TokenRef]decimal.Decimal) error {
	coins := make([]string, 0, len(tokens))
	byCoin := make(map[string]entity.TokenRef, len(tokens))
	for _, ref := range tokens {
		coin := fmt.Sprintf("%s:%s", ref.Chain, strings.ToLower(ref.Address))
		coins = append(coins, coin)
		byCoin[coin] = ref
	}

	requestURL := fmt.Sprintf("%s/prices/current/%s", c.baseURL, strings.Join(coins, ","))
	c.logger.Debug("Requesting prices from DeFiLlama",
		zap.Int("tokens", len(tokens)), zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("DeFiLlama returned status %d for %s", resp.StatusCode(), requestURL)
	}

	var parsed llamaPriceResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return fmt.Errorf("failed to unmarshal DeFiLlama response: %w", err)
	}

	for coin, data := range parsed.Coins {
		ref, ok := byCoin[coin]
		if !ok {
			continue
		}
		prices[ref] = data.Price
	}
	return nil
}
