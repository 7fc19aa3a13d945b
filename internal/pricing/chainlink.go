package pricing

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/rpc"
)

// latestAnswerSelector is the 4-byte selector of latestAnswer() on Chainlink
// aggregator feeds.
var latestAnswerSelector = []byte{0x50, 0xd2, 0x5b, 0xcd}

// chainlinkFeedDecimals is the decimal count of the USD-denominated
// Chainlink feeds this source is configured with.
const chainlinkFeedDecimals = 8

// ChainlinkSource prices tokens from on-chain Chainlink USD feeds and
// delegates everything without a configured feed, and every failed feed
// read, to a fallback source. With feeds on the same endpoints as the rest
// of the pipeline, core asset prices survive a pricing-API outage.
type ChainlinkSource struct {
	provider port.ClientProvider
	// feeds maps chain -> lowercase token address -> feed contract address.
	feeds    map[string]map[string]string
	fallback port.PriceSource
	logger   *zap.Logger
}

// NewChainlinkSource builds a feed-backed price source. fallback may be nil,
// in which case unfed tokens simply stay unpriced.
func NewChainlinkSource(provider port.ClientProvider, feeds map[string]map[string]string, fallback port.PriceSource, logger *zap.Logger) *ChainlinkSource {
	normalized := make(map[string]map[string]string, len(feeds))
	for chain, tokenFeeds := range feeds {
		m := make(map[string]string, len(tokenFeeds))
		for token, feed := range tokenFeeds {
			m[strings.ToLower(token)] = feed
		}
		normalized[chain] = m
	}
	return &ChainlinkSource{
		provider: provider,
		feeds:    normalized,
		fallback: fallback,
		logger:   logger.Named("ChainlinkSource"),
	}
}

// GetPrices implements port.PriceSource.
func (s *ChainlinkSource) GetPrices(ctx context.Context, tokens []entity.TokenRef) (map[entity.TokenRef]decimal.Decimal, error) {
	prices := make(map[entity.TokenRef]decimal.Decimal, len(tokens))
	if len(tokens) == 0 {
		return prices, nil
	}

	withFeed := make(map[string][]entity.TokenRef)
	var withoutFeed []entity.TokenRef
	for _, ref := range tokens {
		if _, ok := s.feeds[ref.Chain][strings.ToLower(ref.Address)]; ok {
			withFeed[ref.Chain] = append(withFeed[ref.Chain], ref)
		} else {
			withoutFeed = append(withoutFeed, ref)
		}
	}

	for chain, refs := range withFeed {
		failed := s.readFeeds(ctx, chain, refs, prices)
		withoutFeed = append(withoutFeed, failed...)
	}

	if len(withoutFeed) > 0 && s.fallback != nil {
		fallbackPrices, err := s.fallback.GetPrices(ctx, withoutFeed)
		if err != nil {
			s.logger.Warn("Fallback price source failed", zap.Error(err))
		} else {
			for ref, price := range fallbackPrices {
				prices[ref] = price
			}
		}
	}
	return prices, nil
}

// readFeeds batches latestAnswer reads for one chain and fills prices in
// place, returning the refs whose reads failed.
func (s *ChainlinkSource) readFeeds(ctx context.Context, chain string, refs []entity.TokenRef, prices map[entity.TokenRef]decimal.Decimal) []entity.TokenRef {
	client, err := s.provider.ClientFor(chain)
	if err != nil {
		s.logger.Warn("No client for chain, feeds skipped",
			zap.String("chain", chain), zap.Error(err))
		return refs
	}

	batcher := rpc.NewCallBatcher(client, s.logger)
	for _, ref := range refs {
		feed := s.feeds[chain][strings.ToLower(ref.Address)]
		batcher.Add(common.HexToAddress(feed), latestAnswerSelector)
	}
	results := batcher.Execute(ctx)

	var failed []entity.TokenRef
	for i, ref := range refs {
		if results[i] == nil || len(results[i]) < 32 {
			failed = append(failed, ref)
			continue
		}
		answer := new(big.Int).SetBytes(results[i][:32])
		if answer.Sign() <= 0 {
			failed = append(failed, ref)
			continue
		}
		prices[ref] = decimal.NewFromBigInt(answer, -chainlinkFeedDecimals)
	}
	return failed
}
