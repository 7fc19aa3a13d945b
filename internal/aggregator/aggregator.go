package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/metrics"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/registry"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/scanner"
)

const (
	defaultMaxConcurrentChains = 4
	defaultChainTimeout        = 30 * time.Second
)

// Aggregator orchestrates the full pipeline: scan chains for activity,
// fan out position fetches per discovered protocol, price the results and
// fold them into a portfolio summary. A failing chain or protocol reduces
// the result instead of failing it.
type Aggregator struct {
	scanner       *scanner.Scanner
	registry      *registry.Registry
	prices        port.PriceSource
	maxConcurrent int
	chainTimeout  time.Duration
	logger        *zap.Logger
}

// New creates an aggregator. maxConcurrent bounds parallel chain workers and
// chainTimeout bounds each chain's whole scan-and-fetch task; zero values
// select the defaults.
func New(sc *scanner.Scanner, reg *registry.Registry, prices port.PriceSource, maxConcurrent int, chainTimeout time.Duration, logger *zap.Logger) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentChains
	}
	if chainTimeout <= 0 {
		chainTimeout = defaultChainTimeout
	}
	return &Aggregator{
		scanner:       sc,
		registry:      reg,
		prices:        prices,
		maxConcurrent: maxConcurrent,
		chainTimeout:  chainTimeout,
		logger:        logger.Named("Aggregator"),
	}
}

// GetAllPositions scans every configured chain and aggregates the wallet's
// positions across them. Chains with no activity are skipped before any
// worker is started; a wallet active nowhere returns an empty summary
// without a single protocol call.
func (a *Aggregator) GetAllPositions(ctx context.Context, wallet string) (*entity.PortfolioSummary, error) {
	activities := a.scanner.ScanAllChains(ctx, wallet)

	active := make([]entity.ChainActivity, 0, len(activities))
	for _, act := range activities {
		if act.HasActivity && len(act.Protocols) > 0 {
			active = append(active, act)
		}
	}
	if len(active) == 0 {
		a.logger.Info("No activity detected on any chain", zap.String("wallet", wallet))
		return entity.NewEmptySummary(wallet), nil
	}

	var (
		mu        sync.Mutex
		positions []entity.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(active), a.maxConcurrent))

	for _, act := range active {
		act := act
		g.Go(func() error {
			chainCtx, cancel := context.WithTimeout(gctx, a.chainTimeout)
			defer cancel()

			chainPositions := a.getChainPositions(chainCtx, wallet, act.Chain, act.Protocols)
			mu.Lock()
			positions = append(positions, chainPositions...)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; a chain's failure must not discard the
	// other chains' results.
	_ = g.Wait()

	a.enrich(ctx, positions)
	return a.buildSummary(wallet, positions), nil
}

// GetPositionsForChain aggregates positions on a single chain.
func (a *Aggregator) GetPositionsForChain(ctx context.Context, wallet, chain string) (*entity.PortfolioSummary, error) {
	activity := a.scanner.ScanChain(ctx, wallet, chain)
	if !activity.HasActivity || len(activity.Protocols) == 0 {
		return entity.NewEmptySummary(wallet), nil
	}

	chainCtx, cancel := context.WithTimeout(ctx, a.chainTimeout)
	defer cancel()

	positions := a.getChainPositions(chainCtx, wallet, chain, activity.Protocols)
	a.enrich(ctx, positions)
	return a.buildSummary(wallet, positions), nil
}

// GetPositionsForProtocol aggregates one protocol's positions. An empty
// chain means every supported chain where the wallet is active; a non-empty
// chain restricts the query to that chain, yielding an empty summary when
// the protocol does not run there.
func (a *Aggregator) GetPositionsForProtocol(ctx context.Context, wallet, protocol, chain string) (*entity.PortfolioSummary, error) {
	handler, ok := a.registry.Get(protocol)
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}

	configured := make(map[string]bool, len(a.scanner.Chains()))
	for _, name := range a.scanner.Chains() {
		configured[name] = true
	}

	chains := handler.SupportedChains()
	if chain != "" {
		chains = nil
		for _, supported := range handler.SupportedChains() {
			if supported == chain {
				chains = []string{chain}
				break
			}
		}
	}

	var positions []entity.Position
	for _, chain := range chains {
		if !configured[chain] {
			continue
		}
		if !a.scanner.HasChainActivity(ctx, wallet, chain) {
			continue
		}
		chainCtx, cancel := context.WithTimeout(ctx, a.chainTimeout)
		chainPositions, err := handler.GetPositions(chainCtx, wallet, chain)
		cancel()
		if err != nil {
			a.logger.Warn("Protocol fetch failed",
				zap.String("protocol", protocol),
				zap.String("chain", chain),
				zap.Error(err))
			continue
		}
		positions = append(positions, chainPositions...)
	}

	a.enrich(ctx, positions)
	return a.buildSummary(wallet, positions), nil
}

// getChainPositions fetches positions for every discovered protocol on one
// chain. Protocol failures are isolated: a broken handler loses only its own
// positions.
func (a *Aggregator) getChainPositions(ctx context.Context, wallet, chain string, protocols []string) []entity.Position {
	var positions []entity.Position
	for _, name := range protocols {
		handler, ok := a.registry.Get(name)
		if !ok {
			a.logger.Warn("Discovered protocol has no registered handler",
				zap.String("protocol", name), zap.String("chain", chain))
			continue
		}
		fetched, err := handler.GetPositions(ctx, wallet, chain)
		if err != nil {
			a.logger.Warn("Protocol fetch failed",
				zap.String("protocol", name),
				zap.String("chain", chain),
				zap.Error(err))
			continue
		}
		metrics.PositionsFetchedTotal.WithLabelValues(chain, name).Add(float64(len(fetched)))
		positions = append(positions, fetched...)
	}
	return positions
}

// enrich prices positions and rewards in place with one batched price
// lookup. A position with an underlying token is valued by its underlying
// balance; when the underlying has no price the primary token's price is
// tried before giving up. Unpriceable positions keep a nil USDValue.
func (a *Aggregator) enrich(ctx context.Context, positions []entity.Position) {
	if len(positions) == 0 {
		return
	}

	seen := make(map[entity.TokenRef]bool)
	var refs []entity.TokenRef
	add := func(ref entity.TokenRef) {
		if ref.Address == "" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	for i := range positions {
		p := &positions[i]
		add(p.PriceRef())
		add(entity.TokenRef{Chain: p.Chain, Address: p.Token.Address})
		for _, r := range p.Rewards {
			add(entity.TokenRef{Chain: p.Chain, Address: r.Token.Address})
		}
	}

	priceMap, err := a.prices.GetPrices(ctx, refs)
	if err != nil {
		a.logger.Warn("Price lookup failed, positions stay unpriced", zap.Error(err))
		return
	}

	for i := range positions {
		p := &positions[i]

		if p.UnderlyingToken != nil && p.UnderlyingBalance != nil {
			price := priceMap[p.PriceRef()]
			if price.IsPositive() {
				v := p.UnderlyingBalance.Mul(price)
				p.USDValue = &v
			}
		}
		if p.USDValue == nil {
			price := priceMap[entity.TokenRef{Chain: p.Chain, Address: p.Token.Address}]
			if price.IsPositive() {
				v := p.Balance.Mul(price)
				p.USDValue = &v
			}
		}

		for j := range p.Rewards {
			r := &p.Rewards[j]
			price := priceMap[entity.TokenRef{Chain: p.Chain, Address: r.Token.Address}]
			if price.IsPositive() {
				v := r.Amount.Mul(price)
				r.USDValue = &v
			}
		}
	}
}

// buildSummary folds priced positions into per-chain and per-protocol
// totals. Borrow positions contribute their USD value like any other; the
// summary reports exposure, not net equity.
func (a *Aggregator) buildSummary(wallet string, positions []entity.Position) *entity.PortfolioSummary {
	summary := entity.NewEmptySummary(wallet)
	if positions == nil {
		return summary
	}
	summary.Positions = positions

	for _, p := range positions {
		if p.USDValue != nil {
			summary.TotalUSDValue = summary.TotalUSDValue.Add(*p.USDValue)
			summary.ByChain[p.Chain] = summary.ByChain[p.Chain].Add(*p.USDValue)
			summary.ByProtocol[p.Protocol] = summary.ByProtocol[p.Protocol].Add(*p.USDValue)
		}
		for _, r := range p.Rewards {
			if r.USDValue != nil {
				summary.TotalClaimableRewardsUSD = summary.TotalClaimableRewardsUSD.Add(*r.USDValue)
			}
		}
	}
	return summary
}
