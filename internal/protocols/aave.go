package protocols

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

const (
	// aaveSupplyTopic is Supply(address,address,address,uint256,uint16).
	aaveSupplyTopic = "0x2b627736bca15cd5381dcf80b0bf11fd197d01a037c52b927a881a10fb73ba61"
	// aaveBorrowTopic is Borrow(address,address,address,uint256,uint8,uint256,uint16).
	aaveBorrowTopic = "0xb3d084820fb1a9decffb176436bd02558d15fac9b0ddfed8c465bc7359d7dce0"
)

const aavePoolRole = "pool"

// Aave's base currency oracle reports USD with 8 decimals.
const aaveBaseDecimals = 8

// AaveV3Handler reads a wallet's account-level lending state from the Aave
// v3 pool. getUserAccountData already aggregates all reserves in USD base
// units, so one call per chain covers every supplied and borrowed asset.
type AaveV3Handler struct {
	provider  port.ClientProvider
	addresses map[string]map[string]string
	chains    []string
	logger    *zap.Logger
}

// NewAaveV3Handler creates the handler from the configured per-chain pool
// addresses.
func NewAaveV3Handler(provider port.ClientProvider, addresses map[string]map[string]string, logger *zap.Logger) *AaveV3Handler {
	return &AaveV3Handler{
		provider:  provider,
		addresses: addresses,
		chains:    sortedChains(addresses),
		logger:    logger.Named("AaveV3Handler"),
	}
}

func (h *AaveV3Handler) Name() string { return "aave_v3" }

func (h *AaveV3Handler) SupportedChains() []string { return h.chains }

func (h *AaveV3Handler) DiscoveryEvents() []string {
	return []string{aaveSupplyTopic, aaveBorrowTopic}
}

func (h *AaveV3Handler) Matches(contractAddress, chain string) bool {
	return matchesAny(h.addresses, contractAddress, chain)
}

// GetPositions returns up to two positions: the aggregate collateral and the
// aggregate debt. Both carry their USD value directly since the pool reports
// them in base currency; enrichment leaves pre-valued positions untouched.
func (h *AaveV3Handler) GetPositions(ctx context.Context, walletAddress, chain string) ([]entity.Position, error) {
	pool, ok := h.addresses[chain][aavePoolRole]
	if !ok {
		return nil, fmt.Errorf("aave v3 has no pool configured on chain %q", chain)
	}
	client, err := h.provider.ClientFor(chain)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI("aavePool").Pack("getUserAccountData", common.HexToAddress(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getUserAccountData: %w", err)
	}
	raw, err := client.CallContract(ctx, common.HexToAddress(pool), data)
	if err != nil {
		return nil, fmt.Errorf("getUserAccountData failed: %w", err)
	}
	if len(raw) < 6*32 {
		return nil, fmt.Errorf("getUserAccountData returned %d bytes, want %d", len(raw), 6*32)
	}

	collateral := unpackUint256(raw[0:32])
	debt := unpackUint256(raw[32:64])
	availableBorrows := unpackUint256(raw[64:96])
	liquidationThreshold := unpackUint256(raw[96:128])
	ltv := unpackUint256(raw[128:160])
	healthFactorRaw := unpackUint256(raw[160:192])

	var positions []entity.Position

	if collateral.Sign() > 0 {
		value := weiToDecimal(collateral, aaveBaseDecimals)
		pos := entity.Position{
			Protocol: h.Name(),
			Chain:    chain,
			Type:     entity.LendingSupply,
			Token:    entity.Token{Address: pool, Symbol: "aUSD-base", Decimals: aaveBaseDecimals, Name: "Aave v3 Collateral"},
			Balance:  value,
			USDValue: &value,
			Metadata: map[string]any{
				"ltvBps":                  ltv.String(),
				"liquidationThresholdBps": liquidationThreshold.String(),
				"availableBorrowsBase":    availableBorrows.String(),
			},
		}
		// The health factor only means something while debt exists; the pool
		// reports max uint256 for debt-free accounts.
		if debt.Sign() > 0 {
			hf := weiToDecimal(healthFactorRaw, 18)
			pos.HealthFactor = &hf
		}
		positions = append(positions, pos)
	}

	if debt.Sign() > 0 {
		value := weiToDecimal(debt, aaveBaseDecimals)
		hf := weiToDecimal(healthFactorRaw, 18)
		positions = append(positions, entity.Position{
			Protocol:     h.Name(),
			Chain:        chain,
			Type:         entity.LendingBorrow,
			Token:        entity.Token{Address: pool, Symbol: "aaveDebt-base", Decimals: aaveBaseDecimals, Name: "Aave v3 Debt"},
			Balance:      value,
			USDValue:     &value,
			HealthFactor: &hf,
		})
	}

	return positions, nil
}
