package entity

import "github.com/shopspring/decimal"

// ChainActivity is the result of scanning one chain. Immutable after
// construction.
type ChainActivity struct {
	Chain       string   `json:"chain"`
	HasActivity bool     `json:"hasActivity"`
	Protocols   []string `json:"protocolsDetected"`
}

// PortfolioSummary is the aggregate view of a wallet across all chains and
// protocols. TotalUSDValue equals the sum of all position USD values (nil
// treated as zero); ByChain and ByProtocol partition the same total.
type PortfolioSummary struct {
	Address                  string                     `json:"address"`
	Positions                []Position                 `json:"positions"`
	TotalUSDValue            decimal.Decimal            `json:"totalUsdValue"`
	ByChain                  map[string]decimal.Decimal `json:"byChain"`
	ByProtocol               map[string]decimal.Decimal `json:"byProtocol"`
	TotalClaimableRewardsUSD decimal.Decimal            `json:"totalClaimableRewardsUsd"`
}

// NewEmptySummary returns a summary with zero totals and empty maps for a
// wallet with no detected activity.
func NewEmptySummary(address string) *PortfolioSummary {
	return &PortfolioSummary{
		Address:    address,
		Positions:  []Position{},
		ByChain:    map[string]decimal.Decimal{},
		ByProtocol: map[string]decimal.Decimal{},
	}
}
