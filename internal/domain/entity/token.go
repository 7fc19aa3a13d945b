package entity

import "github.com/shopspring/decimal"

// ZeroAddress represents the chain's native asset in token addresses and
// price-feed configuration.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Token identifies an ERC20-like asset. Native assets carry ZeroAddress; an
// empty Address marks an unset token, which is never priced.
type Token struct {
	Address  string `json:"address" yaml:"address"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int32  `json:"decimals" yaml:"decimals"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// TokenRef identifies a token for price lookups as a (chain, address) pair.
type TokenRef struct {
	Chain   string
	Address string
}

// Reward represents a claimable incentive. USDValue is populated during
// enrichment and stays nil when no price is available.
type Reward struct {
	Token    Token            `json:"token"`
	Amount   decimal.Decimal  `json:"amount"`
	USDValue *decimal.Decimal `json:"usdValue,omitempty"`
}
