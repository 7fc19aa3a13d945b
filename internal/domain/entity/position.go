package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PositionType defines the kind of DeFi position.
type PositionType string

const (
	// LendingSupply is an asset supplied to a lending pool.
	LendingSupply PositionType = "lending_supply"
	// LendingBorrow is an asset borrowed from a lending pool.
	LendingBorrow PositionType = "lending_borrow"
	// LiquidStaking is a staked asset represented by a liquid receipt token.
	LiquidStaking PositionType = "liquid_staking"
	// Vault is a yield vault share.
	Vault PositionType = "vault"
	// Restaking is a restaked asset (e.g. EigenLayer derivatives).
	Restaking PositionType = "restaking"
)

// Valid reports whether t is one of the known position types.
func (t PositionType) Valid() bool {
	switch t {
	case LendingSupply, LendingBorrow, LiquidStaking, Vault, Restaking:
		return true
	}
	return false
}

// Position is the universal representation of one on-chain holding.
//
// Balance and all other monetary amounts are arbitrary-precision decimals;
// float64 would drift across 6/8/18-decimal assets. USDValue nil means "no
// price available", which is distinct from a zero value. When an underlying
// token exists, USDValue reflects the underlying balance so that the same
// economic asset is priced consistently regardless of the wrapper.
type Position struct {
	Protocol          string           `json:"protocol"`
	Chain             string           `json:"chain"`
	Type              PositionType     `json:"positionType"`
	Token             Token            `json:"token"`
	Balance           decimal.Decimal  `json:"balance"`
	UnderlyingToken   *Token           `json:"underlyingToken,omitempty"`
	UnderlyingBalance *decimal.Decimal `json:"underlyingBalance,omitempty"`
	USDValue          *decimal.Decimal `json:"usdValue,omitempty"`
	Rewards           []Reward         `json:"claimableRewards,omitempty"`
	APY               *decimal.Decimal `json:"apy,omitempty"`
	// HealthFactor is only meaningful for leveraged positions; nil means
	// "not applicable" (no debt), not zero.
	HealthFactor *decimal.Decimal `json:"healthFactor,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// Validate checks the invariants a handler must uphold when constructing a
// position.
func (p *Position) Validate() error {
	if p.Protocol == "" {
		return fmt.Errorf("position missing protocol")
	}
	if p.Chain == "" {
		return fmt.Errorf("position missing chain")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown position type %q", p.Type)
	}
	return nil
}

// PriceRef returns the (chain, address) pair that should be used to price
// this position: the underlying token's pair when an underlying exists,
// otherwise the primary token's pair.
func (p *Position) PriceRef() TokenRef {
	if p.UnderlyingToken != nil {
		return TokenRef{Chain: p.Chain, Address: p.UnderlyingToken.Address}
	}
	return TokenRef{Chain: p.Chain, Address: p.Token.Address}
}
