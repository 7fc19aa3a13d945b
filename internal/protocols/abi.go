package protocols

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Minimal ABI fragments for the read-only calls the handlers perform.
// Selectors are derived by the ABI encoder, never hardcoded.
const (
	erc20ABIJSON = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

	wstETHABIJSON = `[{"inputs":[{"name":"_wstETHAmount","type":"uint256"}],"name":"getStETHByWstETH","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	aavePoolABIJSON = `[{"inputs":[{"name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"name":"totalCollateralBase","type":"uint256"},{"name":"totalDebtBase","type":"uint256"},{"name":"availableBorrowsBase","type":"uint256"},{"name":"currentLiquidationThreshold","type":"uint256"},{"name":"ltv","type":"uint256"},{"name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	weETHABIJSON = `[{"inputs":[{"name":"_weETHAmount","type":"uint256"}],"name":"getEETHByWeETH","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var (
	parsedABIs    map[string]abi.ABI
	parseABIsOnce sync.Once
)

func parsedABI(name string) abi.ABI {
	parseABIsOnce.Do(func() {
		parsedABIs = make(map[string]abi.ABI)
		for label, raw := range map[string]string{
			"erc20":    erc20ABIJSON,
			"wsteth":   wstETHABIJSON,
			"aavePool": aavePoolABIJSON,
			"weeth":    weETHABIJSON,
		} {
			parsed, err := abi.JSON(strings.NewReader(raw))
			if err != nil {
				panic(fmt.Sprintf("failed to parse %s ABI: %v", label, err))
			}
			parsedABIs[label] = parsed
		}
	})
	return parsedABIs[name]
}

func packBalanceOf(wallet common.Address) []byte {
	data, err := parsedABI("erc20").Pack("balanceOf", wallet)
	if err != nil {
		panic(fmt.Sprintf("failed to pack balanceOf: %v", err))
	}
	return data
}

// unpackUint256 reads the single uint256 word an eth_call returned. Short or
// empty return data decodes to zero, the same as an empty balance.
func unpackUint256(data []byte) *big.Int {
	if len(data) < 32 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(data[:32])
}

// weiToDecimal scales a raw integer amount by the token's decimals.
func weiToDecimal(v *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v, -decimals)
}

// sortedChains returns the chain keys of a protocol address map in a stable
// order.
func sortedChains(addresses map[string]map[string]string) []string {
	chains := make([]string, 0, len(addresses))
	for chain := range addresses {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// matchesAny reports whether the contract address equals any configured
// address for the chain, case-insensitively.
func matchesAny(addresses map[string]map[string]string, contractAddress, chain string) bool {
	for _, addr := range addresses[chain] {
		if strings.EqualFold(addr, contractAddress) {
			return true
		}
	}
	return false
}
