package protocols

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

// lidoSubmittedTopic is Submitted(address,uint256,address), emitted when a
// wallet stakes ETH through Lido.
const lidoSubmittedTopic = "0x96a25c8ce0baabc1fdefd93e9ed25d8e092a3332f3aa9a41722b5697231d1d1a"

const (
	lidoRoleStETH  = "steth"
	lidoRoleWstETH = "wsteth"
)

// LidoHandler reads stETH and wstETH holdings. Both are valued in ETH:
// stETH rebases to track staked ETH one to one, and wstETH converts through
// the contract's own exchange rate.
type LidoHandler struct {
	provider port.ClientProvider
	// addresses maps chain -> role -> contract address.
	addresses map[string]map[string]string
	chains    []string
	logger    *zap.Logger
}

// NewLidoHandler creates the handler from the configured per-chain contract
// addresses.
func NewLidoHandler(provider port.ClientProvider, addresses map[string]map[string]string, logger *zap.Logger) *LidoHandler {
	return &LidoHandler{
		provider:  provider,
		addresses: addresses,
		chains:    sortedChains(addresses),
		logger:    logger.Named("LidoHandler"),
	}
}

func (h *LidoHandler) Name() string { return "lido" }

func (h *LidoHandler) SupportedChains() []string { return h.chains }

func (h *LidoHandler) DiscoveryEvents() []string {
	return []string{lidoSubmittedTopic}
}

func (h *LidoHandler) Matches(contractAddress, chain string) bool {
	return matchesAny(h.addresses, contractAddress, chain)
}

// GetPositions fetches the wallet's stETH and wstETH balances and returns a
// liquid staking position for each non-zero holding.
func (h *LidoHandler) GetPositions(ctx context.Context, walletAddress, chain string) ([]entity.Position, error) {
	contracts := h.addresses[chain]
	if len(contracts) == 0 {
		return nil, fmt.Errorf("lido is not deployed on chain %q", chain)
	}
	client, err := h.provider.ClientFor(chain)
	if err != nil {
		return nil, err
	}

	wallet := common.HexToAddress(walletAddress)
	var positions []entity.Position

	if stETH, ok := contracts[lidoRoleStETH]; ok {
		pos, err := h.stETHPosition(ctx, client, chain, stETH, wallet)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			positions = append(positions, *pos)
		}
	}
	if wstETH, ok := contracts[lidoRoleWstETH]; ok {
		pos, err := h.wstETHPosition(ctx, client, chain, wstETH, wallet)
		if err != nil {
			return nil, err
		}
		if pos != nil {
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

func (h *LidoHandler) stETHPosition(ctx context.Context, client port.CallClient, chain, contract string, wallet common.Address) (*entity.Position, error) {
	raw, err := client.CallContract(ctx, common.HexToAddress(contract), packBalanceOf(wallet))
	if err != nil {
		return nil, fmt.Errorf("stETH balanceOf failed: %w", err)
	}
	balance := unpackUint256(raw)
	if balance.Sign() == 0 {
		return nil, nil
	}

	amount := weiToDecimal(balance, 18)
	// stETH rebases against staked ETH, so the underlying ETH amount equals
	// the token balance.
	underlying := amount
	return &entity.Position{
		Protocol:          h.Name(),
		Chain:             chain,
		Type:              entity.LiquidStaking,
		Token:             entity.Token{Address: contract, Symbol: "stETH", Decimals: 18, Name: "Lido Staked Ether"},
		Balance:           amount,
		UnderlyingToken:   &entity.Token{Address: entity.ZeroAddress, Symbol: "ETH", Decimals: 18},
		UnderlyingBalance: &underlying,
	}, nil
}

func (h *LidoHandler) wstETHPosition(ctx context.Context, client port.CallClient, chain, contract string, wallet common.Address) (*entity.Position, error) {
	to := common.HexToAddress(contract)
	raw, err := client.CallContract(ctx, to, packBalanceOf(wallet))
	if err != nil {
		return nil, fmt.Errorf("wstETH balanceOf failed: %w", err)
	}
	balance := unpackUint256(raw)
	if balance.Sign() == 0 {
		return nil, nil
	}

	data, err := parsedABI("wsteth").Pack("getStETHByWstETH", balance)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getStETHByWstETH: %w", err)
	}
	rawStETH, err := client.CallContract(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("getStETHByWstETH failed: %w", err)
	}
	underlying := weiToDecimal(unpackUint256(rawStETH), 18)

	return &entity.Position{
		Protocol:          h.Name(),
		Chain:             chain,
		Type:              entity.LiquidStaking,
		Token:             entity.Token{Address: contract, Symbol: "wstETH", Decimals: 18, Name: "Wrapped liquid staked Ether"},
		Balance:           weiToDecimal(balance, 18),
		UnderlyingToken:   &entity.Token{Address: entity.ZeroAddress, Symbol: "ETH", Decimals: 18},
		UnderlyingBalance: &underlying,
	}, nil
}
