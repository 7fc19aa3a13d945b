package protocols

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/rpc"
)

const (
	// etherfiEnterTopic is the liquidity pool's staking entry event.
	etherfiEnterTopic = "0xea00f88768a86184a6e515238a549c171769fe7460a011d6fd0bcd48ca078ea4"
	// etherfiDepositTopic is Deposit(address,uint256) on the liquidity pool.
	etherfiDepositTopic = "0xe96d7872363f475d18b2f5390caaa5eaa96b2d38e42c62afe4ac08ebd2b13c3a"
)

const (
	etherfiRoleEETH  = "eeth"
	etherfiRoleWeETH = "weeth"
)

// EtherfiHandler reads eETH and weETH restaking balances. Both tokens are
// balance-probed in one sequential batch before any conversion call, so a
// wallet holding neither costs two cheap reads.
type EtherfiHandler struct {
	provider  port.ClientProvider
	addresses map[string]map[string]string
	chains    []string
	logger    *zap.Logger
}

// NewEtherfiHandler creates the handler from the configured per-chain
// contract addresses.
func NewEtherfiHandler(provider port.ClientProvider, addresses map[string]map[string]string, logger *zap.Logger) *EtherfiHandler {
	return &EtherfiHandler{
		provider:  provider,
		addresses: addresses,
		chains:    sortedChains(addresses),
		logger:    logger.Named("EtherfiHandler"),
	}
}

func (h *EtherfiHandler) Name() string { return "etherfi" }

func (h *EtherfiHandler) SupportedChains() []string { return h.chains }

func (h *EtherfiHandler) DiscoveryEvents() []string {
	return []string{etherfiEnterTopic, etherfiDepositTopic}
}

func (h *EtherfiHandler) Matches(contractAddress, chain string) bool {
	return matchesAny(h.addresses, contractAddress, chain)
}

// GetPositions fetches eETH and weETH balances and returns a restaking
// position per non-zero holding, valued in underlying ETH.
func (h *EtherfiHandler) GetPositions(ctx context.Context, walletAddress, chain string) ([]entity.Position, error) {
	contracts := h.addresses[chain]
	if len(contracts) == 0 {
		return nil, fmt.Errorf("etherfi is not deployed on chain %q", chain)
	}
	client, err := h.provider.ClientFor(chain)
	if err != nil {
		return nil, err
	}

	wallet := common.HexToAddress(walletAddress)
	eETH, hasEETH := contracts[etherfiRoleEETH]
	weETH, hasWeETH := contracts[etherfiRoleWeETH]

	batcher := rpc.NewCallBatcher(client, h.logger)
	if hasEETH {
		batcher.Add(common.HexToAddress(eETH), packBalanceOf(wallet))
	}
	if hasWeETH {
		batcher.Add(common.HexToAddress(weETH), packBalanceOf(wallet))
	}
	results := batcher.Execute(ctx)

	var positions []entity.Position
	i := 0

	if hasEETH {
		raw := results[i]
		i++
		if raw == nil {
			return nil, fmt.Errorf("eETH balanceOf failed on chain %q", chain)
		}
		if balance := unpackUint256(raw); balance.Sign() > 0 {
			amount := weiToDecimal(balance, 18)
			// eETH rebases against restaked ETH one to one.
			underlying := amount
			positions = append(positions, entity.Position{
				Protocol:          h.Name(),
				Chain:             chain,
				Type:              entity.Restaking,
				Token:             entity.Token{Address: eETH, Symbol: "eETH", Decimals: 18, Name: "ether.fi Staked ETH"},
				Balance:           amount,
				UnderlyingToken:   &entity.Token{Address: entity.ZeroAddress, Symbol: "ETH", Decimals: 18},
				UnderlyingBalance: &underlying,
			})
		}
	}

	if hasWeETH {
		raw := results[i]
		if raw == nil {
			return nil, fmt.Errorf("weETH balanceOf failed on chain %q", chain)
		}
		if balance := unpackUint256(raw); balance.Sign() > 0 {
			pos, err := h.weETHPosition(ctx, client, chain, weETH, balance)
			if err != nil {
				return nil, err
			}
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

func (h *EtherfiHandler) weETHPosition(ctx context.Context, client port.CallClient, chain, contract string, balance *big.Int) (*entity.Position, error) {
	data, err := parsedABI("weeth").Pack("getEETHByWeETH", balance)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getEETHByWeETH: %w", err)
	}
	raw, err := client.CallContract(ctx, common.HexToAddress(contract), data)
	if err != nil {
		return nil, fmt.Errorf("getEETHByWeETH failed: %w", err)
	}
	underlying := weiToDecimal(unpackUint256(raw), 18)

	return &entity.Position{
		Protocol:          h.Name(),
		Chain:             chain,
		Type:              entity.Restaking,
		Token:             entity.Token{Address: contract, Symbol: "weETH", Decimals: 18, Name: "Wrapped eETH"},
		Balance:           weiToDecimal(balance, 18),
		UnderlyingToken:   &entity.Token{Address: entity.ZeroAddress, Symbol: "ETH", Decimals: 18},
		UnderlyingBalance: &underlying,
	}, nil
}
