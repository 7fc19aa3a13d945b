package protocols

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

const testWallet = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

const (
	stethAddr  = "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"
	wstethAddr = "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"
	poolAddr   = "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"
	eethAddr   = "0x35fA164735182de50811E8e2E824cFb9B6118ac2"
	weethAddr  = "0xCd5fE23C85820F7B72D0926FC9b05b43E359b7ee"
)

// callKey routes a faked eth_call by target contract and method selector.
type callKey struct {
	to       common.Address
	selector [4]byte
}

type fakeContractClient struct {
	chain   string
	returns map[callKey][]byte
	errs    map[callKey]error
}

func (f *fakeContractClient) MakeRequest(ctx context.Context, result any, method string, params ...any) error {
	return errors.New("not implemented")
}

func (f *fakeContractClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("calldata too short")
	}
	key := callKey{to: to, selector: [4]byte(data[:4])}
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	out, ok := f.returns[key]
	if !ok {
		return nil, fmt.Errorf("no return configured for %s selector %x", to.Hex(), data[:4])
	}
	return out, nil
}

func (f *fakeContractClient) Chain() string { return f.chain }

type fakeProvider struct {
	client *fakeContractClient
}

func (p *fakeProvider) ClientFor(chain string) (port.CallClient, error) {
	if p.client == nil || p.client.chain != chain {
		return nil, fmt.Errorf("chain %q is not configured", chain)
	}
	return p.client, nil
}

func selectorOf(t *testing.T, abiName, method string) [4]byte {
	t.Helper()
	m, ok := parsedABI(abiName).Methods[method]
	if !ok {
		t.Fatalf("method %s missing from %s ABI", method, abiName)
	}
	return [4]byte(m.ID)
}

func uint256Word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// eth converts a decimal ether amount into its 18-decimal wei word.
func eth(t *testing.T, amount string) []byte {
	t.Helper()
	d := decimal.RequireFromString(amount).Shift(18)
	return uint256Word(d.BigInt())
}

func lidoAddresses() map[string]map[string]string {
	return map[string]map[string]string{
		"ethereum": {lidoRoleStETH: stethAddr, lidoRoleWstETH: wstethAddr},
	}
}

func TestLidoHandler_Metadata(t *testing.T) {
	h := NewLidoHandler(&fakeProvider{}, lidoAddresses(), zap.NewNop())

	if h.Name() != "lido" {
		t.Errorf("Name() = %s, want lido", h.Name())
	}
	if chains := h.SupportedChains(); len(chains) != 1 || chains[0] != "ethereum" {
		t.Errorf("SupportedChains() = %v, want [ethereum]", chains)
	}
	if events := h.DiscoveryEvents(); len(events) != 1 || events[0] != lidoSubmittedTopic {
		t.Errorf("DiscoveryEvents() = %v, want the Submitted topic", events)
	}
	if !h.Matches(stethAddr, "ethereum") {
		t.Error("Matches() rejected the configured stETH address")
	}
	if !h.Matches("0xAE7AB96520DE3A18E5E111B5EAAB095312D7FE84", "ethereum") {
		t.Error("Matches() is case sensitive")
	}
	if h.Matches(stethAddr, "base") {
		t.Error("Matches() accepted a chain without a deployment")
	}
}

func TestLidoHandler_GetPositions(t *testing.T) {
	balanceOf := selectorOf(t, "erc20", "balanceOf")
	convert := selectorOf(t, "wsteth", "getStETHByWstETH")

	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(stethAddr), balanceOf}:  eth(t, "10.5"),
			{common.HexToAddress(wstethAddr), balanceOf}: eth(t, "2"),
			{common.HexToAddress(wstethAddr), convert}:   eth(t, "2.3"),
		},
	}
	h := NewLidoHandler(&fakeProvider{client: client}, lidoAddresses(), zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("GetPositions() returned %d positions, want 2", len(positions))
	}

	steth := positions[0]
	if steth.Type != entity.LiquidStaking {
		t.Errorf("stETH position type = %s, want %s", steth.Type, entity.LiquidStaking)
	}
	if !steth.Balance.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("stETH balance = %s, want 10.5", steth.Balance)
	}
	if steth.UnderlyingBalance == nil || !steth.UnderlyingBalance.Equal(steth.Balance) {
		t.Error("stETH underlying must equal the rebasing balance")
	}
	if err := steth.Validate(); err != nil {
		t.Errorf("stETH position invalid: %v", err)
	}

	wsteth := positions[1]
	if !wsteth.Balance.Equal(decimal.RequireFromString("2")) {
		t.Errorf("wstETH balance = %s, want 2", wsteth.Balance)
	}
	if wsteth.UnderlyingBalance == nil || !wsteth.UnderlyingBalance.Equal(decimal.RequireFromString("2.3")) {
		t.Errorf("wstETH underlying = %v, want 2.3 via the contract rate", wsteth.UnderlyingBalance)
	}
	if wsteth.UnderlyingToken == nil || wsteth.UnderlyingToken.Address != entity.ZeroAddress {
		t.Error("wstETH underlying token must be native ETH")
	}
}

func TestLidoHandler_ZeroBalancesYieldNoPositions(t *testing.T) {
	balanceOf := selectorOf(t, "erc20", "balanceOf")
	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(stethAddr), balanceOf}:  uint256Word(big.NewInt(0)),
			{common.HexToAddress(wstethAddr), balanceOf}: uint256Word(big.NewInt(0)),
		},
	}
	h := NewLidoHandler(&fakeProvider{client: client}, lidoAddresses(), zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("GetPositions() = %v, want none for zero balances", positions)
	}
}

func TestLidoHandler_UnknownChain(t *testing.T) {
	h := NewLidoHandler(&fakeProvider{}, lidoAddresses(), zap.NewNop())
	if _, err := h.GetPositions(context.Background(), testWallet, "base"); err == nil {
		t.Error("GetPositions() accepted a chain without a deployment")
	}
}

func aaveAccountData(collateral, debt, healthFactor *big.Int) []byte {
	var out bytes.Buffer
	out.Write(uint256Word(collateral))
	out.Write(uint256Word(debt))
	out.Write(uint256Word(big.NewInt(0)))    // availableBorrowsBase
	out.Write(uint256Word(big.NewInt(8000))) // liquidationThreshold
	out.Write(uint256Word(big.NewInt(7500))) // ltv
	out.Write(uint256Word(healthFactor))
	return out.Bytes()
}

func TestAaveV3Handler_SupplyOnly(t *testing.T) {
	getData := selectorOf(t, "aavePool", "getUserAccountData")

	// 1000 USD collateral, no debt. Health factor comes back as max uint256.
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(poolAddr), getData}: aaveAccountData(
				big.NewInt(100_000_000_000), big.NewInt(0), maxUint),
		},
	}
	h := NewAaveV3Handler(&fakeProvider{client: client},
		map[string]map[string]string{"ethereum": {aavePoolRole: poolAddr}}, zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("GetPositions() returned %d positions, want 1", len(positions))
	}

	supply := positions[0]
	if supply.Type != entity.LendingSupply {
		t.Errorf("type = %s, want %s", supply.Type, entity.LendingSupply)
	}
	want := decimal.RequireFromString("1000")
	if supply.USDValue == nil || !supply.USDValue.Equal(want) {
		t.Errorf("USDValue = %v, want %s", supply.USDValue, want)
	}
	if supply.HealthFactor != nil {
		t.Errorf("HealthFactor = %s, want nil without debt", supply.HealthFactor)
	}
}

func TestAaveV3Handler_SupplyAndBorrow(t *testing.T) {
	getData := selectorOf(t, "aavePool", "getUserAccountData")

	// 1000 USD collateral, 400 USD debt, health factor 1.85.
	hf, _ := new(big.Int).SetString("1850000000000000000", 10)
	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(poolAddr), getData}: aaveAccountData(
				big.NewInt(100_000_000_000), big.NewInt(40_000_000_000), hf),
		},
	}
	h := NewAaveV3Handler(&fakeProvider{client: client},
		map[string]map[string]string{"ethereum": {aavePoolRole: poolAddr}}, zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("GetPositions() returned %d positions, want supply and borrow", len(positions))
	}

	supply, borrow := positions[0], positions[1]
	if borrow.Type != entity.LendingBorrow {
		t.Errorf("second position type = %s, want %s", borrow.Type, entity.LendingBorrow)
	}
	if borrow.USDValue == nil || !borrow.USDValue.Equal(decimal.RequireFromString("400")) {
		t.Errorf("borrow USDValue = %v, want 400", borrow.USDValue)
	}

	wantHF := decimal.RequireFromString("1.85")
	for _, p := range []entity.Position{supply, borrow} {
		if p.HealthFactor == nil || !p.HealthFactor.Equal(wantHF) {
			t.Errorf("%s HealthFactor = %v, want %s", p.Type, p.HealthFactor, wantHF)
		}
	}
}

func TestAaveV3Handler_EmptyAccount(t *testing.T) {
	getData := selectorOf(t, "aavePool", "getUserAccountData")
	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(poolAddr), getData}: aaveAccountData(
				big.NewInt(0), big.NewInt(0), big.NewInt(0)),
		},
	}
	h := NewAaveV3Handler(&fakeProvider{client: client},
		map[string]map[string]string{"ethereum": {aavePoolRole: poolAddr}}, zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("GetPositions() = %v, want none for an untouched account", positions)
	}
}

func TestEtherfiHandler_GetPositions(t *testing.T) {
	balanceOf := selectorOf(t, "erc20", "balanceOf")
	convert := selectorOf(t, "weeth", "getEETHByWeETH")

	client := &fakeContractClient{
		chain: "ethereum",
		returns: map[callKey][]byte{
			{common.HexToAddress(eethAddr), balanceOf}:  eth(t, "5"),
			{common.HexToAddress(weethAddr), balanceOf}: eth(t, "1"),
			{common.HexToAddress(weethAddr), convert}:   eth(t, "1.04"),
		},
	}
	h := NewEtherfiHandler(&fakeProvider{client: client},
		map[string]map[string]string{"ethereum": {etherfiRoleEETH: eethAddr, etherfiRoleWeETH: weethAddr}},
		zap.NewNop())

	positions, err := h.GetPositions(context.Background(), testWallet, "ethereum")
	if err != nil {
		t.Fatalf("GetPositions() error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("GetPositions() returned %d positions, want 2", len(positions))
	}

	for _, p := range positions {
		if p.Type != entity.Restaking {
			t.Errorf("%s type = %s, want %s", p.Token.Symbol, p.Type, entity.Restaking)
		}
	}
	weeth := positions[1]
	if weeth.UnderlyingBalance == nil || !weeth.UnderlyingBalance.Equal(decimal.RequireFromString("1.04")) {
		t.Errorf("weETH underlying = %v, want 1.04", weeth.UnderlyingBalance)
	}
}

func TestUnpackUint256(t *testing.T) {
	if got := unpackUint256(nil); got.Sign() != 0 {
		t.Errorf("unpackUint256(nil) = %s, want 0", got)
	}
	if got := unpackUint256([]byte{0x01}); got.Sign() != 0 {
		t.Errorf("unpackUint256(short) = %s, want 0", got)
	}
	word := uint256Word(big.NewInt(123456))
	if got := unpackUint256(word); got.Cmp(big.NewInt(123456)) != 0 {
		t.Errorf("unpackUint256() = %s, want 123456", got)
	}
}
