package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

// stubHandler is a minimal ProtocolHandler for registry tests.
type stubHandler struct {
	name      string
	chains    []string
	events    []string
	contracts []string
}

func (s *stubHandler) Name() string              { return s.name }
func (s *stubHandler) SupportedChains() []string { return s.chains }
func (s *stubHandler) DiscoveryEvents() []string { return s.events }

func (s *stubHandler) Matches(contractAddress, chain string) bool {
	for _, c := range s.contracts {
		if strings.EqualFold(c, contractAddress) {
			return true
		}
	}
	return false
}

func (s *stubHandler) GetPositions(ctx context.Context, walletAddress, chain string) ([]entity.Position, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := New()
	h := &stubHandler{name: "lido", chains: []string{"ethereum"}}
	if err := reg.Register(h); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, ok := reg.Get("lido")
	if !ok {
		t.Fatal("Get() ok = false for registered handler")
	}
	if got != h {
		t.Error("Get() returned a different handler")
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Error("Get() ok = true for unregistered name")
	}
}

func TestRegistry_RegisterRejectsEmptyName(t *testing.T) {
	reg := New()
	if err := reg.Register(&stubHandler{name: ""}); err == nil {
		t.Error("Register() accepted a handler without a name")
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := New()
	first := &stubHandler{name: "aave_v3", chains: []string{"ethereum"}}
	second := &stubHandler{name: "aave_v3", chains: []string{"base"}}

	if err := reg.Register(first); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := reg.Register(second); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, _ := reg.Get("aave_v3")
	if got != second {
		t.Error("Get() returned the first registration, want the replacement")
	}
	if names := reg.Protocols(); len(names) != 1 {
		t.Errorf("Protocols() = %v, want exactly one entry", names)
	}
}

func TestRegistry_HandlersForChain(t *testing.T) {
	reg := New()
	lido := &stubHandler{name: "lido", chains: []string{"ethereum"}}
	aave := &stubHandler{name: "aave_v3", chains: []string{"ethereum", "base"}}
	etherfi := &stubHandler{name: "etherfi", chains: []string{"ethereum"}}
	for _, h := range []*stubHandler{lido, aave, etherfi} {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register(%s) error: %v", h.name, err)
		}
	}

	base := reg.HandlersForChain("base")
	if len(base) != 1 || base[0].Name() != "aave_v3" {
		t.Errorf("HandlersForChain(base) = %v, want [aave_v3]", names(base))
	}

	eth := reg.HandlersForChain("ethereum")
	want := []string{"lido", "aave_v3", "etherfi"}
	if got := names(eth); !equal(got, want) {
		t.Errorf("HandlersForChain(ethereum) = %v, want %v in registration order", got, want)
	}

	if got := reg.HandlersForChain("solana"); len(got) != 0 {
		t.Errorf("HandlersForChain(solana) = %v, want empty", names(got))
	}
}

func TestRegistry_DiscoveryEvents(t *testing.T) {
	reg := New()
	if err := reg.Register(&stubHandler{
		name:   "lido",
		chains: []string{"ethereum"},
		events: []string{"0xaaa"},
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := reg.Register(&stubHandler{
		name:   "aave_v3",
		chains: []string{"base"},
		events: []string{"0xbbb", "0xccc"},
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	events := reg.DiscoveryEvents("ethereum")
	if len(events) != 1 {
		t.Fatalf("DiscoveryEvents(ethereum) has %d protocols, want 1", len(events))
	}
	if got := events["lido"]; len(got) != 1 || got[0] != "0xaaa" {
		t.Errorf("DiscoveryEvents(ethereum)[lido] = %v, want [0xaaa]", got)
	}
}

func TestRegistry_FindHandlerForContract(t *testing.T) {
	reg := New()
	lido := &stubHandler{
		name:      "lido",
		chains:    []string{"ethereum"},
		contracts: []string{"0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"},
	}
	if err := reg.Register(lido); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	h, ok := reg.FindHandlerForContract("0xAE7AB96520DE3A18E5E111B5EAAB095312D7FE84", "ethereum")
	if !ok {
		t.Fatal("FindHandlerForContract() missed a case-variant address")
	}
	if h.Name() != "lido" {
		t.Errorf("FindHandlerForContract() = %s, want lido", h.Name())
	}

	if _, ok := reg.FindHandlerForContract("0x0000000000000000000000000000000000000001", "ethereum"); ok {
		t.Error("FindHandlerForContract() matched an unknown contract")
	}
}

func TestRegistry_Clear(t *testing.T) {
	reg := New()
	if err := reg.Register(&stubHandler{name: "lido", chains: []string{"ethereum"}}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	reg.Clear()

	if got := reg.Protocols(); len(got) != 0 {
		t.Errorf("Protocols() = %v after Clear(), want empty", got)
	}
	if _, ok := reg.Get("lido"); ok {
		t.Error("Get() ok = true after Clear()")
	}
}

func names(handlers []port.ProtocolHandler) []string {
	out := make([]string, len(handlers))
	for i, h := range handlers {
		out[i] = h.Name()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
