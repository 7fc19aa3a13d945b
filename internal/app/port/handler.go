package port

import (
	"context"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
)

// ProtocolHandler is implemented by every protocol integration.
//
// Name, SupportedChains, DiscoveryEvents and Matches are static metadata and
// must not perform network I/O, so a handler can be constructed without an
// RPC client solely for listing and discovery.
type ProtocolHandler interface {
	// Name returns the unique protocol identifier (e.g. "aave_v3", "lido").
	Name() string

	// SupportedChains returns the chains where the protocol is deployed.
	SupportedChains() []string

	// DiscoveryEvents returns event signature hashes used as a proxy for
	// "this protocol has state associated with a wallet".
	DiscoveryEvents() []string

	// Matches reports whether this handler can process the given contract.
	Matches(contractAddress, chain string) bool

	// GetPositions fetches all positions the wallet holds on this protocol.
	GetPositions(ctx context.Context, walletAddress, chain string) ([]entity.Position, error)
}
