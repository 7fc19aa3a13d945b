package port

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// CallClient is the low-level remote-call boundary to one chain. All
// components above the resilient call layer depend only on this interface
// and stay agnostic of the concrete RPC transport.
type CallClient interface {
	// MakeRequest issues a raw JSON-RPC call, decoding the response into
	// result (a pointer), e.g. eth_getLogs, eth_blockNumber.
	MakeRequest(ctx context.Context, result any, method string, params ...any) error

	// CallContract performs a read-only eth_call against the given contract
	// with pre-encoded calldata and returns the raw return data.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// Chain returns the chain identifier this client is connected to.
	Chain() string
}

// ClientProvider hands out a CallClient per configured chain, reusing
// connections across calls.
type ClientProvider interface {
	ClientFor(chain string) (CallClient, error)
}
