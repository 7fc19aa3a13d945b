package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
)

// BatchCall is one read-only contract call queued in a CallBatcher.
type BatchCall struct {
	To   common.Address
	Data []byte
}

// CallBatcher groups read-only contract calls that are issued together. The
// calls execute sequentially through the resilient call client, so batching
// here is a sequencing optimization, not an atomic on-chain multicall. A call
// that exhausts its retries yields a nil slot instead of aborting the batch.
type CallBatcher struct {
	client port.CallClient
	calls  []BatchCall
	logger *zap.Logger
}

// NewCallBatcher creates an empty batcher bound to one chain client.
func NewCallBatcher(client port.CallClient, logger *zap.Logger) *CallBatcher {
	return &CallBatcher{
		client: client,
		logger: logger.Named("CallBatcher"),
	}
}

// Add queues a contract call with pre-encoded calldata.
func (b *CallBatcher) Add(to common.Address, data []byte) {
	b.calls = append(b.calls, BatchCall{To: to, Data: data})
}

// Len returns the number of queued calls.
func (b *CallBatcher) Len() int {
	return len(b.calls)
}

// Clear drops all queued calls without executing them.
func (b *CallBatcher) Clear() {
	b.calls = nil
}

// Execute runs every queued call in order and returns one result slot per
// call, nil where the call failed. The queue is cleared afterwards.
func (b *CallBatcher) Execute(ctx context.Context) [][]byte {
	results := make([][]byte, len(b.calls))
	for i, call := range b.calls {
		out, err := b.client.CallContract(ctx, call.To, call.Data)
		if err != nil {
			b.logger.Debug("Batched contract call failed",
				zap.String("chain", b.client.Chain()),
				zap.String("contract", call.To.Hex()),
				zap.Error(err))
			continue
		}
		results[i] = out
	}
	b.calls = nil
	return results
}
