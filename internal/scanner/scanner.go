package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/metrics"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/registry"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/rpc"
)

// transferTopic is the ERC-20 Transfer(address,address,uint256) signature,
// used as a generic proxy for "this wallet has ever received tokens here".
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

const defaultMaxChunkDepth = 8

// Scanner detects wallet activity and discovers protocol usage through
// indexed log queries, avoiding per-protocol contract calls on chains the
// wallet never touched.
type Scanner struct {
	provider      port.ClientProvider
	registry      *registry.Registry
	chains        []string
	maxChunkDepth int
	logger        *zap.Logger
}

// New creates a scanner over the given chain list. maxChunkDepth bounds the
// log-range chunking recursion; zero selects the default.
func New(provider port.ClientProvider, reg *registry.Registry, chains []string, maxChunkDepth int, logger *zap.Logger) *Scanner {
	if maxChunkDepth <= 0 {
		maxChunkDepth = defaultMaxChunkDepth
	}
	return &Scanner{
		provider:      provider,
		registry:      reg,
		chains:        chains,
		maxChunkDepth: maxChunkDepth,
		logger:        logger.Named("Scanner"),
	}
}

// PadAddress left-zero-pads a 20-byte address to the 32-byte big-endian hex
// word used in log topic filters: 0x followed by 64 lowercase hex characters.
func PadAddress(address string) string {
	clean := strings.TrimPrefix(strings.ToLower(address), "0x")
	return "0x" + strings.Repeat("0", 64-len(clean)) + clean
}

// HasChainActivity reports whether the wallet has ever received a token
// transfer on the chain. Any failure is treated as "no activity": a false
// negative is cheaper than fanning out protocol work against a chain that
// cannot be queried.
func (s *Scanner) HasChainActivity(ctx context.Context, wallet, chain string) bool {
	client, err := s.provider.ClientFor(chain)
	if err != nil {
		s.logger.Debug("No client for chain, assuming no activity",
			zap.String("chain", chain), zap.Error(err))
		metrics.ChainScansTotal.WithLabelValues(chain, "error").Inc()
		return false
	}

	filter := map[string]any{
		"fromBlock": "0x0",
		"toBlock":   "latest",
		"topics":    []any{transferTopic, nil, PadAddress(wallet)},
	}
	var logs []json.RawMessage
	if err := client.MakeRequest(ctx, &logs, "eth_getLogs", filter); err != nil {
		s.logger.Debug("Activity probe failed, assuming no activity",
			zap.String("chain", chain), zap.Error(err))
		metrics.ChainScansTotal.WithLabelValues(chain, "error").Inc()
		return false
	}

	if len(logs) > 0 {
		metrics.ChainScansTotal.WithLabelValues(chain, "active").Inc()
		return true
	}
	metrics.ChainScansTotal.WithLabelValues(chain, "inactive").Inc()
	return false
}

// DiscoverProtocols returns the protocols the wallet has touched on a chain,
// by probing each registered discovery event with the wallet in the three
// candidate indexed-topic positions. The indexed-parameter position varies by
// event signature and is not knowable generically, so the first layout that
// returns any log marks the protocol discovered and stops further probes.
func (s *Scanner) DiscoverProtocols(ctx context.Context, wallet, chain string) []string {
	client, err := s.provider.ClientFor(chain)
	if err != nil {
		return nil
	}

	padded := PadAddress(wallet)
	events := s.registry.DiscoveryEvents(chain)
	var discovered []string

	for _, handler := range s.registry.HandlersForChain(chain) {
		if s.hasProtocolActivity(ctx, client, padded, events[handler.Name()]) {
			discovered = append(discovered, handler.Name())
		}
	}
	return discovered
}

func (s *Scanner) hasProtocolActivity(ctx context.Context, client port.CallClient, paddedWallet string, eventSignatures []string) bool {
	for _, sig := range eventSignatures {
		layouts := [][]any{
			{sig, paddedWallet},           // wallet as 1st indexed param
			{sig, nil, paddedWallet},      // wallet as 2nd indexed param
			{sig, nil, nil, paddedWallet}, // wallet as 3rd indexed param
		}
		for _, topics := range layouts {
			logs, err := s.queryLogsWithChunking(ctx, client, topics, "0x0", "latest", 0)
			if err != nil {
				continue
			}
			if len(logs) > 0 {
				return true
			}
		}
	}
	return false
}

// queryLogsWithChunking issues an eth_getLogs query, recursively splitting
// the block range when the provider reports a too-many-results error with an
// embedded suggested sub-range: the suggestion itself, the range before it,
// and the range after it are queried and concatenated. Other errors
// propagate unchanged. depth bounds the recursion so a provider that never
// narrows its suggestion cannot loop forever.
func (s *Scanner) queryLogsWithChunking(ctx context.Context, client port.CallClient, topics []any, fromBlock, toBlock string, depth int) ([]json.RawMessage, error) {
	filter := map[string]any{
		"fromBlock": fromBlock,
		"toBlock":   toBlock,
		"topics":    topics,
	}
	var logs []json.RawMessage
	err := client.MakeRequest(ctx, &logs, "eth_getLogs", filter)
	if err == nil {
		return logs, nil
	}
	if !rpc.IsTooManyResults(err) {
		return nil, err
	}

	suggestedFrom, suggestedTo, ok := rpc.ParseSuggestedRange(err)
	if !ok {
		return nil, err
	}
	if depth >= s.maxChunkDepth {
		return nil, fmt.Errorf("log query chunking exceeded depth %d in range [%s, %s]: %w",
			s.maxChunkDepth, fromBlock, toBlock, err)
	}
	if !narrows(fromBlock, toBlock, suggestedFrom, suggestedTo) {
		return nil, fmt.Errorf("provider suggested block range [%#x, %#x] does not narrow [%s, %s]: %w",
			suggestedFrom, suggestedTo, fromBlock, toBlock, err)
	}

	suggestedFromHex := hexutil.EncodeUint64(suggestedFrom)
	suggestedToHex := hexutil.EncodeUint64(suggestedTo)

	all, err := s.queryLogsWithChunking(ctx, client, topics, suggestedFromHex, suggestedToHex, depth+1)
	if err != nil {
		return nil, err
	}

	// The ranges flanking the suggestion may hold more data. A failing flank
	// only loses completeness, not correctness, so its error is dropped.
	if fromBlock != suggestedFromHex && suggestedFrom > 0 {
		before, err := s.queryLogsWithChunking(ctx, client, topics, fromBlock, hexutil.EncodeUint64(suggestedFrom-1), depth+1)
		if err == nil {
			all = append(all, before...)
		} else {
			s.logger.Debug("Chunked log query before suggested range failed", zap.Error(err))
		}
	}
	if toBlock == "latest" || toBlock != suggestedToHex {
		after, err := s.queryLogsWithChunking(ctx, client, topics, hexutil.EncodeUint64(suggestedTo+1), toBlock, depth+1)
		if err == nil {
			all = append(all, after...)
		} else {
			s.logger.Debug("Chunked log query after suggested range failed", zap.Error(err))
		}
	}
	return all, nil
}

// narrows reports whether the suggested range is strictly smaller than the
// original one. When either original bound is non-numeric ("latest") the
// suggestion is taken as narrowing; the depth guard still bounds recursion.
func narrows(fromBlock, toBlock string, suggestedFrom, suggestedTo uint64) bool {
	from, errFrom := hexutil.DecodeUint64(fromBlock)
	if toBlock == "latest" {
		return errFrom != nil || suggestedFrom > from || suggestedTo < ^uint64(0)
	}
	to, errTo := hexutil.DecodeUint64(toBlock)
	if errFrom != nil || errTo != nil {
		return true
	}
	return suggestedFrom > from || suggestedTo < to
}

// ScanChain performs the complete scan of one chain. When the cheap activity
// probe is negative, protocol discovery is skipped entirely; that cost
// avoidance is the point of this component.
func (s *Scanner) ScanChain(ctx context.Context, wallet, chain string) entity.ChainActivity {
	if !s.HasChainActivity(ctx, wallet, chain) {
		return entity.ChainActivity{Chain: chain, HasActivity: false, Protocols: []string{}}
	}
	protocols := s.DiscoverProtocols(ctx, wallet, chain)
	if protocols == nil {
		protocols = []string{}
	}
	return entity.ChainActivity{Chain: chain, HasActivity: true, Protocols: protocols}
}

// ScanAllChains scans every configured chain. The active set is computed in
// one pass and reused, so inactive chains cost exactly one probe.
func (s *Scanner) ScanAllChains(ctx context.Context, wallet string) []entity.ChainActivity {
	active := make(map[string]bool, len(s.chains))
	for _, chain := range s.chains {
		active[chain] = s.HasChainActivity(ctx, wallet, chain)
	}

	results := make([]entity.ChainActivity, 0, len(s.chains))
	for _, chain := range s.chains {
		if !active[chain] {
			results = append(results, entity.ChainActivity{Chain: chain, HasActivity: false, Protocols: []string{}})
			continue
		}
		protocols := s.DiscoverProtocols(ctx, wallet, chain)
		if protocols == nil {
			protocols = []string{}
		}
		results = append(results, entity.ChainActivity{Chain: chain, HasActivity: true, Protocols: protocols})
	}
	return results
}

// Chains returns the chain list this scanner covers.
func (s *Scanner) Chains() []string {
	return s.chains
}
