package rpc

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
)

// Provider hands out one EVMClient per configured chain, dialing lazily and
// reusing connections across calls.
type Provider struct {
	mu      sync.Mutex
	clients map[string]*EVMClient
	cfg     *config.Config
	cache   *Cache
	logger  *zap.Logger
}

// NewProvider creates a client provider backed by the shared response cache.
func NewProvider(cfg *config.Config, cache *Cache, logger *zap.Logger) *Provider {
	return &Provider{
		clients: make(map[string]*EVMClient),
		cfg:     cfg,
		cache:   cache,
		logger:  logger,
	}
}

// ClientFor returns the call client for a chain, connecting on first use.
func (p *Provider) ClientFor(chain string) (port.CallClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chainCfg, ok := p.cfg.Chain(chain)
	if !ok {
		return nil, fmt.Errorf("chain %q is not configured", chain)
	}
	// Clients are cached under the configured name so differently-cased
	// lookups share one connection.
	if client, ok := p.clients[chainCfg.Name]; ok {
		return client, nil
	}

	p.logger.Info("Connecting RPC client",
		zap.String("chain", chainCfg.Name),
		zap.String("primaryEndpoint", chainCfg.PrimaryRPCURL))
	client, err := NewEVMClient(chainCfg, p.cfg.RPC, p.cache, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client for %s: %w", chain, err)
	}

	p.clients[chainCfg.Name] = client
	return client, nil
}

// Close releases every dialed connection.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, client := range p.clients {
		client.Close()
	}
	p.clients = make(map[string]*EVMClient)
}
