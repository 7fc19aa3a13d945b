// Package protocols contains the built-in protocol handler implementations
// and their registration wiring.
package protocols

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/registry"
)

// RegisterDefaults registers every built-in handler that has at least one
// contract address configured. Registration order is fixed so that discovery
// and contract matching stay deterministic across runs.
func RegisterDefaults(reg *registry.Registry, provider port.ClientProvider, cfg *config.Config, logger *zap.Logger) error {
	type builder struct {
		name string
		make func(addresses map[string]map[string]string) port.ProtocolHandler
	}

	builders := []builder{
		{"lido", func(a map[string]map[string]string) port.ProtocolHandler {
			return NewLidoHandler(provider, a, logger)
		}},
		{"aave_v3", func(a map[string]map[string]string) port.ProtocolHandler {
			return NewAaveV3Handler(provider, a, logger)
		}},
		{"etherfi", func(a map[string]map[string]string) port.ProtocolHandler {
			return NewEtherfiHandler(provider, a, logger)
		}},
	}

	for _, b := range builders {
		addresses := cfg.Protocols[b.name]
		if len(addresses) == 0 {
			logger.Debug("Protocol has no configured addresses, skipping",
				zap.String("protocol", b.name))
			continue
		}
		if err := reg.Register(b.make(addresses)); err != nil {
			return fmt.Errorf("failed to register protocol %q: %w", b.name, err)
		}
	}
	return nil
}
