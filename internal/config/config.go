package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server     ServerConfig                            `yaml:"server"`
	Logging    LoggingConfig                           `yaml:"logging"`
	Chains     []ChainConfig                           `yaml:"chains"`
	Protocols  map[string]map[string]map[string]string `yaml:"protocols"` // protocol -> chain -> role -> address
	RPC        RPCConfig                               `yaml:"rpc"`
	Cache      CacheConfig                             `yaml:"cache"`
	Scanner    ScannerConfig                           `yaml:"scanner"`
	Aggregator AggregatorConfig                        `yaml:"aggregator"`
	Pricing    PricingConfig                           `yaml:"pricing"`
}

// ServerConfig holds the REST server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ChainConfig describes one blockchain network.
type ChainConfig struct {
	Name            string   `yaml:"name"`
	ChainID         uint64   `yaml:"chainID"`
	PrimaryRPCURL   string   `yaml:"primaryRpcUrl"`
	FallbackRPCURLs []string `yaml:"fallbackRpcUrls"`
}

// RPCConfig holds configuration for the resilient call layer.
type RPCConfig struct {
	RequestTimeoutMs int64       `yaml:"requestTimeoutMs"`
	ConnectTimeoutMs int64       `yaml:"connectTimeoutMs"`
	RateLimit        int         `yaml:"rateLimit"`
	BurstLimit       int         `yaml:"burstLimit"`
	Retry            RetryConfig `yaml:"retry"`
}

// RetryConfig parameterizes exponential backoff for remote calls.
type RetryConfig struct {
	MaxRetries      int     `yaml:"maxRetries"`
	BaseDelayMs     int64   `yaml:"baseDelayMs"`
	MaxDelayMs      int64   `yaml:"maxDelayMs"`
	ExponentialBase float64 `yaml:"exponentialBase"`
}

// CacheConfig holds configuration for RPC response caching.
type CacheConfig struct {
	DefaultTTLSeconds int `yaml:"defaultTTLSeconds"`
	LogsTTLSeconds    int `yaml:"logsTTLSeconds"`
}

// ScannerConfig holds configuration for the event-log scanner.
type ScannerConfig struct {
	MaxChunkDepth int `yaml:"maxChunkDepth"`
}

// AggregatorConfig holds configuration for the position aggregator.
type AggregatorConfig struct {
	MaxConcurrentChains int `yaml:"maxConcurrentChains"`
	ChainTimeoutSeconds int `yaml:"chainTimeoutSeconds"`
}

// PricingConfig holds configuration for the pricing services.
type PricingConfig struct {
	DeFiLlama      DeFiLlamaConfig              `yaml:"defillama"`
	ChainlinkFeeds map[string]map[string]string `yaml:"chainlinkFeeds"` // chain -> token address -> feed address
}

// DeFiLlamaConfig holds the configuration for the DeFiLlama price client.
type DeFiLlamaConfig struct {
	BaseURL          string `yaml:"baseURL"`
	RequestTimeoutMs int64  `yaml:"requestTimeoutMs"`
	MaxCoinsPerBatch int    `yaml:"maxCoinsPerBatch"`
}

// Load reads and validates configuration from a YAML file, applying defaults
// for anything not set.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	cfg.applyDefaults()

	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("config %s defines no chains", path)
	}
	for _, chain := range cfg.Chains {
		if chain.PrimaryRPCURL == "" {
			return nil, fmt.Errorf("chain %q has no primary RPC endpoint", chain.Name)
		}
	}

	logrus.Infof("Configuration loaded: %d chains, %d protocols", len(cfg.Chains), len(cfg.Protocols))
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.RPC.RequestTimeoutMs == 0 {
		c.RPC.RequestTimeoutMs = 15000
	}
	if c.RPC.ConnectTimeoutMs == 0 {
		c.RPC.ConnectTimeoutMs = 10000
	}
	if c.RPC.RateLimit == 0 {
		c.RPC.RateLimit = 20
	}
	if c.RPC.BurstLimit == 0 {
		c.RPC.BurstLimit = 40
	}
	if c.RPC.Retry.MaxRetries == 0 {
		c.RPC.Retry.MaxRetries = 3
	}
	if c.RPC.Retry.BaseDelayMs == 0 {
		c.RPC.Retry.BaseDelayMs = 1000
	}
	if c.RPC.Retry.MaxDelayMs == 0 {
		c.RPC.Retry.MaxDelayMs = 30000
	}
	if c.RPC.Retry.ExponentialBase == 0 {
		c.RPC.Retry.ExponentialBase = 2.0
	}
	if c.Cache.DefaultTTLSeconds == 0 {
		c.Cache.DefaultTTLSeconds = 60
	}
	if c.Cache.LogsTTLSeconds == 0 {
		c.Cache.LogsTTLSeconds = 300
	}
	if c.Scanner.MaxChunkDepth == 0 {
		c.Scanner.MaxChunkDepth = 8
	}
	if c.Aggregator.MaxConcurrentChains == 0 {
		c.Aggregator.MaxConcurrentChains = 4
	}
	if c.Aggregator.ChainTimeoutSeconds == 0 {
		c.Aggregator.ChainTimeoutSeconds = 30
	}
	if c.Pricing.DeFiLlama.BaseURL == "" {
		c.Pricing.DeFiLlama.BaseURL = "https://coins.llama.fi"
	}
	if c.Pricing.DeFiLlama.RequestTimeoutMs == 0 {
		c.Pricing.DeFiLlama.RequestTimeoutMs = 10000
	}
	if c.Pricing.DeFiLlama.MaxCoinsPerBatch == 0 {
		c.Pricing.DeFiLlama.MaxCoinsPerBatch = 30
	}
}

// ChainNames returns all configured chain names in declaration order.
func (c *Config) ChainNames() []string {
	names := make([]string, 0, len(c.Chains))
	for _, chain := range c.Chains {
		names = append(names, chain.Name)
	}
	return names
}

// Chain returns the configuration for a chain by name, case-insensitively.
func (c *Config) Chain(name string) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if strings.EqualFold(chain.Name, name) {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// ProtocolAddresses returns the contract-address map for a protocol on a
// chain. A missing chain or protocol entry yields an empty map: "protocol
// not configured for this chain" is an expected state, not an error.
func (c *Config) ProtocolAddresses(protocol, chain string) map[string]string {
	chains, ok := c.Protocols[protocol]
	if !ok {
		return map[string]string{}
	}
	addrs, ok := chains[chain]
	if !ok {
		return map[string]string{}
	}
	return addrs
}
