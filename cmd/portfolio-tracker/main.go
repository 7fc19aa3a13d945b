package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/aggregator"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/app/port"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/config"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/infrastructure/restapi"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/logger"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pkg/metrics"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/pricing"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/protocols"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/registry"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/rpc"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/scanner"
)

// app bundles everything a command needs after wiring.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	provider   *rpc.Provider
	registry   *registry.Registry
	scanner    *scanner.Scanner
	aggregator *aggregator.Aggregator
}

func (a *app) close() {
	a.provider.Close()
	_ = a.logger.Sync()
}

// buildApp wires the full pipeline from a config file.
func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics.MustRegisterMetrics()

	cache := rpc.NewCache(cfg.Cache)
	provider := rpc.NewProvider(cfg, cache, zapLogger)

	reg := registry.New()
	if err := protocols.RegisterDefaults(reg, provider, cfg, zapLogger); err != nil {
		provider.Close()
		return nil, err
	}

	sc := scanner.New(provider, reg, cfg.ChainNames(), cfg.Scanner.MaxChunkDepth, zapLogger)

	llama := pricing.NewDeFiLlamaClient(
		cfg.Pricing.DeFiLlama.BaseURL,
		time.Duration(cfg.Pricing.DeFiLlama.RequestTimeoutMs)*time.Millisecond,
		cfg.Pricing.DeFiLlama.MaxCoinsPerBatch,
		zapLogger,
	)
	var prices port.PriceSource = llama
	if len(cfg.Pricing.ChainlinkFeeds) > 0 {
		prices = pricing.NewChainlinkSource(provider, cfg.Pricing.ChainlinkFeeds, llama, zapLogger)
	}

	agg := aggregator.New(sc, reg, prices,
		cfg.Aggregator.MaxConcurrentChains,
		time.Duration(cfg.Aggregator.ChainTimeoutSeconds)*time.Second,
		zapLogger,
	)

	return &app{
		cfg:        cfg,
		logger:     zapLogger,
		provider:   provider,
		registry:   reg,
		scanner:    sc,
		aggregator: agg,
	}, nil
}

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "portfolio-tracker",
		Short:         "Track DeFi positions for a wallet across chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config/config.yaml", "path to configuration file")

	rootCmd.AddCommand(
		newPositionsCmd(&cfgPath),
		newScanCmd(&cfgPath),
		newChainsCmd(&cfgPath),
		newProtocolsCmd(&cfgPath),
		newServeCmd(&cfgPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newPositionsCmd(cfgPath *string) *cobra.Command {
	var (
		chain    string
		protocol string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "positions <wallet-address>",
		Short: "Discover and aggregate a wallet's DeFi positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := args[0]
			if !common.IsHexAddress(address) {
				return fmt.Errorf("invalid wallet address %q", address)
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown output format %q, want table or json", format)
			}

			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			var summary *entity.PortfolioSummary
			switch {
			case protocol != "":
				summary, err = a.aggregator.GetPositionsForProtocol(ctx, address, protocol, chain)
			case chain != "":
				summary, err = a.aggregator.GetPositionsForChain(ctx, address, chain)
			default:
				summary, err = a.aggregator.GetAllPositions(ctx, address)
			}
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(cmd.OutOrStdout(), summary)
			}
			printSummaryTable(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "restrict to one chain")
	cmd.Flags().StringVar(&protocol, "protocol", "", "restrict to one protocol")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func newScanCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <wallet-address>",
		Short: "Probe each chain for wallet activity without fetching positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := args[0]
			if !common.IsHexAddress(address) {
				return fmt.Errorf("invalid wallet address %q", address)
			}

			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			activities := a.scanner.ScanAllChains(cmd.Context(), address)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tACTIVE\tPROTOCOLS")
			for _, act := range activities {
				fmt.Fprintf(w, "%s\t%t\t%v\n", act.Chain, act.HasActivity, act.Protocols)
			}
			return w.Flush()
		},
	}
}

func newChainsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List configured chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCHAIN ID\tFALLBACKS")
			for _, c := range cfg.Chains {
				fmt.Fprintf(w, "%s\t%d\t%d\n", c.Name, c.ChainID, len(c.FallbackRPCURLs))
			}
			return w.Flush()
		},
	}
}

func newProtocolsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "protocols",
		Short: "List registered protocol handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Handler metadata is static, so no RPC connection is needed and
			// the command works offline.
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROTOCOL\tCHAINS")
			for _, name := range a.registry.Protocols() {
				handler, ok := a.registry.Get(name)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "%s\t%v\n", handler.Name(), handler.SupportedChains())
			}
			return w.Flush()
		},
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			handler := restapi.NewPortfolioHandler(a.aggregator, a.scanner, a.registry, a.logger)
			router := restapi.SetupRouter(handler)

			srv := &http.Server{
				Addr:         ":" + a.cfg.Server.Port,
				Handler:      router,
				ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
				IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeout) * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("REST server listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down REST server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func printSummaryTable(out io.Writer, summary *entity.PortfolioSummary) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROTOCOL\tCHAIN\tTYPE\tTOKEN\tBALANCE\tUSD VALUE")
	for _, p := range summary.Positions {
		usd := "-"
		if p.USDValue != nil {
			usd = p.USDValue.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Protocol, p.Chain, p.Type, p.Token.Symbol, p.Balance.String(), usd)
	}
	fmt.Fprintf(w, "\nTOTAL\t\t\t\t\t%s\n", summary.TotalUSDValue.StringFixed(2))
	if summary.TotalClaimableRewardsUSD.IsPositive() {
		fmt.Fprintf(w, "CLAIMABLE REWARDS\t\t\t\t\t%s\n", summary.TotalClaimableRewardsUSD.StringFixed(2))
	}
	_ = w.Flush()
}
