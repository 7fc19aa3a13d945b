package restapi

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/aggregator"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/domain/entity"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/registry"
	"github.com/Ankvik-Tech-Labs/Crypto-portfolio-tracker/internal/scanner"
)

// APIErrorResponse is the uniform error payload.
type APIErrorResponse struct {
	Error string `json:"error"`
}

// APIPortfolioResponse wraps a portfolio summary for the REST surface.
type APIPortfolioResponse struct {
	Data *entity.PortfolioSummary `json:"data"`
}

// APIScanResponse wraps per-chain activity results.
type APIScanResponse struct {
	Data []entity.ChainActivity `json:"data"`
}

// APIProtocolInfo describes one registered protocol handler.
type APIProtocolInfo struct {
	Name            string   `json:"name"`
	SupportedChains []string `json:"supportedChains"`
}

// PortfolioHandler handles portfolio-related HTTP requests.
type PortfolioHandler struct {
	aggregator *aggregator.Aggregator
	scanner    *scanner.Scanner
	registry   *registry.Registry
	logger     *zap.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(agg *aggregator.Aggregator, sc *scanner.Scanner, reg *registry.Registry, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		aggregator: agg,
		scanner:    sc,
		registry:   reg,
		logger:     logger.Named("PortfolioHandler"),
	}
}

// GetPortfolioHandler serves GET /api/v1/portfolio/:address, optionally
// filtered by ?chain= and/or ?protocol=.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "invalid wallet address"})
		return
	}

	ctx := c.Request.Context()
	chain := c.Query("chain")
	protocol := c.Query("protocol")

	var (
		summary *entity.PortfolioSummary
		err     error
	)
	switch {
	case protocol != "":
		summary, err = h.aggregator.GetPositionsForProtocol(ctx, address, protocol, chain)
	case chain != "":
		summary, err = h.aggregator.GetPositionsForChain(ctx, address, chain)
	default:
		summary, err = h.aggregator.GetAllPositions(ctx, address)
	}
	if err != nil {
		h.logger.Error("Portfolio aggregation failed",
			zap.String("address", address), zap.Error(err))
		c.JSON(http.StatusBadGateway, APIErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, APIPortfolioResponse{Data: summary})
}

// GetScanHandler serves GET /api/v1/scan/:address, returning per-chain
// activity without fetching any positions.
func (h *PortfolioHandler) GetScanHandler(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, APIErrorResponse{Error: "invalid wallet address"})
		return
	}

	activities := h.scanner.ScanAllChains(c.Request.Context(), address)
	c.JSON(http.StatusOK, APIScanResponse{Data: activities})
}

// GetProtocolsHandler serves GET /api/v1/protocols from registry metadata
// alone; no network calls are made.
func (h *PortfolioHandler) GetProtocolsHandler(c *gin.Context) {
	names := h.registry.Protocols()
	infos := make([]APIProtocolInfo, 0, len(names))
	for _, name := range names {
		handler, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, APIProtocolInfo{
			Name:            handler.Name(),
			SupportedChains: handler.SupportedChains(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": infos})
}
