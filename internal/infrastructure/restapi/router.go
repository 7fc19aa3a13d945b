package restapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router.
func SetupRouter(portfolioHandler *PortfolioHandler) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolio/:address", portfolioHandler.GetPortfolioHandler)
		v1.GET("/scan/:address", portfolioHandler.GetScanHandler)
		v1.GET("/protocols", portfolioHandler.GetProtocolsHandler)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
