package web

import (
	"github.com/gin-gonic/gin"

	"github.com/ashdowne/gallery-sync-server/pkg/metrics"
)

func GetRouter(metricsListenAddress string, webHandler Handlers, withMetrics bool) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), GinLogger())
	if withMetrics {
		router.Use(metrics.PromReqMiddleware())
		go metrics.Server(metricsListenAddress)
	}
	router.Use(XForwarded("http"))

	router.GET("/healthz", HealthCheckEndpoint)
	router.GET("/ping", PingEndpoint)

	cronGroup := router.Group("/api/cron")
	cronGroup.Use(webHandler.CronAuthRequired())
	cronGroup.GET("/sync-hero", webHandler.SyncHero)
	cronGroup.GET("/sync-all-portfolio", webHandler.SyncAllPortfolio)

	router.POST("/api/admin/login", webHandler.AdminLogin)
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(webHandler.AdminAuthRequired())
	adminGroup.POST("/sync", webHandler.AdminSync)
	adminGroup.GET("/clients", webHandler.ListClients)
	adminGroup.POST("/clients", webHandler.CreateClient)
	adminGroup.PUT("/clients/:clientid", webHandler.UpdateClient)
	adminGroup.DELETE("/clients/:clientid", webHandler.DeleteClient)

	// Public gallery surface
	router.GET("/api/hero-images", webHandler.HeroImages)
	router.GET("/api/portfolio-images", webHandler.PortfolioImages)
	router.POST("/api/clients/validate-credentials", webHandler.ValidateClientCredentials)
	router.POST("/api/client-gallery", webHandler.ClientGallery)
	router.POST("/api/client-gallery/download", webHandler.ClientGalleryDownload)
	router.POST("/api/client-gallery/download-single", webHandler.ClientGalleryDownloadSingle)

	// Not authed, only serves files when the disk backend is active
	router.GET("/images/*filepath", webHandler.ImagePath)

	return router
}
