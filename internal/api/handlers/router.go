package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/price-updater")
	{
		// 录入
		api.POST("/data-entry", h.SaveEntry)
		api.DELETE("/data-entry", h.ClearEntry)
		api.GET("/prices", h.ShowPrices)
		api.POST("/convert", h.ConvertEntry)

		// 外部价格 API
		api.POST("/fetch-prices", h.FetchPrices)
		api.POST("/publish-prices", h.PublishPrices)
		api.POST("/delete-prices", h.DeletePrices)

		// 本地价格记录
		api.GET("/price-data", h.ListPriceData)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查和指标
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
