package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/api/pricing"
	"github.com/langchou/price-updater/internal/models"
	"github.com/langchou/price-updater/internal/service"
	"github.com/langchou/price-updater/internal/session"
	"github.com/langchou/price-updater/internal/steering"
	"github.com/langchou/price-updater/pkg/ws"
)

// PricingAPI 外部价格 API
type PricingAPI interface {
	GetSteerings(ctx context.Context, query any) (any, error)
	PublishSteerings(ctx context.Context, payload any) (any, error)
}

// PriceStore 本地价格记录
type PriceStore interface {
	Store(ctx context.Context, records []steering.PriceDataRecord) service.StoreResult
	Delete(ctx context.Context, criteria []steering.DeleteCriterion) service.DeleteResult
	List(ctx context.Context, filter models.PriceFilter) ([]*models.VehiclePrice, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger   *zap.Logger
	pricing  PricingAPI
	prices   PriceStore // 未启用本地存储时为 nil
	mapper   *steering.Mapper
	sessions *session.Store
	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	pricingAPI PricingAPI,
	prices PriceStore,
	mapper *steering.Mapper,
	sessions *session.Store,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:   logger,
		pricing:  pricingAPI,
		prices:   prices,
		mapper:   mapper,
		sessions: sessions,
		wsHub:    wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 来源由 CORS 配置控制
			},
		},
	}
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"ws_clients":         h.wsHub.ClientCount(),
		"sessions":           h.sessions.Count(),
		"price_data_enabled": h.prices != nil,
	})
}

// dataRequest 表单或 JSON 中以字符串形式提交的 data 字段
type dataRequest struct {
	Data string `json:"data" form:"data" binding:"required"`
}

// bindData 读取 data 字段并确认是合法 JSON，失败时已写入 400 响应
func bindData(c *gin.Context) ([]byte, bool) {
	var req dataRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The data field is required."})
		return nil, false
	}
	raw := []byte(req.Data)
	if !json.Valid(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The data field must be a valid JSON string."})
		return nil, false
	}
	return raw, true
}

// respondAPIError 把价格 API 的错误映射为 HTTP 响应
func (h *Handler) respondAPIError(c *gin.Context, err error, message string, withException bool) {
	var authErr *pricing.AuthenticationError
	if errors.As(err, &authErr) {
		h.logger.Error("Authentication failed for vehicle prices API",
			zap.String("message", authErr.Message),
			zap.Any("context", authErr.Context),
			zap.Error(err),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed with external API"})
		return
	}

	var apiErr *pricing.APIRequestError
	if errors.As(err, &apiErr) {
		h.logger.Error("API request failed for vehicle prices",
			zap.String("message", apiErr.Message),
			zap.Int("http_status", apiErr.HTTPStatus),
			zap.Any("context", apiErr.Context),
		)
		body := gin.H{"error": message}
		if withException {
			body["exception"] = gin.H{
				"message":     apiErr.Message,
				"http_status": apiErr.HTTPStatus,
				"context":     apiErr.Context,
			}
		}
		c.JSON(apiErr.ResponseStatus(), body)
		return
	}

	h.logger.Error("Unexpected pricing API error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// respondFormatError 录入数据错误返回 400，其他错误返回 500
func (h *Handler) respondFormatError(c *gin.Context, err error) {
	var formatErr *steering.FormatError
	if errors.As(err, &formatErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatErr.Error()})
		return
	}
	h.logger.Error("Failed to convert entry", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert entry"})
}
