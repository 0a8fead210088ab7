package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/models"
	"github.com/langchou/price-updater/internal/state"
	"github.com/langchou/price-updater/internal/steering"
)

// fetchRequiredFields GetSteerings 查询必须带的字段
var fetchRequiredFields = []string{"location_id", "location_level", "steer_from", "steer_to"}

// steeringsRequest 发布/删除请求，price_data 的结构随操作不同
type steeringsRequest struct {
	Steerings json.RawMessage `json:"steerings"`
	PriceData json.RawMessage `json:"price_data"`
}

// forwardPayload 原样转发给外部 API 的请求体
type forwardPayload struct {
	Steerings []json.RawMessage `json:"steerings"`
}

// decodeSteerings 取出 steerings 数组的原始元素，缺失、为空或不是数组时返回 false
func decodeSteerings(raw []byte) ([]json.RawMessage, json.RawMessage, bool) {
	var req steeringsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(req.Steerings, &items); err != nil || len(items) == 0 {
		return nil, nil, false
	}
	return items, req.PriceData, true
}

// decodeList 解析可选数组，不是数组时视为空
func decodeList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// locationOf 取第一条记录的 location_id 用于通知，无法解析时为空
func locationOf(items []json.RawMessage) string {
	if len(items) == 0 {
		return ""
	}
	var first struct {
		LocationID steering.FlexString `json:"location_id"`
	}
	if err := json.Unmarshal(items[0], &first); err != nil {
		return ""
	}
	return string(first.LocationID)
}

// FetchPrices 查询外部 API 中已有的 steering 记录
// POST /price-updater/fetch-prices
func (h *Handler) FetchPrices(c *gin.Context) {
	raw, ok := bindData(c)
	if !ok {
		return
	}
	h.logger.Info("Fetch prices request", zap.ByteString("data", raw))

	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		input = nil
	}
	for _, field := range fetchRequiredFields {
		if v, ok := input[field]; !ok || v == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required field: " + field})
			return
		}
	}

	prices, err := h.pricing.GetSteerings(c.Request.Context(), input)
	if err != nil {
		h.respondAPIError(c, err, "Failed to fetch prices from external API", false)
		return
	}

	h.advance(c, state.EventFetch)
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// PublishPrices 发布 steering 记录，并在本地保存对应的价格记录
// POST /price-updater/publish-prices
func (h *Handler) PublishPrices(c *gin.Context) {
	raw, ok := bindData(c)
	if !ok {
		return
	}

	items, priceDataRaw, ok := decodeSteerings(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or empty steerings array in payload"})
		return
	}

	ctx := c.Request.Context()
	resp, err := h.pricing.PublishSteerings(ctx, forwardPayload{Steerings: items})
	if err != nil {
		h.respondAPIError(c, err, "Failed to publish prices to external API", true)
		return
	}
	h.logger.Info("Publish prices response", zap.Int("steerings", len(items)), zap.Any("response", resp))

	body := gin.H{
		"message":  "Prices published successfully",
		"response": resp,
	}
	if priceData := decodeList[steering.PriceDataRecord](priceDataRaw); len(priceData) > 0 {
		if h.prices != nil {
			body["price_data_stored"] = h.prices.Store(ctx, priceData)
		} else {
			h.logger.Warn("Price data received but local storage is disabled", zap.Int("records", len(priceData)))
		}
	}

	h.wsHub.BroadcastPublished(locationOf(items), len(items))
	h.advance(c, state.EventPublish)
	c.JSON(http.StatusOK, body)
}

// DeletePrices 删除 steering 记录，并删除本地匹配的价格记录
// POST /price-updater/delete-prices
func (h *Handler) DeletePrices(c *gin.Context) {
	raw, ok := bindData(c)
	if !ok {
		return
	}

	items, priceDataRaw, ok := decodeSteerings(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or empty steerings array in payload"})
		return
	}

	ctx := c.Request.Context()
	resp, err := h.pricing.PublishSteerings(ctx, forwardPayload{Steerings: items})
	if err != nil {
		h.respondAPIError(c, err, "Failed to delete prices from external API", true)
		return
	}
	h.logger.Info("Delete prices response", zap.Int("steerings", len(items)), zap.Any("response", resp))

	body := gin.H{
		"message":  "Prices deleted successfully",
		"response": resp,
	}
	if criteria := decodeList[steering.DeleteCriterion](priceDataRaw); len(criteria) > 0 {
		if h.prices != nil {
			body["price_data_deleted"] = h.prices.Delete(ctx, criteria)
		} else {
			h.logger.Warn("Price data received but local storage is disabled", zap.Int("records", len(criteria)))
		}
	}

	h.wsHub.BroadcastDeleted(locationOf(items), len(items))
	h.advance(c, state.EventDelete)
	c.JSON(http.StatusOK, body)
}

// ListPriceData 查询本地保存的价格记录
// GET /price-updater/price-data?pool=664&yielding_date=2025-05-01&limit=100
func (h *Handler) ListPriceData(c *gin.Context) {
	if h.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Local price storage is disabled"})
		return
	}

	filter := models.PriceFilter{Pool: c.Query("pool")}
	if v := c.Query("yielding_date"); v != "" {
		day, err := steering.ParseDay(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid yielding_date"})
			return
		}
		filter.YieldingDate = &day
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		filter.Limit = limit
	}

	prices, err := h.prices.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list price data", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list price data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": prices})
}
