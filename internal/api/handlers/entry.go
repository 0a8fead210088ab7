package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/session"
	"github.com/langchou/price-updater/internal/state"
	"github.com/langchou/price-updater/internal/steering"
)

// SaveEntry 校验录入数据并保存到会话
// POST /price-updater/data-entry
func (h *Handler) SaveEntry(c *gin.Context) {
	raw, ok := bindData(c)
	if !ok {
		return
	}

	entry, err := steering.ParseEntry(raw)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}

	s := h.ensureSession(c)
	s.SetEntry(string(raw))
	if err := s.Workflow().Trigger(c.Request.Context(), state.EventEnter); err != nil {
		h.logger.Warn("Workflow transition rejected", zap.String("session_id", s.ID), zap.Error(err))
	}

	h.logger.Info("Entry saved",
		zap.String("session_id", s.ID),
		zap.String("location", entry.Location.String),
		zap.Int("groups", len(entry.Data)),
	)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Entry saved",
		"redirect": "/price-updater/prices",
		"workflow": s.Workflow().GetWorkflow(),
	})
}

// ShowPrices 返回会话中的录入数据和预览记录
// GET /price-updater/prices
func (h *Handler) ShowPrices(c *gin.Context) {
	s, ok := h.currentSession(c)
	var raw string
	if ok {
		raw, ok = s.Entry()
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data provided."})
		return
	}

	entry, err := steering.ParseEntry([]byte(raw))
	if err != nil {
		h.respondFormatError(c, err)
		return
	}
	display, err := h.mapper.DisplayRecords(entry)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entry_data": json.RawMessage(raw),
		"display":    display,
		"workflow":   s.Workflow().GetWorkflow(),
	})
}

// ConvertEntry 把录入数据转换为查询、发布、删除请求和预览记录
// POST /price-updater/convert
func (h *Handler) ConvertEntry(c *gin.Context) {
	raw, ok := bindData(c)
	if !ok {
		return
	}

	entry, err := steering.ParseEntry(raw)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}

	query, err := h.mapper.AnalyzeDateRange(entry)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}
	publish, err := h.mapper.ToAPIPayload(entry)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}
	display, err := h.mapper.DisplayRecords(entry)
	if err != nil {
		h.respondFormatError(c, err)
		return
	}

	// 没有定价日期时不会保存本地记录，也就不需要删除条件
	del := h.mapper.ToDeleteRequest(publish.Steerings)
	if entry.Date != "" {
		criteria, err := h.mapper.DeleteCriteria(entry)
		if err != nil {
			h.respondFormatError(c, err)
			return
		}
		del.PriceData = criteria
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"publish": publish,
		"delete":  del,
		"display": display,
	})
}

// ClearEntry 丢弃当前会话并清除 cookie，重新开始录入
// DELETE /price-updater/data-entry
func (h *Handler) ClearEntry(c *gin.Context) {
	id, err := c.Cookie(session.CookieName)
	if err == nil && id != "" {
		h.sessions.Delete(id)
		h.logger.Info("Entry cleared", zap.String("session_id", id))
	}
	c.SetCookie(session.CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Entry cleared",
		"redirect": "/price-updater/data-entry",
	})
}
