package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/session"
)

// currentSession 按 cookie 查找会话
func (h *Handler) currentSession(c *gin.Context) (*session.Session, bool) {
	id, err := c.Cookie(session.CookieName)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(id)
}

// ensureSession 获取会话，没有时创建并写入 cookie
func (h *Handler) ensureSession(c *gin.Context) *session.Session {
	id, _ := c.Cookie(session.CookieName)
	s, created := h.sessions.GetOrCreate(id)
	if created {
		c.SetCookie(session.CookieName, s.ID, 0, "/", "", false, true)
	}
	return s
}

// advance 推进当前会话的录入流程，无会话或转换无效时只记日志
func (h *Handler) advance(c *gin.Context, event string) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	if err := s.Workflow().Trigger(c.Request.Context(), event); err != nil {
		h.logger.Warn("Workflow transition rejected",
			zap.String("session_id", s.ID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
