// Package session 保存录入数据和流程阶段，按 cookie 中的会话 ID 区分用户
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/state"
)

// CookieName 会话 cookie 名称
const CookieName = "price_updater_session"

// DefaultTTL 会话空闲过期时间
const DefaultTTL = 2 * time.Hour

// Session 单个用户的会话
type Session struct {
	ID string

	mu       sync.RWMutex
	entry    string
	workflow *state.Machine
}

// Entry 返回录入的原始 JSON
func (s *Session) Entry() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry, s.entry != ""
}

// SetEntry 保存录入的原始 JSON
func (s *Session) SetEntry(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = raw
}

// Workflow 录入流程状态机
func (s *Session) Workflow() *state.Machine {
	return s.workflow
}

// Store 进程内会话存储
type Store struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore 创建会话存储
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache:  cache.New(ttl, ttl/2),
		ttl:    ttl,
		logger: logger,
	}
}

// Get 获取会话并刷新过期时间
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, found := st.cache.Get(id)
	if !found {
		return nil, false
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, false
	}
	st.cache.Set(id, s, st.ttl)
	return s, true
}

// Create 创建新会话
func (st *Store) Create() *Session {
	id := uuid.NewString()
	s := &Session{
		ID: id,
		workflow: state.NewMachine(id, state.StageEmpty, func(id, from, to string) {
			st.logger.Debug("Workflow stage changed",
				zap.String("session_id", id),
				zap.String("from", from),
				zap.String("to", to),
			)
		}),
	}
	st.cache.Set(id, s, st.ttl)
	return s
}

// GetOrCreate 获取会话，不存在或已过期时创建新会话
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	if s, ok := st.Get(id); ok {
		return s, false
	}
	return st.Create(), true
}

// Delete 删除会话
func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

// Count 当前会话数
func (st *Store) Count() int {
	return st.cache.ItemCount()
}
