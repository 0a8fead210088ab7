package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 录入流程阶段
const (
	StageEmpty     = "empty"     // 尚未录入
	StageEntered   = "entered"   // 已录入，未查询外部数据
	StageReviewed  = "reviewed"  // 已查询并核对外部数据
	StagePublished = "published" // 已发布
)

// 事件常量
const (
	EventEnter   = "enter"
	EventFetch   = "fetch"
	EventPublish = "publish"
	EventDelete  = "delete"
)

// Workflow 录入流程状态
type Workflow struct {
	Stage     string    `json:"stage"`
	Since     time.Time `json:"since"`
	LastEvent string    `json:"last_event,omitempty"`
}

// Machine 录入流程状态机
type Machine struct {
	mu            sync.RWMutex
	id            string
	fsm           *fsm.FSM
	workflow      *Workflow
	onStageChange func(id, from, to string)
}

// NewMachine 创建状态机
func NewMachine(id, initialStage string, onStageChange func(id, from, to string)) *Machine {
	if initialStage == "" {
		initialStage = StageEmpty
	}

	m := &Machine{
		id:            id,
		onStageChange: onStageChange,
		workflow: &Workflow{
			Stage: initialStage,
			Since: time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		initialStage,
		fsm.Events{
			// 重新录入总是回到 entered
			{Name: EventEnter, Src: []string{StageEmpty, StageEntered, StageReviewed, StagePublished}, Dst: StageEntered},

			// 查询外部数据
			{Name: EventFetch, Src: []string{StageEntered, StageReviewed}, Dst: StageReviewed},
			{Name: EventFetch, Src: []string{StagePublished}, Dst: StagePublished},

			// 发布 / 删除
			{Name: EventPublish, Src: []string{StageEntered, StageReviewed, StagePublished}, Dst: StagePublished},
			{Name: EventDelete, Src: []string{StageReviewed, StagePublished}, Dst: StageReviewed},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStageChange != nil && e.Src != e.Dst {
					m.onStageChange(m.id, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentStage 获取当前阶段
func (m *Machine) CurrentStage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetWorkflow 获取流程状态副本
func (m *Machine) GetWorkflow() *Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf := *m.workflow
	wf.Stage = m.fsm.Current()
	return &wf
}

// Trigger 触发事件，停留在原阶段不算错误
func (m *Machine) Trigger(ctx context.Context, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.fsm.Current()
	if err := m.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return fmt.Errorf("trigger event %s: %w", event, err)
		}
	}

	if to := m.fsm.Current(); to != from {
		m.workflow.Since = time.Now()
	}
	m.workflow.Stage = m.fsm.Current()
	m.workflow.LastEvent = event
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}
