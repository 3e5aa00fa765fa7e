// Package playground 实现代码助手的会话状态机：
// 维护有序的会话记录、乐观插入的 pending 占位消息及其对账，
// 以及建议面板和编辑器缓冲区。
package playground

import (
	"code-playground-go/internal/model"
	"code-playground-go/internal/parser"
	"code-playground-go/pkg/log"
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// 展示给用户的固定文本，原始错误对象不会出现在界面上。
const (
	TypingText              = "⏳ Assistant is typing..."
	ChatErrorText           = "❌ Chat error!"
	AnalyzingText           = "Analyzing code..."
	ImprovedVersionText     = "Here is the improved version:"
	AnalyzeErrorText        = "❌ Error analyzing code."
	AnalyzeServerErrorText  = "❌ Server error analyzing code."
	defaultCodeLanguageHint = "js"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrChatInFlight     = errors.New("a chat request is already in flight")
	ErrAnalysisInFlight = errors.New("an analysis request is already in flight")
	ErrTurnNotFound     = errors.New("turn not found")
	ErrNotCodeTurn      = errors.New("turn does not contain applicable code")
)

// Gateway 是会话依赖的模型网关契约。
// service.GatewayService（进程内）与 assistant.Client（HTTP）都满足该接口。
type Gateway interface {
	Analyze(ctx context.Context, code string) (*model.ReviewResult, error)
	Chat(ctx context.Context, history []model.ChatMessage) (string, error)
}

// Options 配置一个新会话。
type Options struct {
	// ID 仅用于日志关联。
	ID string
	// Greeting 非空时作为第一条助手消息插入。
	Greeting string
	// CodeLanguage 是展示改进代码时使用的语言标记。
	CodeLanguage string
	InitialCode  string
	// OnChange 在每次状态变化后以最新快照调用。调用时持有会话锁，
	// 回调不能阻塞，也不能再调用 Session 的方法。
	OnChange func(Snapshot)
	// Now 用于测试替换时钟。
	Now func() time.Time
}

// Snapshot 是会话在某一时刻的只读副本。
type Snapshot struct {
	Version     uint64             `json:"version"`
	Turns       []model.Turn       `json:"turns"`
	Suggestions []model.Suggestion `json:"suggestions"`
	Code        string             `json:"code"`
	Analyzing   bool               `json:"analyzing"`
	ChatPending bool               `json:"chatPending"`
}

// Session 是单个会话的状态机，随会话创建、随会话丢弃。
// 网络调用在锁外进行，状态修改全部在锁内串行完成。
type Session struct {
	gateway Gateway
	opts    Options

	mu          sync.Mutex
	turns       []model.Turn
	lastID      int64
	pendingID   int64 // 0 表示没有进行中的聊天请求
	analyzing   bool
	suggestions []model.Suggestion
	editor      *Editor
	version     uint64
}

// NewSession 创建一个新的会话。
func NewSession(gateway Gateway, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CodeLanguage == "" {
		opts.CodeLanguage = defaultCodeLanguageHint
	}
	s := &Session{
		gateway: gateway,
		opts:    opts,
		editor:  NewEditor(opts.InitialCode),
	}
	if opts.Greeting != "" {
		s.appendLocked(model.RoleAssistant, opts.Greeting, model.RenderPlain, model.TurnResolved)
	}
	return s
}

// SubmitChat 提交一条聊天消息并阻塞到对应的 pending 消息完成对账。
// 仅在提交被拒绝时返回错误；网关失败体现在返回的消息状态中。
func (s *Session) SubmitChat(ctx context.Context, text string) (model.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return model.Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pendingID != 0 {
		s.mu.Unlock()
		return model.Turn{}, ErrChatInFlight
	}
	// 用户消息与占位消息在同一步中插入，保证 id 顺序
	s.appendLocked(model.RoleUser, text, model.RenderPlain, model.TurnResolved)
	pending := s.appendLocked(model.RoleAssistant, TypingText, model.RenderPlain, model.TurnPending)
	s.pendingID = pending.ID
	history := s.historyLocked()
	s.notifyLocked()
	s.mu.Unlock()

	reply, err := s.gateway.Chat(ctx, history)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingID = 0

	var turn model.Turn
	if err != nil {
		log.Warnw("聊天请求失败", "session", s.opts.ID, "turn", pending.ID, "error", err)
		turn = s.reconcileLocked(pending.ID, ChatErrorText, model.RenderPlain, model.TurnFailed)
	} else {
		mode := model.RenderPlain
		if parser.HasCodeBlock(reply) {
			mode = model.RenderCode
		}
		turn = s.reconcileLocked(pending.ID, reply, mode, model.TurnResolved)
	}
	s.notifyLocked()
	return turn, nil
}

// Analyze 分析编辑器中的代码并阻塞到结果返回。
// 成功时替换建议面板；失败时保留上一次的建议，只追加一条错误提示。
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if s.analyzing {
		s.mu.Unlock()
		return ErrAnalysisInFlight
	}
	s.analyzing = true
	s.appendLocked(model.RoleAssistant, AnalyzingText, model.RenderPlain, model.TurnResolved)
	code := s.editor.Text()
	s.notifyLocked()
	s.mu.Unlock()

	result, err := s.gateway.Analyze(ctx, code)
	if err == nil && result == nil {
		err = errors.New("gateway returned no review result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzing = false

	switch {
	case err == nil:
		s.suggestions = append([]model.Suggestion(nil), result.Suggestions...)
		if result.HasImprovedCode() {
			s.appendLocked(model.RoleAssistant, ImprovedVersionText, model.RenderPlain, model.TurnResolved)
			s.appendLocked(model.RoleAssistant, parser.WrapCode(result.ImprovedCode, s.opts.CodeLanguage), model.RenderCode, model.TurnResolved)
		}
	case errors.Is(err, parser.ErrMalformed):
		log.Warnw("审查结果无法解析", "session", s.opts.ID)
		s.appendLocked(model.RoleAssistant, AnalyzeErrorText, model.RenderPlain, model.TurnResolved)
	default:
		log.Warnw("分析请求失败", "session", s.opts.ID, "error", err)
		s.appendLocked(model.RoleAssistant, AnalyzeServerErrorText, model.RenderPlain, model.TurnResolved)
	}
	s.notifyLocked()
	return nil
}

// Apply 把指定代码消息中的代码写入编辑器，只在用户显式操作时调用。
func (s *Session) Apply(turnID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(turnID)
	if idx < 0 {
		return ErrTurnNotFound
	}
	t := s.turns[idx]
	if t.Role != model.RoleAssistant || t.RenderMode != model.RenderCode || t.State != model.TurnResolved {
		return ErrNotCodeTurn
	}
	s.editor.Set(parser.ExtractCode(t.Content))
	s.notifyLocked()
	return nil
}

// SetCode 记录用户对编辑器的修改。
func (s *Session) SetCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.Set(code)
	s.notifyLocked()
}

// Code 返回编辑器当前内容。
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Text()
}

// Turns 返回会话记录的副本，按 id 升序。
func (s *Session) Turns() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Turn(nil), s.turns...)
}

// Suggestions 返回建议面板的副本。
func (s *Session) Suggestions() []model.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Suggestion(nil), s.suggestions...)
}

// PendingCount 返回处于 pending 状态的消息数量，任何时刻至多为 1。
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.turns {
		if t.State == model.TurnPending {
			n++
		}
	}
	return n
}

// Analyzing 报告是否有进行中的分析请求。
func (s *Session) Analyzing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzing
}

// Snapshot 返回当前状态的副本。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) appendLocked(role model.Role, content string, mode model.RenderMode, state model.TurnState) model.Turn {
	s.lastID++
	t := model.Turn{
		ID:         s.lastID,
		Role:       role,
		Content:    content,
		RenderMode: mode,
		State:      state,
		CreatedAt:  s.opts.Now(),
	}
	s.turns = append(s.turns, t)
	return t
}

// reconcileLocked 原地替换 pending 消息，id 与位置不变。
func (s *Session) reconcileLocked(id int64, content string, mode model.RenderMode, state model.TurnState) model.Turn {
	idx := s.indexLocked(id)
	if idx < 0 || s.turns[idx].State != model.TurnPending {
		log.Errorf("会话 %s 对账失败: 消息 %d 不存在或不处于 pending 状态", s.opts.ID, id)
		if idx < 0 {
			return model.Turn{}
		}
		return s.turns[idx]
	}
	s.turns[idx].Content = content
	s.turns[idx].RenderMode = mode
	s.turns[idx].State = state
	return s.turns[idx]
}

// indexLocked 在按 id 升序的记录中二分查找。
func (s *Session) indexLocked(id int64) int {
	lo, hi := 0, len(s.turns)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s.turns[mid].ID == id:
			return mid
		case s.turns[mid].ID < id:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1
}

// historyLocked 返回发送给模型的历史：所有已完成的消息，不含 pending 与失败的消息。
func (s *Session) historyLocked() []model.ChatMessage {
	history := make([]model.ChatMessage, 0, len(s.turns))
	for _, t := range s.turns {
		if t.State == model.TurnResolved {
			history = append(history, t.Message())
		}
	}
	return history
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Version:     s.version,
		Turns:       append([]model.Turn(nil), s.turns...),
		Suggestions: append([]model.Suggestion(nil), s.suggestions...),
		Code:        s.editor.Text(),
		Analyzing:   s.analyzing,
		ChatPending: s.pendingID != 0,
	}
}

func (s *Session) notifyLocked() {
	s.version++
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.snapshotLocked())
	}
}
