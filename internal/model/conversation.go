// Package model 包含了应用的数据模型定义。
package model

import "time"

// Role 标识一条消息的作者。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 仅接受 user 与 assistant，system 提示只能由服务端注入。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// RenderMode 决定一条消息按纯文本还是代码块展示，写入后不再改变。
type RenderMode string

const (
	RenderPlain RenderMode = "plain"
	RenderCode  RenderMode = "code"
)

// TurnState 是单条消息的生命周期状态：pending -> resolved | failed。
type TurnState string

const (
	TurnPending  TurnState = "pending"
	TurnResolved TurnState = "resolved"
	TurnFailed   TurnState = "failed"
)

// ChatMessage 是发送给 /api/chat 的单条历史消息。
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn 代表会话记录中的一条消息，ID 即排序键。
type Turn struct {
	ID         int64      `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	RenderMode RenderMode `json:"renderMode"`
	State      TurnState  `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"` // 仅用于展示
}

// Message 将 Turn 转换为发送给模型的历史消息。
func (t Turn) Message() ChatMessage {
	return ChatMessage{Role: t.Role, Content: t.Content}
}
