package resolver

import (
	"context"
	"encoding/json"
)

// Role 表示对话中一条消息的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 是会话循环与意图解析服务之间交换的一条对话消息。
// 当助手消息携带 ToolCalls 时 Content 可以为空；工具消息必须携带
// ToolCallID 以关联其响应的调用。
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall 描述解析服务请求执行的一次具体操作调用。
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Capability 向解析服务声明一个可用操作及其入参结构。
type Capability struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Decision 是解析服务对一轮对话的裁决：要么给出终局回答（Call 为 nil），
// 要么请求执行一个操作（Answer 为空）。二者互斥。
type Decision struct {
	Answer string
	Call   *ToolCall
}

// Terminal 判断该裁决是否为终局回答。
func (d *Decision) Terminal() bool {
	return d != nil && d.Call == nil
}

// Client 定义了调用意图解析服务的统一接口。实现方拿到完整的对话和
// 操作目录，返回一个 Decision；解析服务本身的错误（网络失败、响应
// 不可解析）通过 error 返回，由上层包装为终局失败。
type Client interface {
	Resolve(ctx context.Context, conversation []Message, capabilities []Capability) (*Decision, error)
}
