package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/knowledge"
	"ChainPilot/internal/resolver"
	"ChainPilot/internal/session"
	"ChainPilot/pkg/logger"
)

// Operations 是控制循环需要的操作执行面。
type Operations interface {
	Capabilities() []resolver.Capability
	Dispatch(ctx context.Context, sess *session.Session, conversationID string, call resolver.ToolCall) string
}

// Request 描述一次控制循环调用。Credential 可选，存在时会在用户
// 指令之前先执行一次钱包绑定，绑定结果作为对话的一部分。
type Request struct {
	Input      string
	Credential string
}

// Agent 驱动回合制控制循环。
type Agent struct {
	resolver  resolver.Client
	ops       Operations
	maxTurns  int
	knowledge knowledge.Provider
	log       *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// defaultMaxTurns 限制单次调用内解析与执行交替的最大回合数。
const defaultMaxTurns = 10

// WithMaxTurns 设置回合数上限。
func WithMaxTurns(turns int) Option {
	return func(a *Agent) {
		a.maxTurns = turns
	}
}

// WithKnowledgeProvider 配置知识库，用于在系统提示中补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) {
		a.knowledge = provider
	}
}

// WithLogger 指定 Agent 使用的日志器。
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		a.log = log
	}
}

// New 创建一个 Agent。
func New(resolverClient resolver.Client, operations Operations, opts ...Option) *Agent {
	ag := &Agent{
		resolver: resolverClient,
		ops:      operations,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxTurns <= 0 {
		ag.maxTurns = defaultMaxTurns
	}
	if ag.log == nil {
		ag.log = logger.Named("agent")
	}
	return ag
}

// Run 执行一次完整的控制循环并返回终局回答。操作失败是对话内容
// 的一部分，循环会带着失败文案继续；只有解析服务本身出错才以错误
// 返回。
func (a *Agent) Run(ctx context.Context, sess *session.Session, req Request) (string, error) {
	if a.resolver == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置意图解析客户端")
	}
	if strings.TrimSpace(req.Input) == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "指令不能为空")
	}

	conversationID := uuid.NewString()
	capabilities := a.ops.Capabilities()

	conversation := []resolver.Message{
		{Role: resolver.RoleSystem, Content: a.systemPrompt(req.Input)},
	}
	if strings.TrimSpace(req.Credential) != "" {
		conversation = append(conversation, a.seedCredential(ctx, sess, conversationID, req.Credential)...)
	}
	conversation = append(conversation, resolver.Message{Role: resolver.RoleUser, Content: req.Input})

	for turn := 1; turn <= a.maxTurns; turn++ {
		decision, err := a.resolver.Resolve(ctx, conversation, capabilities)
		if err != nil {
			a.log.Error("意图解析失败",
				slog.String("conversation_id", conversationID),
				slog.Int("turn", turn),
				slog.String("error", err.Error()),
			)
			return "", xerrors.Wrap(xerrors.CodeResolverFailure, err, "意图解析失败")
		}

		if decision.Terminal() {
			a.log.Info("对话结束",
				slog.String("conversation_id", conversationID),
				slog.Int("turns", turn),
			)
			return decision.Answer, nil
		}

		call := *decision.Call
		a.log.Info("执行操作",
			slog.String("conversation_id", conversationID),
			slog.Int("turn", turn),
			slog.String("operation", call.Name),
		)

		resultText := a.ops.Dispatch(ctx, sess, conversationID, call)
		conversation = append(conversation,
			resolver.Message{Role: resolver.RoleAssistant, ToolCalls: []resolver.ToolCall{call}},
			resolver.Message{Role: resolver.RoleTool, ToolCallID: call.ID, Content: resultText},
		)
	}

	a.log.Warn("回合预算耗尽", slog.String("conversation_id", conversationID), slog.Int("max_turns", a.maxTurns))
	return "这次请求涉及的操作步骤过多，已执行的部分见上文。请把任务拆小后再试。", nil
}

// seedCredential 在用户指令之前先绑定钱包，绑定过程以一次操作调用
// 的形式进入对话，解析服务因此能看到绑定结果。
func (a *Agent) seedCredential(ctx context.Context, sess *session.Session, conversationID, credential string) []resolver.Message {
	arguments, _ := json.Marshal(map[string]string{"private_key": credential})
	call := resolver.ToolCall{
		ID:        "seed-connect-wallet",
		Name:      "connect_wallet",
		Arguments: arguments,
	}
	resultText := a.ops.Dispatch(ctx, sess, conversationID, call)
	return []resolver.Message{
		{Role: resolver.RoleAssistant, ToolCalls: []resolver.ToolCall{call}},
		{Role: resolver.RoleTool, ToolCallID: call.ID, Content: resultText},
	}
}

func (a *Agent) systemPrompt(input string) string {
	var builder strings.Builder
	builder.WriteString("你是一个区块链操作助手，面向以太坊测试网。" +
		"你只能通过提供的工具完成链上操作，每次最多请求一个工具；" +
		"工具执行的失败信息会以结果形式返回，请据此调整或向用户解释。" +
		"当不再需要执行操作时，直接给出面向用户的最终回答。")

	if a.knowledge != nil {
		snippets := a.knowledge.Query(input)
		if len(snippets) > 0 {
			builder.WriteString("\n\n以下是可能有用的背景知识：")
			for _, snippet := range snippets {
				builder.WriteString("\n- " + snippet.Title + ": " + snippet.Content)
			}
		}
	}
	return builder.String()
}
