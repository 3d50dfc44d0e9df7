package ops

import (
	"context"
	"log/slog"
	"time"

	"ChainPilot/internal/assets"
	"ChainPilot/internal/chain"
	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/history"
	"ChainPilot/internal/market"
	"ChainPilot/internal/observability/alerting"
	"ChainPilot/internal/observability/metrics"
	"ChainPilot/internal/resolver"
	"ChainPilot/internal/session"
	"ChainPilot/pkg/logger"
)

// result 是单个操作的执行结果。text 面向用户；txHash 仅在产生了
// 链上交易时填写，用于落流水。
type result struct {
	text   string
	txHash string
}

// Executor 负责把解析服务提出的操作调用落到链上。所有执行失败都
// 转换为描述性文案返回给对话，不向上抛出。
type Executor struct {
	registry *Registry
	chain    chain.Client
	explorer chain.Explorer
	assets   assets.Registry
	market   *market.Client
	history  history.Repository
	alerts   alerting.Dispatcher
	log      *slog.Logger
}

// Option 配置 Executor 的可选依赖。
type Option func(*Executor)

// WithMarket 接入行情客户端，启用价格与走势查询。
func WithMarket(client *market.Client) Option {
	return func(e *Executor) { e.market = client }
}

// WithHistory 接入操作流水仓库。
func WithHistory(repo history.Repository) Option {
	return func(e *Executor) { e.history = repo }
}

// WithAlerts 接入告警分发器。
func WithAlerts(dispatcher alerting.Dispatcher) Option {
	return func(e *Executor) { e.alerts = dispatcher }
}

// WithLogger 指定执行器使用的日志器。
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// NewExecutor 创建操作执行器。
func NewExecutor(registry *Registry, chainClient chain.Client, explorer chain.Explorer, registryOfAssets assets.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		chain:    chainClient,
		explorer: explorer,
		assets:   registryOfAssets,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Named("ops")
	}
	return e
}

// Registry 返回执行器绑定的操作目录。
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Capabilities 返回操作目录对解析服务暴露的能力列表。
func (e *Executor) Capabilities() []resolver.Capability {
	return e.registry.Capabilities()
}

// Dispatch 执行一次操作调用并返回面向用户的结果文案。流程：按名
// 解析描述、schema 校验参数、会话门禁、穷举分发执行。任何失败都
// 收敛为文案，对话得以继续。
func (e *Executor) Dispatch(ctx context.Context, sess *session.Session, conversationID string, call resolver.ToolCall) string {
	desc, ok := e.registry.Resolve(call.Name)
	if !ok {
		e.log.Warn("解析服务请求了未注册的操作",
			slog.String("conversation_id", conversationID),
			slog.String("operation", call.Name),
		)
		metrics.ObserveOperation(call.Name, history.StatusFailure)
		return "操作 " + call.Name + " 不存在，请从能力列表中选择。"
	}

	if err := desc.ValidateArguments(call.Arguments); err != nil {
		e.finish(ctx, sess, conversationID, desc, result{text: failureText(err)}, err)
		return failureText(err)
	}

	if desc.RequiresSession {
		if _, bound := sess.Identity(); !bound {
			err := xerrors.New(xerrors.CodeNoSession, "当前会话未绑定钱包凭证")
			text := "当前会话还没有绑定钱包，请先通过 connect_wallet 提供私钥。"
			e.finish(ctx, sess, conversationID, desc, result{text: text}, err)
			return text
		}
	}

	// 同一会话内操作串行执行。批量转账的 nonce 预分配依赖这一点。
	sess.Lock()
	defer sess.Unlock()

	res, err := e.execute(ctx, sess, desc, call)
	if err != nil {
		res.text = failureText(err)
	}
	e.finish(ctx, sess, conversationID, desc, res, err)
	return res.text
}

// execute 按操作类型穷举分发。
func (e *Executor) execute(ctx context.Context, sess *session.Session, desc *Descriptor, call resolver.ToolCall) (result, error) {
	switch desc.Kind {
	case KindConnectWallet:
		return e.connectWallet(sess, call.Arguments)
	case KindDisconnectWallet:
		return e.disconnectWallet(sess)
	case KindWalletAddress:
		return e.walletAddress(sess)
	case KindGetBalance:
		return e.getBalance(ctx, sess)
	case KindGetGasPrice:
		return e.getGasPrice(ctx)
	case KindGetBlockNumber:
		return e.getBlockNumber(ctx)
	case KindGetBlockLogs:
		return e.getBlockLogs(ctx, call.Arguments)
	case KindTransactionHistory:
		return e.transactionHistory(ctx, sess, call.Arguments)
	case KindSendETH:
		return e.sendETH(ctx, sess, call.Arguments)
	case KindSignMessage:
		return e.signMessage(sess, call.Arguments)
	case KindCreateToken:
		return e.createToken(ctx, sess, call.Arguments)
	case KindSendToken:
		return e.sendToken(ctx, sess, call.Arguments)
	case KindBatchTransfer:
		return e.batchTransfer(ctx, sess, call.Arguments)
	case KindGetPrice:
		return e.getPrice(ctx, call.Arguments)
	case KindGetTrend:
		return e.getTrend(ctx, call.Arguments)
	case KindFaucetInfo:
		return e.faucetInfo()
	default:
		return result{}, xerrors.New(xerrors.CodeRegistryError, "操作 "+desc.Name+" 未接入分发逻辑")
	}
}

// finish 统一收尾：指标、审计日志、操作流水、告警。流水写入失败
// 只记日志，不影响用户结果。
func (e *Executor) finish(ctx context.Context, sess *session.Session, conversationID string, desc *Descriptor, res result, execErr error) {
	status := history.StatusSuccess
	if execErr != nil {
		status = history.StatusFailure
	}
	metrics.ObserveOperation(desc.Name, status)

	address := ""
	if identity, bound := sess.Identity(); bound {
		address = identity.Address.Hex()
	}

	logger.Audit().Info("操作执行",
		slog.String("conversation_id", conversationID),
		slog.String("operation", desc.Name),
		slog.String("address", address),
		slog.String("status", status),
		slog.String("tx_hash", res.txHash),
	)

	if e.history != nil {
		record := history.Record{
			ConversationID: conversationID,
			Operation:      desc.Name,
			Address:        address,
			Summary:        truncate(res.text, 512),
			TxHash:         res.txHash,
			Status:         status,
		}
		if err := e.history.Save(ctx, record); err != nil {
			e.log.Error("操作流水写入失败",
				slog.String("conversation_id", conversationID),
				slog.String("operation", desc.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	if execErr != nil && e.alerts != nil && xerrors.ShouldAlert(execErr) {
		event := alerting.Event{
			Code:           xerrors.CodeOf(execErr),
			Message:        execErr.Error(),
			Severity:       xerrors.SeverityOf(execErr),
			ConversationID: conversationID,
			Operation:      desc.Name,
			OccurredAt:     time.Now(),
		}
		if err := e.alerts.Notify(ctx, event); err != nil {
			e.log.Error("告警投递失败", slog.String("error", err.Error()))
		}
	}
}

// failureText 把执行错误转换为面向用户的失败文案。
func failureText(err error) string {
	if err == nil {
		return ""
	}
	xe, ok := xerrors.From(err)
	if !ok {
		return "操作执行失败: " + err.Error()
	}
	switch xe.Code() {
	case xerrors.CodeNoSession:
		return "当前会话还没有绑定钱包，请先通过 connect_wallet 提供私钥。"
	case xerrors.CodeInvalidArgument:
		return "参数有误: " + xe.Message()
	case xerrors.CodeConflict:
		return "操作冲突: " + xe.Message()
	case xerrors.CodeExecutionFailure:
		return "链上执行失败: " + err.Error()
	default:
		return "操作执行失败: " + err.Error()
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
