package ops

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/internal/resolver"
)

// Kind 是操作的类型标识。分发层对它做穷举 switch，新增操作必须
// 同时扩展枚举与分发逻辑，编译期即可暴露遗漏。
type Kind int

// 操作目录中的全部操作类型。
const (
	KindConnectWallet Kind = iota
	KindDisconnectWallet
	KindWalletAddress
	KindGetBalance
	KindGetGasPrice
	KindGetBlockNumber
	KindGetBlockLogs
	KindTransactionHistory
	KindSendETH
	KindSignMessage
	KindCreateToken
	KindSendToken
	KindBatchTransfer
	KindGetPrice
	KindGetTrend
	KindFaucetInfo
)

// Descriptor 描述一个已注册的操作。进程启动时注册完毕后不再变化。
type Descriptor struct {
	Name            string
	Description     string
	InputSchema     json.RawMessage
	RequiresSession bool
	Kind            Kind

	schema *gojsonschema.Schema
}

// Registry 持有封闭的操作目录。注册只发生在进程启动阶段，之后
// 全部是只读访问，因此不需要锁。
type Registry struct {
	order  []string
	byName map[string]*Descriptor
}

// NewRegistry 创建空的操作目录。
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register 注册一个操作。名字冲突或输入 schema 无法编译属于启动期
// 致命错误，返回 REGISTRY_ERROR。
func (r *Registry) Register(desc Descriptor) error {
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		return xerrors.New(xerrors.CodeRegistryError, "操作名不能为空")
	}
	if _, exists := r.byName[name]; exists {
		return xerrors.New(xerrors.CodeRegistryError, "操作名重复注册: "+name)
	}

	if len(desc.InputSchema) == 0 {
		desc.InputSchema = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(desc.InputSchema))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeRegistryError, err, "操作 "+name+" 的参数 schema 不合法")
	}
	desc.Name = name
	desc.schema = compiled

	r.byName[name] = &desc
	r.order = append(r.order, name)
	return nil
}

// Resolve 按名字查找操作描述。
func (r *Registry) Resolve(name string) (*Descriptor, bool) {
	desc, ok := r.byName[strings.TrimSpace(name)]
	return desc, ok
}

// List 按注册顺序返回全部操作描述。
func (r *Registry) List() []*Descriptor {
	descs := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descs = append(descs, r.byName[name])
	}
	return descs
}

// Capabilities 把目录转换成意图解析服务可见的能力列表。
func (r *Registry) Capabilities() []resolver.Capability {
	caps := make([]resolver.Capability, 0, len(r.order))
	for _, name := range r.order {
		desc := r.byName[name]
		caps = append(caps, resolver.Capability{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		})
	}
	return caps
}

// ValidateArguments 用操作声明的 schema 校验原始参数。空参数按空
// 对象处理。校验不通过返回 INVALID_ARGUMENT。
func (d *Descriptor) ValidateArguments(raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "参数不是合法的 JSON 对象")
	}
	if !result.Valid() {
		var reasons []string
		for _, issue := range result.Errors() {
			reasons = append(reasons, issue.String())
		}
		return xerrors.New(xerrors.CodeInvalidArgument, "参数校验失败: "+strings.Join(reasons, "; "))
	}
	return nil
}
