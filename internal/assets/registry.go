package assets

import (
	"sort"
	"strings"
	"sync"

	xerrors "ChainPilot/internal/errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAssetExists 表示符号名已被占用。
var ErrAssetExists = xerrors.New(xerrors.CodeConflict, "代币符号已存在")

// Registry 维护用户自定义符号名到链上合约地址的映射。映射在进程
// 生命周期内有效，只增不删；所有会话共享同一个实例，因此实现必须
// 能安全地被并发读写。
type Registry interface {
	// Put 注册一个新的符号名。若符号名已存在返回 ErrAssetExists，
	// 不覆盖原有映射。
	Put(name string, address common.Address) error
	// Resolve 按符号名查找合约地址。
	Resolve(name string) (common.Address, bool)
	// Names 返回所有已注册符号名（按字典序）。
	Names() []string
}

// MemoryRegistry 是 Registry 的进程内实现。
type MemoryRegistry struct {
	mu     sync.RWMutex
	assets map[string]common.Address
}

// NewMemoryRegistry 创建空的内存代币注册表。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{assets: make(map[string]common.Address)}
}

// Put 实现 Registry 接口。
func (r *MemoryRegistry) Put(name string, address common.Address) error {
	key := normalize(name)
	if key == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "代币符号不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[key]; ok {
		return ErrAssetExists
	}
	r.assets[key] = address
	return nil
}

// Resolve 实现 Registry 接口。
func (r *MemoryRegistry) Resolve(name string) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	address, ok := r.assets[normalize(name)]
	return address, ok
}

// Names 实现 Registry 接口。
func (r *MemoryRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.assets))
	for name := range r.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

var _ Registry = (*MemoryRegistry)(nil)
