package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 操作流水的终态。
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Record 表示一次链上操作的执行流水。
type Record struct {
	ID             string
	ConversationID string
	Operation      string
	Address        string
	Summary        string
	TxHash         string
	Status         string
	CreatedAt      int64
}

// Repository 抽象操作流水的持久化接口。
type Repository interface {
	Save(ctx context.Context, record Record) error
	ListByAddress(ctx context.Context, address string, limit int) ([]Record, error)
	Close() error
}

// Stamp 补齐记录中由仓库负责生成的字段。
func Stamp(record Record) Record {
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	return record
}

// MemoryRepository 把流水保存在进程内存里，进程退出即丢失。
// 适合本地开发与测试环境。
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
	cap     int
}

// NewMemoryRepository 创建内存流水仓库。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{cap: 512}
}

// Save 把一条流水追加到内存队列头部。
func (m *MemoryRepository) Save(_ context.Context, record Record) error {
	record = Stamp(record)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append([]Record{record}, m.records...)
	if len(m.records) > m.cap {
		m.records = m.records[:m.cap]
	}
	return nil
}

// ListByAddress 按时间倒序返回某地址最近的流水记录。
func (m *MemoryRepository) ListByAddress(_ context.Context, address string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(strings.TrimSpace(address))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Record
	for _, record := range m.records {
		if strings.ToLower(record.Address) != needle {
			continue
		}
		results = append(results, record)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Close 对内存仓库而言是空操作。
func (m *MemoryRepository) Close() error { return nil }

var _ Repository = (*MemoryRepository)(nil)
