package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// UsageEntry 用量流水领域对象（仅追加，审计用途）
// 与余额记录没有强一致约束：流水是诊断数据，不是权威余额
type UsageEntry struct {
	ID             string
	Identity       string
	Tier           string
	Cost           int64
	FromAllocation int64
	FromPurchased  int64
	Feature        string
	OccurredAt     time.Time
}

// UsageEvent 扣减成功后发往用量通道的事件（MQ 消息体）
type UsageEvent struct {
	EntryID        string    `json:"entry_id"`
	Identity       string    `json:"identity"`
	Tier           string    `json:"tier"`
	Cost           int64     `json:"cost"`
	FromAllocation int64     `json:"from_allocation"`
	FromPurchased  int64     `json:"from_purchased"`
	Feature        string    `json:"feature"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// UsageSummary 用量汇总（按功能维度）
type UsageSummary struct {
	Identity string
	Features []*FeatureUsage
	// TotalCost 周期内总消耗
	TotalCost int64
}

// FeatureUsage 单个功能的用量
type FeatureUsage struct {
	Feature        string
	Count          int64
	TotalCost      int64
	FromAllocation int64
	FromPurchased  int64
}

// UsageRepo 用量流水数据层接口（定义在 biz 层）
type UsageRepo interface {
	AppendUsage(ctx context.Context, entry *UsageEntry) error
	// BatchAppendUsage 批量落库（MQ 消费端调用）
	BatchAppendUsage(ctx context.Context, events []*UsageEvent) error
	ListUsage(ctx context.Context, identity string, page, pageSize int) ([]*UsageEntry, int64, error)
	// GetUsageSummary 当前周期（当日零点起）按功能汇总
	GetUsageSummary(ctx context.Context, identity string) (*UsageSummary, error)
}

// UsageSink 用量事件接收方（单向，尽力而为）
// 写入失败只记日志，绝不影响扣减结果
type UsageSink interface {
	Record(ctx context.Context, event *UsageEvent)
}

// UsageUseCase 用量流水业务逻辑
type UsageUseCase struct {
	repo UsageRepo
	log  *log.Helper
}

// NewUsageUseCase 创建用量 UseCase
func NewUsageUseCase(repo UsageRepo, logger log.Logger) *UsageUseCase {
	return &UsageUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// ListUsage 获取用量流水列表
func (uc *UsageUseCase) ListUsage(ctx context.Context, identity string, page, pageSize int) ([]*UsageEntry, int64, error) {
	return uc.repo.ListUsage(ctx, identity, page, pageSize)
}

// GetUsageSummary 获取当前周期用量汇总
func (uc *UsageUseCase) GetUsageSummary(ctx context.Context, identity string) (*UsageSummary, error) {
	return uc.repo.GetUsageSummary(ctx, identity)
}
