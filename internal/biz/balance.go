package biz

import (
	"context"
	"time"
)

// TokenBalance 代币余额领域对象（每个 身份×档位 一条）
type TokenBalance struct {
	Identity string
	Tier     string
	// AllocationPool 周期补给池，每日重置到上限
	AllocationPool int64
	// PurchasedPool 购买池，只增不减（除扣减外），永不过期
	PurchasedPool int64
	// AllocationCeiling 补给上限，不限量档位为 -1
	AllocationCeiling int64
	// ConsumedThisPeriod 本周期已消耗（信息性计数，随补给池一起重置）
	ConsumedThisPeriod int64
	// LastReplenishedOn 上次补给的日期（YYYY-MM-DD）
	LastReplenishedOn string
	UpdatedAt         time.Time
}

// DebitResult 扣减结果
type DebitResult struct {
	// FromAllocation / FromPurchased 两池各自分摊的数量
	FromAllocation int64
	FromPurchased  int64
	// AllocationRemaining / PurchasedRemaining 扣减后的余额
	AllocationRemaining int64
	PurchasedRemaining  int64
	// Unlimited 不限量档位：未动任何池
	Unlimited bool
}

// BalanceRepo 余额数据层接口（定义在 biz 层）
type BalanceRepo interface {
	// GetOrCreate 获取余额记录，不存在则创建；到期的补给重置
	// 在同一事务内先落库再返回，只读访问也会触发持久化重置
	GetOrCreate(ctx context.Context, identity, tier string, limit PlanLimit, today string) (*TokenBalance, error)
	// Debit 原子扣减：行锁 + 条件更新守卫，两池合计不足时不产生任何变更
	Debit(ctx context.Context, identity, tier string, limit PlanLimit, cost int64, today string) (*DebitResult, error)
	// Credit 购买池入账，记录不存在时先按默认值创建
	Credit(ctx context.Context, identity, tier string, limit PlanLimit, quantity int64, today string) (*TokenBalance, error)
}
