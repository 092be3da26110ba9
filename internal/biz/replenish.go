package biz

// ShouldReplenish 判断补给池是否需要重置
// 纯函数：lastReplenishedOn 与 today 均为 YYYY-MM-DD 日期串，
// 不限量档位的补给池从不被扣减，也就从不需要重置。
// 调用方负责在同一事务内先持久化重置再读取当前值，
// 不允许只在读取时虚算一个重置后的值而不落库。
func ShouldReplenish(limit PlanLimit, lastReplenishedOn, today string) bool {
	if limit.Unlimited {
		return false
	}
	return lastReplenishedOn < today
}

// SplitCost 计算两池的扣减分摊（补给池优先，剩余走购买池）
// ok 为 false 表示两池合计不足，调用方不得做任何状态变更
func SplitCost(cost, allocation, purchased int64) (fromAllocation, fromPurchased int64, ok bool) {
	if cost > allocation+purchased {
		return 0, 0, false
	}
	fromAllocation = cost
	if fromAllocation > allocation {
		fromAllocation = allocation
	}
	fromPurchased = cost - fromAllocation
	return fromAllocation, fromPurchased, true
}
