package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"token-service/internal/biz"
	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"
	"token-service/internal/data/model"
	"token-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// balanceRepo 余额相关数据访问
type balanceRepo struct {
	data    *Data
	log     *log.Helper
	metrics *metrics.TokenMetrics
}

// NewBalanceRepo 创建余额 repo（返回 biz.BalanceRepo 接口）
func NewBalanceRepo(data *Data, logger log.Logger) biz.BalanceRepo {
	return &balanceRepo{
		data:    data,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// cachedBalance 余额缓存结构（仅当日有效，DB 是权威）
type cachedBalance struct {
	AllocationPool     int64  `json:"allocation_pool"`
	PurchasedPool      int64  `json:"purchased_pool"`
	AllocationCeiling  int64  `json:"allocation_ceiling"`
	ConsumedThisPeriod int64  `json:"consumed_this_period"`
	LastReplenishedOn  string `json:"last_replenished_on"`
}

func balanceCacheKey(identity, tier string) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisKeyBalance, identity, tier)
}

// GetOrCreate 获取余额记录，不存在则创建；到期补给在同一事务内落库后才返回
func (r *balanceRepo) GetOrCreate(ctx context.Context, identity, tier string, limit biz.PlanLimit, today string) (*biz.TokenBalance, error) {
	// 先尝试从 Redis 获取（补给未到期时才可信）
	if r.data.rdb != nil {
		cacheStr, err := r.data.rdb.Get(ctx, balanceCacheKey(identity, tier)).Result()
		if err == nil {
			var cached cachedBalance
			if err := json.Unmarshal([]byte(cacheStr), &cached); err == nil &&
				!biz.ShouldReplenish(limit, cached.LastReplenishedOn, today) {
				return &biz.TokenBalance{
					Identity:           identity,
					Tier:               tier,
					AllocationPool:     cached.AllocationPool,
					PurchasedPool:      cached.PurchasedPool,
					AllocationCeiling:  cached.AllocationCeiling,
					ConsumedThisPeriod: cached.ConsumedThisPeriod,
					LastReplenishedOn:  cached.LastReplenishedOn,
				}, nil
			}
		}
	}

	var m *model.TokenBalance
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = r.getOrCreateLocked(tx, identity, tier, limit, today)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.refreshBalanceCache(m)
	return toBalanceDomain(m), nil
}

// getOrCreateLocked 行锁下获取余额记录；不存在则懒建，到期则持久化补给重置
// 必须在事务内调用，返回的记录已反映重置后的当前值
func (r *balanceRepo) getOrCreateLocked(tx *gorm.DB, identity, tier string, limit biz.PlanLimit, today string) (*model.TokenBalance, error) {
	var m model.TokenBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("identity = ? AND tier = ?", identity, tier).
		First(&m).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = model.TokenBalance{
			TokenBalanceID:    uuid.New().String(),
			Identity:          identity,
			Tier:              tier,
			AllocationPool:    initialAllocation(limit),
			PurchasedPool:     0,
			AllocationCeiling: limit.Ceiling,
			LastReplenishedOn: today,
		}
		if createErr := tx.Create(&m).Error; createErr != nil {
			if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return nil, createErr
			}
			// 并发懒建撞了唯一索引，重新加锁读取
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("identity = ? AND tier = ?", identity, tier).
				First(&m).Error; err != nil {
				return nil, err
			}
		} else {
			return &m, nil
		}
	} else if err != nil {
		return nil, err
	}

	if biz.ShouldReplenish(limit, m.LastReplenishedOn, today) {
		if err := tx.Model(&m).Updates(map[string]interface{}{
			"allocation_pool":      limit.Ceiling,
			"allocation_ceiling":   limit.Ceiling,
			"consumed_this_period": 0,
			"last_replenished_on":  today,
		}).Error; err != nil {
			return nil, err
		}
		m.AllocationPool = limit.Ceiling
		m.AllocationCeiling = limit.Ceiling
		m.ConsumedThisPeriod = 0
		m.LastReplenishedOn = today
		if r.metrics != nil {
			r.metrics.ReplenishTotal.WithLabelValues(tier).Inc()
		}
	}

	return &m, nil
}

// Debit 原子扣减
// 行锁串行化同一记录上的并发扣减/入账，条件更新做二次守卫，
// 守卫失败按并发冲突处理，内部重试一次
func (r *balanceRepo) Debit(ctx context.Context, identity, tier string, limit biz.PlanLimit, cost int64, today string) (*biz.DebitResult, error) {
	// 分布式锁（按 身份+档位），多实例部署时减少守卫冲突
	if r.data.sync != nil {
		lockKey := fmt.Sprintf("%s%s:%s", constants.RedisKeyDebitLock, identity, tier)
		lockStartTime := time.Now()
		mutex := r.data.sync.NewMutex(lockKey, redsync.WithExpiry(5*time.Second))
		if err := mutex.Lock(); err != nil {
			r.log.Errorf("failed to acquire debit lock: identity=%s, tier=%s, error=%v", identity, tier, err)
			if r.metrics != nil {
				r.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultFailed).Inc()
				r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
			}
			return nil, tokenErrors.ErrDebitLockFailed()
		}
		if r.metrics != nil {
			r.metrics.LockAcquireTotal.WithLabelValues(constants.LockResultSuccess).Inc()
			r.metrics.LockAcquireDuration.Observe(time.Since(lockStartTime).Seconds())
		}
		defer func() {
			if ok, err := mutex.Unlock(); !ok || err != nil {
				r.log.Warnf("failed to unlock debit lock: identity=%s, tier=%s, error=%v", identity, tier, err)
			}
		}()
	}

	// 守卫失败重试一次，仍冲突则上抛可重试错误
	var result *biz.DebitResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		result, err = r.debitTx(ctx, identity, tier, limit, cost, today)
		if err != nil && tokenErrors.IsConcurrentModification(err) && attempt == 0 {
			continue
		}
		break
	}
	return result, err
}

// debitTx 单次扣减事务
func (r *balanceRepo) debitTx(ctx context.Context, identity, tier string, limit biz.PlanLimit, cost int64, today string) (*biz.DebitResult, error) {
	var result *biz.DebitResult
	var insufficient bool
	var committed *model.TokenBalance

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := r.getOrCreateLocked(tx, identity, tier, limit, today)
		if err != nil {
			return err
		}

		// 不限量档位：不动任何池，只为审计留流水
		if limit.Unlimited {
			result = &biz.DebitResult{
				AllocationRemaining: m.AllocationPool,
				PurchasedRemaining:  m.PurchasedPool,
				Unlimited:           true,
			}
			return nil
		}

		fromAllocation, fromPurchased, ok := biz.SplitCost(cost, m.AllocationPool, m.PurchasedPool)
		if !ok {
			// 不足时不产生任何池变更，但已落库的补给重置保留
			result = &biz.DebitResult{
				AllocationRemaining: m.AllocationPool,
				PurchasedRemaining:  m.PurchasedPool,
			}
			insufficient = true
			return nil
		}

		// 条件更新守卫：即使锁失效，两池也绝不会被扣成负数
		res := tx.Model(&model.TokenBalance{}).
			Where("token_balance_id = ? AND allocation_pool >= ? AND purchased_pool >= ?",
				m.TokenBalanceID, fromAllocation, fromPurchased).
			Updates(map[string]interface{}{
				"allocation_pool":      gorm.Expr("allocation_pool - ?", fromAllocation),
				"purchased_pool":       gorm.Expr("purchased_pool - ?", fromPurchased),
				"consumed_this_period": gorm.Expr("consumed_this_period + ?", cost),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tokenErrors.ErrConcurrentModification()
		}

		m.AllocationPool -= fromAllocation
		m.PurchasedPool -= fromPurchased
		m.ConsumedThisPeriod += cost
		committed = m

		result = &biz.DebitResult{
			FromAllocation:      fromAllocation,
			FromPurchased:       fromPurchased,
			AllocationRemaining: m.AllocationPool,
			PurchasedRemaining:  m.PurchasedPool,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if insufficient {
		return result, tokenErrors.ErrInsufficientBalance()
	}

	if committed != nil {
		r.refreshBalanceCache(committed)
	}
	return result, nil
}

// Credit 购买池入账（记录不存在时先懒建再入账）
func (r *balanceRepo) Credit(ctx context.Context, identity, tier string, limit biz.PlanLimit, quantity int64, today string) (*biz.TokenBalance, error) {
	var m *model.TokenBalance
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = r.getOrCreateLocked(tx, identity, tier, limit, today)
		if err != nil {
			return err
		}
		if err := tx.Model(m).Update("purchased_pool", gorm.Expr("purchased_pool + ?", quantity)).Error; err != nil {
			return err
		}
		m.PurchasedPool += quantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.refreshBalanceCache(m)
	return toBalanceDomain(m), nil
}

// refreshBalanceCache 事务提交后刷新余额缓存（尽力而为，不阻塞主流程）
func (r *balanceRepo) refreshBalanceCache(m *model.TokenBalance) {
	if r.data.rdb == nil || m == nil {
		return
	}
	cached, err := json.Marshal(&cachedBalance{
		AllocationPool:     m.AllocationPool,
		PurchasedPool:      m.PurchasedPool,
		AllocationCeiling:  m.AllocationCeiling,
		ConsumedThisPeriod: m.ConsumedThisPeriod,
		LastReplenishedOn:  m.LastReplenishedOn,
	})
	if err != nil {
		return
	}
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()
	if err := r.data.rdb.Set(cacheCtx, balanceCacheKey(m.Identity, m.Tier), cached, 5*time.Minute).Err(); err != nil {
		// 缓存更新失败不影响主流程，只记录日志
		r.log.Warnf("failed to update balance cache: %v", err)
	}
}

func initialAllocation(limit biz.PlanLimit) int64 {
	if limit.Unlimited {
		return 0
	}
	return limit.Ceiling
}

func toBalanceDomain(m *model.TokenBalance) *biz.TokenBalance {
	return &biz.TokenBalance{
		Identity:           m.Identity,
		Tier:               m.Tier,
		AllocationPool:     m.AllocationPool,
		PurchasedPool:      m.PurchasedPool,
		AllocationCeiling:  m.AllocationCeiling,
		ConsumedThisPeriod: m.ConsumedThisPeriod,
		LastReplenishedOn:  m.LastReplenishedOn,
		UpdatedAt:          m.UpdatedAt,
	}
}
