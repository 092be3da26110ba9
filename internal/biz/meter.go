package biz

import (
	"context"
	"time"

	"token-service/internal/conf"
	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"
	"token-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// MeterUseCase 计量业务逻辑（组合 UseCase）
// 余额读取、原子扣减、入账以及扣减后的用量上报都从这里走
type MeterUseCase struct {
	balanceRepo BalanceRepo
	catalog     PlanCatalog
	sink        UsageSink
	conf        *conf.Bootstrap
	log         *log.Helper
	metrics     *metrics.TokenMetrics
}

// NewMeterUseCase 创建计量 UseCase
func NewMeterUseCase(
	balanceRepo BalanceRepo,
	catalog PlanCatalog,
	sink UsageSink,
	c *conf.Bootstrap,
	logger log.Logger,
) *MeterUseCase {
	return &MeterUseCase{
		balanceRepo: balanceRepo,
		catalog:     catalog,
		sink:        sink,
		conf:        c,
		log:         log.NewHelper(logger),
		metrics:     metrics.GetMetrics(),
	}
}

// GetBalance 获取余额（懒建 + 到期补给在同一事务内落库）
func (uc *MeterUseCase) GetBalance(ctx context.Context, identity, tier string) (*TokenBalance, error) {
	if uc.metrics != nil {
		uc.metrics.BalanceQueryTotal.Inc()
	}

	limit, err := uc.catalog.Ceiling(tier)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format(constants.TimeFormatDay)
	return uc.balanceRepo.GetOrCreate(ctx, identity, tier, limit, today)
}

// Spend 消耗代币（原子扣减）
// cost 必须为正整数；两池合计不足时返回余额不足且不产生任何变更；
// 不限量档位总是成功且不动余额。成功后用量事件尽力上报，失败不回滚扣减。
func (uc *MeterUseCase) Spend(ctx context.Context, identity, tier string, cost int64, feature string) (*DebitResult, error) {
	startTime := time.Now()

	if cost <= 0 {
		return nil, tokenErrors.ErrInvalidInput("cost must be a positive integer, got %d", cost)
	}

	limit, err := uc.catalog.Ceiling(tier)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format(constants.TimeFormatDay)
	result, err := uc.balanceRepo.Debit(ctx, identity, tier, limit, cost, today)

	if uc.metrics != nil {
		uc.metrics.DebitDuration.WithLabelValues(tier).Observe(time.Since(startTime).Seconds())
		switch {
		case err == nil:
			uc.metrics.DebitTotal.WithLabelValues(tier, constants.DebitResultSuccess).Inc()
			uc.metrics.DebitTokens.WithLabelValues(tier, constants.PoolAllocation).Add(float64(result.FromAllocation))
			uc.metrics.DebitTokens.WithLabelValues(tier, constants.PoolPurchased).Add(float64(result.FromPurchased))
		case tokenErrors.IsInsufficientBalance(err):
			uc.metrics.DebitTotal.WithLabelValues(tier, constants.DebitResultInsufficient).Inc()
		default:
			uc.metrics.DebitTotal.WithLabelValues(tier, constants.DebitResultError).Inc()
		}
	}
	if err != nil {
		return result, err
	}

	uc.updateLowAllocationAlert(tier, limit, result.AllocationRemaining)

	// 用量上报与扣减解耦：失败只记日志，不影响已提交的扣减
	if uc.sink != nil {
		uc.sink.Record(ctx, &UsageEvent{
			EntryID:        uuid.New().String(),
			Identity:       identity,
			Tier:           tier,
			Cost:           cost,
			FromAllocation: result.FromAllocation,
			FromPurchased:  result.FromPurchased,
			Feature:        feature,
			OccurredAt:     time.Now(),
		})
	}

	return result, nil
}

// Grant 直接入账购买池（内部发放，不经过支付流程）
func (uc *MeterUseCase) Grant(ctx context.Context, identity, tier string, quantity int64) (*TokenBalance, error) {
	if quantity <= 0 {
		return nil, tokenErrors.ErrInvalidInput("quantity must be a positive integer, got %d", quantity)
	}

	limit, err := uc.catalog.Ceiling(tier)
	if err != nil {
		return nil, err
	}

	today := time.Now().Format(constants.TimeFormatDay)
	balance, err := uc.balanceRepo.Credit(ctx, identity, tier, limit, quantity, today)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.CreditTotal.WithLabelValues("grant").Inc()
		uc.metrics.CreditTokens.WithLabelValues("grant").Add(float64(quantity))
	}
	return balance, nil
}

// updateLowAllocationAlert 维护补给池低水位告警
func (uc *MeterUseCase) updateLowAllocationAlert(tier string, limit PlanLimit, remaining int64) {
	if uc.metrics == nil || limit.Unlimited || limit.Ceiling <= 0 {
		return
	}
	threshold := 20.0
	if uc.conf.Plans != nil && uc.conf.Plans.LowAllocationPercent > 0 {
		threshold = uc.conf.Plans.LowAllocationPercent
	}
	remainingPercent := float64(remaining) / float64(limit.Ceiling) * 100
	if remainingPercent < threshold {
		uc.metrics.LowAllocationAlert.WithLabelValues(tier).Set(1)
	} else {
		uc.metrics.LowAllocationAlert.WithLabelValues(tier).Set(0)
	}
}
