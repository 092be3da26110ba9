package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TokenMetrics 代币服务指标
type TokenMetrics struct {
	// 扣减相关指标
	DebitTotal    *prometheus.CounterVec   // 扣减总数（按档位、结果）
	DebitDuration *prometheus.HistogramVec // 扣减耗时
	DebitTokens   *prometheus.CounterVec   // 扣减代币数（按档位、池）

	// 余额相关指标
	BalanceQueryTotal  prometheus.Counter     // 余额查询总数
	ReplenishTotal     *prometheus.CounterVec // 补给重置总数（按档位）
	LowAllocationAlert *prometheus.GaugeVec   // 补给池即将用尽告警

	// 入账相关指标
	CreditTotal  *prometheus.CounterVec // 入账总数（按来源：purchase/grant）
	CreditTokens *prometheus.CounterVec // 入账代币数（按来源）

	// 购买订单相关指标
	PurchaseTotal        *prometheus.CounterVec // 购买订单总数（按状态）
	PurchaseConfirmTotal *prometheus.CounterVec // 回调确认总数（按结果：credited/duplicate/failed）
	PurchaseExpiredTotal prometheus.Counter     // 过期订单清理总数
	OrderCreateDuration  prometheus.Histogram   // 订单创建耗时

	// 用量流水相关指标
	UsageAppendFailedTotal *prometheus.CounterVec // 流水写入失败总数（按环节，只计数，不影响扣减）

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewTokenMetrics 创建代币服务指标
func NewTokenMetrics() *TokenMetrics {
	return &TokenMetrics{
		DebitTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_debit_total",
				Help: "Total number of token debits",
			},
			[]string{"tier", "result"}, // result: success/insufficient/error
		),
		DebitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_debit_duration_seconds",
				Help:    "Duration of token debit operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tier"},
		),
		DebitTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_debit_tokens_total",
				Help: "Total tokens debited",
			},
			[]string{"tier", "pool"}, // pool: allocation/purchased
		),

		BalanceQueryTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_balance_query_total",
				Help: "Total number of balance queries",
			},
		),
		ReplenishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_replenish_total",
				Help: "Total number of allocation pool resets",
			},
			[]string{"tier"},
		),
		LowAllocationAlert: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "token_low_allocation_alert",
				Help: "Set to 1 when the allocation pool falls below the threshold",
			},
			[]string{"tier"},
		),

		CreditTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_credit_total",
				Help: "Total number of credits to the purchased pool",
			},
			[]string{"source"}, // source: purchase/grant
		),
		CreditTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_credit_tokens_total",
				Help: "Total tokens credited to the purchased pool",
			},
			[]string{"source"},
		),

		PurchaseTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_purchase_total",
				Help: "Total number of purchase orders",
			},
			[]string{"status"},
		),
		PurchaseConfirmTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_purchase_confirm_total",
				Help: "Total number of payment callbacks processed",
			},
			[]string{"outcome"}, // outcome: credited/duplicate/failed
		),
		PurchaseExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_purchase_expired_total",
				Help: "Total number of pending purchases marked expired",
			},
		),
		OrderCreateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "token_order_create_duration_seconds",
				Help:    "Duration of purchase order creation",
				Buckets: prometheus.DefBuckets,
			},
		),

		UsageAppendFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_usage_append_failed_total",
				Help: "Total number of usage ledger appends that failed (best-effort)",
			},
			[]string{"stage"}, // stage: marshal/mq/db
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_lock_acquire_total",
				Help: "Total number of debit lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "token_lock_acquire_duration_seconds",
				Help:    "Duration of debit lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *TokenMetrics
	metricsOnce    sync.Once
)

// GetMetrics 获取全局指标实例
func GetMetrics() *TokenMetrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewTokenMetrics()
	})
	return defaultMetrics
}
