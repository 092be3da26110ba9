package biz

import (
	"context"
	"fmt"
	"time"

	"token-service/internal/conf"
	"token-service/internal/constants"
	tokenErrors "token-service/internal/errors"
	"token-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// PendingPurchase 待支付订单领域对象（pending -> completed/failed/expired）
type PendingPurchase struct {
	PurchaseID string
	Identity   string
	Tier       string
	// OrderID 本服务生成的业务订单号，对网关全局唯一
	OrderID  string
	Quantity int64
	// AmountMinorUnits 订单金额（最小货币单位）
	AmountMinorUnits int64
	Status           string
	// ProviderPaymentID 网关支付流水号，确认前为空；
	// 一经写入即全局唯一，幂等入账靠它保证
	ProviderPaymentID string
	FailureReason     string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	UpdatedAt         time.Time
}

// PurchaseHistory 购买历史领域对象（每个支付流水号恰好一条）
type PurchaseHistory struct {
	// ReceiptNo 顺序递增的回执号（对用户展示）
	ReceiptNo         uint64
	Identity          string
	OrderID           string
	QuantityCredited  int64
	AmountMinorUnits  int64
	ProviderPaymentID string
	CompletedAt       time.Time
}

// PurchaseRepo 购买订单数据层接口（定义在 biz 层）
type PurchaseRepo interface {
	// CreatePendingPurchase 创建待支付订单；同 (order_id, identity) 已存在时
	// 返回已有记录而不是报错（网关跳转前的重试要安全）
	CreatePendingPurchase(ctx context.Context, purchase *PendingPurchase) (*PendingPurchase, error)
	GetPurchaseByOrderID(ctx context.Context, orderID string) (*PendingPurchase, error)
	// ConfirmPurchase 确认入账：同一事务内写购买历史（支付流水号唯一约束）、
	// 购买池入账、订单置为 completed。唯一约束冲突即视为已入账，
	// credited 返回 false。
	ConfirmPurchase(ctx context.Context, orderID, providerPaymentID string, limit PlanLimit, today string) (credited bool, err error)
	// MarkPurchaseFailed 网关上报失败，不产生任何入账
	MarkPurchaseFailed(ctx context.Context, orderID, reason string) error
	// ExpirePendingPurchases 将超时未支付的订单置为 expired，不动余额
	ExpirePendingPurchases(ctx context.Context, now time.Time) (int64, error)
	ListPurchaseHistory(ctx context.Context, identity string, page, pageSize int) ([]*PurchaseHistory, int64, error)
}

// PurchaseUseCase 购买业务逻辑
type PurchaseUseCase struct {
	repo    PurchaseRepo
	catalog PlanCatalog
	gateway PaymentGateway
	conf    *conf.Bootstrap
	log     *log.Helper
	metrics *metrics.TokenMetrics
}

// NewPurchaseUseCase 创建购买 UseCase
func NewPurchaseUseCase(
	repo PurchaseRepo,
	catalog PlanCatalog,
	gateway PaymentGateway,
	c *conf.Bootstrap,
	logger log.Logger,
) *PurchaseUseCase {
	return &PurchaseUseCase{
		repo:    repo,
		catalog: catalog,
		gateway: gateway,
		conf:    c,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// pendingTTL 待支付订单有效期
func (uc *PurchaseUseCase) pendingTTL() time.Duration {
	if uc.conf.Gateway != nil {
		return conf.ParseDuration(uc.conf.Gateway.PendingTTL, 15*time.Minute)
	}
	return 15 * time.Minute
}

// tokenPrice 单个代币价格（最小货币单位）
func (uc *PurchaseUseCase) tokenPrice() int64 {
	if uc.conf.Gateway != nil && uc.conf.Gateway.TokenPriceMinorUnits > 0 {
		return uc.conf.Gateway.TokenPriceMinorUnits
	}
	return 1
}

// CreatePurchase 创建购买订单并向网关下单
// 返回业务订单号与网关支付链接；订单停留在 pending，等回调推进状态
func (uc *PurchaseUseCase) CreatePurchase(ctx context.Context, identity, tier string, quantity int64) (*PendingPurchase, string, error) {
	startTime := time.Now()

	if quantity <= 0 {
		return nil, "", tokenErrors.ErrInvalidInput("quantity must be a positive integer, got %d", quantity)
	}
	if uc.gateway == nil {
		return nil, "", tokenErrors.ErrGatewayUnavailable()
	}

	now := time.Now()
	orderID := fmt.Sprintf("%s%s_%d", constants.OrderIDPrefixTokens, identity, now.UnixNano())
	amount := quantity * uc.tokenPrice()

	purchase, err := uc.repo.CreatePendingPurchase(ctx, &PendingPurchase{
		Identity:         identity,
		Tier:             tier,
		OrderID:          orderID,
		Quantity:         quantity,
		AmountMinorUnits: amount,
		Status:           constants.PurchaseStatusPending,
		ExpiresAt:        now.Add(uc.pendingTTL()),
	})
	if err != nil {
		uc.log.Errorf("CreatePendingPurchase failed: identity=%s, error=%v", identity, err)
		if uc.metrics != nil {
			uc.metrics.PurchaseTotal.WithLabelValues(constants.PurchaseStatusFailed).Inc()
		}
		return nil, "", tokenErrors.ErrPurchaseCreateFailed(err)
	}
	if uc.metrics != nil {
		uc.metrics.OrderCreateDuration.Observe(time.Since(startTime).Seconds())
		uc.metrics.PurchaseTotal.WithLabelValues(constants.PurchaseStatusPending).Inc()
	}

	var returnURL, notifyURL string
	if uc.conf.Gateway != nil {
		returnURL = uc.conf.Gateway.ReturnURL
		notifyURL = uc.conf.Gateway.NotifyURL
	}

	reply, err := uc.gateway.CreateOrder(ctx, &CreateOrderRequest{
		OrderID:          purchase.OrderID,
		Identity:         identity,
		AmountMinorUnits: amount,
		Subject:          fmt.Sprintf("token purchase x%d", quantity),
		ReturnURL:        returnURL,
		NotifyURL:        notifyURL,
	})
	if err != nil {
		// 下单失败时订单留在 pending，由过期清理收尾
		uc.log.Errorf("gateway CreateOrder failed: order_id=%s, error=%v", purchase.OrderID, err)
		return nil, "", tokenErrors.ErrGatewayUnavailable().WithCause(err)
	}

	uc.log.Infof("purchase order created: order_id=%s, provider_order_id=%s", purchase.OrderID, reply.ProviderOrderID)
	return purchase, reply.PayURL, nil
}

// HandleCallback 处理网关支付回调（可能重复送达）
// 成功回调走幂等入账，失败回调只标记状态；
// 重复的 provider_payment_id 返回成功，让网关停止重试
func (uc *PurchaseUseCase) HandleCallback(ctx context.Context, orderID, providerPaymentID, outcome string) error {
	if orderID == "" || providerPaymentID == "" {
		return tokenErrors.ErrInvalidInput("order_id and provider_payment_id are required")
	}

	if outcome != constants.PaymentOutcomeSuccess {
		uc.log.Warnf("payment failed: order_id=%s, payment_id=%s, outcome=%s", orderID, providerPaymentID, outcome)
		if uc.metrics != nil {
			uc.metrics.PurchaseConfirmTotal.WithLabelValues(constants.ConfirmOutcomeFailed).Inc()
		}
		return uc.repo.MarkPurchaseFailed(ctx, orderID, fmt.Sprintf("gateway reported outcome %q", outcome))
	}

	purchase, err := uc.repo.GetPurchaseByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if purchase == nil {
		return tokenErrors.ErrPurchaseNotFound(orderID)
	}

	// 已入账订单直接返回成功（主防线，省一次事务）
	if purchase.Status == constants.PurchaseStatusCompleted {
		uc.log.Infof("purchase already completed: order_id=%s, payment_id=%s", orderID, providerPaymentID)
		if uc.metrics != nil {
			uc.metrics.PurchaseConfirmTotal.WithLabelValues(constants.ConfirmOutcomeDuplicate).Inc()
		}
		return nil
	}

	limit, err := uc.catalog.Ceiling(purchase.Tier)
	if err != nil {
		return err
	}

	today := time.Now().Format(constants.TimeFormatDay)
	credited, err := uc.repo.ConfirmPurchase(ctx, orderID, providerPaymentID, limit, today)
	if err != nil {
		uc.log.Errorf("ConfirmPurchase failed: order_id=%s, payment_id=%s, error=%v", orderID, providerPaymentID, err)
		return err
	}

	if uc.metrics != nil {
		if credited {
			uc.metrics.PurchaseConfirmTotal.WithLabelValues(constants.ConfirmOutcomeCredited).Inc()
			uc.metrics.CreditTotal.WithLabelValues("purchase").Inc()
			uc.metrics.CreditTokens.WithLabelValues("purchase").Add(float64(purchase.Quantity))
		} else {
			uc.metrics.PurchaseConfirmTotal.WithLabelValues(constants.ConfirmOutcomeDuplicate).Inc()
		}
	}

	uc.log.Infof("purchase confirmed: order_id=%s, payment_id=%s, credited=%v", orderID, providerPaymentID, credited)
	return nil
}

// ExpirePendingPurchases 过期清理（cron 调用）
func (uc *PurchaseUseCase) ExpirePendingPurchases(ctx context.Context) (int64, error) {
	count, err := uc.repo.ExpirePendingPurchases(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		uc.log.Infof("expired %d pending purchases", count)
		if uc.metrics != nil {
			uc.metrics.PurchaseExpiredTotal.Add(float64(count))
		}
	}
	return count, nil
}

// ListPurchaseHistory 获取购买历史
func (uc *PurchaseUseCase) ListPurchaseHistory(ctx context.Context, identity string, page, pageSize int) ([]*PurchaseHistory, int64, error) {
	return uc.repo.ListPurchaseHistory(ctx, identity, page, pageSize)
}
