package data

import (
	"context"
	"errors"
	"time"

	"token-service/internal/biz"
	"token-service/internal/data/model"
	tokenErrors "token-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// purchaseRepo 购买订单相关数据访问
type purchaseRepo struct {
	data *Data
	log  *log.Helper
}

// NewPurchaseRepo 创建购买订单 repo（返回 biz.PurchaseRepo 接口）
func NewPurchaseRepo(data *Data, logger log.Logger) biz.PurchaseRepo {
	return &purchaseRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreatePendingPurchase 创建待支付订单
// 同 order_id 已存在时返回已有记录，网关跳转前的重试不会产生重复订单
func (r *purchaseRepo) CreatePendingPurchase(ctx context.Context, purchase *biz.PendingPurchase) (*biz.PendingPurchase, error) {
	m := model.PendingPurchase{
		PurchaseID:       uuid.New().String(),
		Identity:         purchase.Identity,
		Tier:             purchase.Tier,
		OrderID:          purchase.OrderID,
		Quantity:         purchase.Quantity,
		AmountMinorUnits: purchase.AmountMinorUnits,
		Status:           model.PurchaseStatusPending,
		ExpiresAt:        purchase.ExpiresAt,
	}
	if err := r.data.db.WithContext(ctx).Create(&m).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		var existing model.PendingPurchase
		if err := r.data.db.WithContext(ctx).
			Where("order_id = ? AND identity = ?", purchase.OrderID, purchase.Identity).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return toPurchaseDomain(&existing), nil
	}
	return toPurchaseDomain(&m), nil
}

// GetPurchaseByOrderID 通过业务订单号查询订单
func (r *purchaseRepo) GetPurchaseByOrderID(ctx context.Context, orderID string) (*biz.PendingPurchase, error) {
	var m model.PendingPurchase
	if err := r.data.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toPurchaseDomain(&m), nil
}

// ConfirmPurchase 确认入账（幂等）
// 同一事务内：写购买历史（靠 provider_payment_id 唯一约束挡重复）、
// 购买池入账、订单置为 completed。三者要么全部生效要么全部回滚。
func (r *purchaseRepo) ConfirmPurchase(ctx context.Context, orderID, providerPaymentID string, limit biz.PlanLimit, today string) (bool, error) {
	credited := false
	var committed *model.TokenBalance

	balances := &balanceRepo{data: r.data, log: r.log}

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁定订单记录
		var order model.PendingPurchase
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&order).Error; err != nil {
			return err
		}

		// 2. 已入账的订单直接成功返回（幂等）
		if order.Status == model.PurchaseStatusCompleted {
			r.log.Infof("purchase already completed: order_id=%s", orderID)
			return nil
		}

		// 3. 写购买历史：插入冲突即该支付流水号已入账过，跳过入账
		history := model.PurchaseHistory{
			Identity:          order.Identity,
			OrderID:           order.OrderID,
			QuantityCredited:  order.Quantity,
			AmountMinorUnits:  order.AmountMinorUnits,
			ProviderPaymentID: providerPaymentID,
		}
		if err := tx.Create(&history).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
			r.log.Infof("payment already credited: order_id=%s, payment_id=%s", orderID, providerPaymentID)
		} else {
			// 4. 首次确认，购买池入账
			balance, err := balances.getOrCreateLocked(tx, order.Identity, order.Tier, limit, today)
			if err != nil {
				return err
			}
			if err := tx.Model(balance).
				Update("purchased_pool", gorm.Expr("purchased_pool + ?", order.Quantity)).Error; err != nil {
				return err
			}
			balance.PurchasedPool += order.Quantity
			committed = balance
			credited = true
		}

		// 5. 订单置为 completed；支付流水号只在本次入账时写入，
		// 重复流水号写到第二个订单上会撞 pending_purchase 自己的唯一索引
		updates := map[string]interface{}{
			"status": model.PurchaseStatusCompleted,
		}
		if credited {
			updates["provider_payment_id"] = providerPaymentID
		}
		return tx.Model(&order).Updates(updates).Error
	})
	if err != nil {
		return false, err
	}

	if committed != nil {
		balances.refreshBalanceCache(committed)
	}
	return credited, nil
}

// MarkPurchaseFailed 标记订单失败（已入账的订单不回退）
// 未知订单返回 PURCHASE_NOT_FOUND，错投的回调不能装作处理成功
func (r *purchaseRepo) MarkPurchaseFailed(ctx context.Context, orderID, reason string) error {
	res := r.data.db.WithContext(ctx).Model(&model.PendingPurchase{}).
		Where("order_id = ? AND status <> ?", orderID, model.PurchaseStatusCompleted).
		Updates(map[string]interface{}{
			"status":         model.PurchaseStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.data.db.WithContext(ctx).Model(&model.PendingPurchase{}).
			Where("order_id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return tokenErrors.ErrPurchaseNotFound(orderID)
		}
	}
	return nil
}

// ExpirePendingPurchases 过期清理，只改状态不动余额
func (r *purchaseRepo) ExpirePendingPurchases(ctx context.Context, now time.Time) (int64, error) {
	res := r.data.db.WithContext(ctx).Model(&model.PendingPurchase{}).
		Where("status = ? AND expires_at < ?", model.PurchaseStatusPending, now).
		Update("status", model.PurchaseStatusExpired)
	return res.RowsAffected, res.Error
}

// ListPurchaseHistory 获取购买历史列表
func (r *purchaseRepo) ListPurchaseHistory(ctx context.Context, identity string, page, pageSize int) ([]*biz.PurchaseHistory, int64, error) {
	var models []model.PurchaseHistory
	var total int64

	offset := (page - 1) * pageSize
	db := r.data.db.WithContext(ctx).Model(&model.PurchaseHistory{}).Where("identity = ?", identity)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(pageSize).Order("receipt_no DESC").Find(&models).Error; err != nil {
		return nil, 0, err
	}

	var records []*biz.PurchaseHistory
	for _, m := range models {
		records = append(records, &biz.PurchaseHistory{
			ReceiptNo:         m.ReceiptNo,
			Identity:          m.Identity,
			OrderID:           m.OrderID,
			QuantityCredited:  m.QuantityCredited,
			AmountMinorUnits:  m.AmountMinorUnits,
			ProviderPaymentID: m.ProviderPaymentID,
			CompletedAt:       m.CompletedAt,
		})
	}
	return records, total, nil
}

func toPurchaseDomain(m *model.PendingPurchase) *biz.PendingPurchase {
	p := &biz.PendingPurchase{
		PurchaseID:       m.PurchaseID,
		Identity:         m.Identity,
		Tier:             m.Tier,
		OrderID:          m.OrderID,
		Quantity:         m.Quantity,
		AmountMinorUnits: m.AmountMinorUnits,
		Status:           m.Status,
		FailureReason:    m.FailureReason,
		CreatedAt:        m.CreatedAt,
		ExpiresAt:        m.ExpiresAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ProviderPaymentID != nil {
		p.ProviderPaymentID = *m.ProviderPaymentID
	}
	return p
}
