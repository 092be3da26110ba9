package model

import (
	"time"
)

// PurchaseHistory 购买历史表（永久记录）
// provider_payment_id 的唯一约束是幂等入账的根基：
// 插入冲突即说明该笔支付已经入账过
type PurchaseHistory struct {
	// ReceiptNo 自增主键即顺序回执号（对用户展示）
	ReceiptNo         uint64    `gorm:"primaryKey;autoIncrement"`
	Identity          string    `gorm:"type:varchar(64);not null;index"`
	OrderID           string    `gorm:"type:varchar(96);not null"`
	QuantityCredited  int64     `gorm:"not null"`
	AmountMinorUnits  int64     `gorm:"not null"`
	ProviderPaymentID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CompletedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PurchaseHistory) TableName() string {
	return "purchase_history"
}
