package model

import (
	"time"

	"token-service/internal/constants"
)

// 购买订单状态常量（引用 constants 包中的常量，保持一致性）
const (
	PurchaseStatusPending    = constants.PurchaseStatusPending    // 待支付
	PurchaseStatusProcessing = constants.PurchaseStatusProcessing // 支付确认中
	PurchaseStatusCompleted  = constants.PurchaseStatusCompleted  // 支付成功并已入账
	PurchaseStatusFailed     = constants.PurchaseStatusFailed     // 支付失败
	PurchaseStatusExpired    = constants.PurchaseStatusExpired    // 超时未支付
)

// PendingPurchase 待支付订单表（用于幂等性保证）
type PendingPurchase struct {
	PurchaseID       string `gorm:"primaryKey;type:varchar(36)"`
	Identity         string `gorm:"type:varchar(64);not null;index"`
	Tier             string `gorm:"type:varchar(16);not null"`
	OrderID          string `gorm:"type:varchar(96);not null;uniqueIndex"`
	Quantity         int64  `gorm:"not null"`
	AmountMinorUnits int64  `gorm:"not null"`
	Status           string `gorm:"type:varchar(16);not null;default:'pending'"`
	// ProviderPaymentID 网关支付流水号；确认前为 NULL，写入后全局唯一
	ProviderPaymentID *string   `gorm:"type:varchar(64);uniqueIndex"`
	FailureReason     string    `gorm:"type:varchar(255)"`
	ExpiresAt         time.Time `gorm:"not null;index"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PendingPurchase) TableName() string {
	return "pending_purchase"
}
