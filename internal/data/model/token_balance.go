package model

import (
	"time"
)

// TokenBalance 代币余额表（身份×档位 唯一）
type TokenBalance struct {
	TokenBalanceID     string    `gorm:"primaryKey;type:varchar(36)"`
	Identity           string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_identity_tier,priority:1"`
	Tier               string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_identity_tier,priority:2"`
	AllocationPool     int64     `gorm:"not null;default:0"`
	PurchasedPool      int64     `gorm:"not null;default:0"`
	AllocationCeiling  int64     `gorm:"not null;default:0"` // -1 表示不限量
	ConsumedThisPeriod int64     `gorm:"not null;default:0"`
	LastReplenishedOn  string    `gorm:"type:varchar(10);not null"` // 2024-11-30
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (TokenBalance) TableName() string {
	return "token_balance"
}
