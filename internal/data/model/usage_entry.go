package model

import (
	"time"
)

// UsageEntry 用量流水表（仅追加，审计用途）
type UsageEntry struct {
	UsageEntryID   string    `gorm:"primaryKey;type:varchar(36)"`
	Identity       string    `gorm:"type:varchar(64);not null;index:idx_identity_date,priority:1"`
	Tier           string    `gorm:"type:varchar(16);not null"`
	Cost           int64     `gorm:"not null"`
	FromAllocation int64     `gorm:"not null;default:0"`
	FromPurchased  int64     `gorm:"not null;default:0"`
	Feature        string    `gorm:"type:varchar(32);not null"`
	OccurredAt     time.Time `gorm:"not null;index:idx_identity_date,priority:2"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (UsageEntry) TableName() string {
	return "usage_entry"
}
