package data

import (
	"context"
	"fmt"
	"time"

	"token-service/internal/biz"
	"token-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageRepo 用量流水相关数据访问
type usageRepo struct {
	data *Data
	log  *log.Helper
}

// NewUsageRepo 创建用量流水 repo（返回 biz.UsageRepo 接口）
func NewUsageRepo(data *Data, logger log.Logger) biz.UsageRepo {
	return &usageRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// AppendUsage 追加一条用量流水
func (r *usageRepo) AppendUsage(ctx context.Context, entry *biz.UsageEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	m := model.UsageEntry{
		UsageEntryID:   id,
		Identity:       entry.Identity,
		Tier:           entry.Tier,
		Cost:           entry.Cost,
		FromAllocation: entry.FromAllocation,
		FromPurchased:  entry.FromPurchased,
		Feature:        entry.Feature,
		OccurredAt:     entry.OccurredAt,
	}
	return r.data.db.WithContext(ctx).Create(&m).Error
}

// BatchAppendUsage 批量落库（MQ 消费端调用）
func (r *usageRepo) BatchAppendUsage(ctx context.Context, events []*biz.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	models := make([]model.UsageEntry, 0, len(events))
	for _, event := range events {
		id := event.EntryID
		if id == "" {
			id = uuid.New().String()
		}
		models = append(models, model.UsageEntry{
			UsageEntryID:   id,
			Identity:       event.Identity,
			Tier:           event.Tier,
			Cost:           event.Cost,
			FromAllocation: event.FromAllocation,
			FromPurchased:  event.FromPurchased,
			Feature:        event.Feature,
			OccurredAt:     event.OccurredAt,
		})
	}

	// MQ 是至少一次送达，重复 entry_id 直接跳过
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
	})
}

// ListUsage 获取用量流水列表
func (r *usageRepo) ListUsage(ctx context.Context, identity string, page, pageSize int) ([]*biz.UsageEntry, int64, error) {
	var models []model.UsageEntry
	var total int64

	offset := (page - 1) * pageSize
	db := r.data.db.WithContext(ctx).Model(&model.UsageEntry{}).Where("identity = ?", identity)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Offset(offset).Limit(pageSize).Order("occurred_at DESC").Find(&models).Error; err != nil {
		return nil, 0, err
	}

	var entries []*biz.UsageEntry
	for _, m := range models {
		entries = append(entries, &biz.UsageEntry{
			ID:             m.UsageEntryID,
			Identity:       m.Identity,
			Tier:           m.Tier,
			Cost:           m.Cost,
			FromAllocation: m.FromAllocation,
			FromPurchased:  m.FromPurchased,
			Feature:        m.Feature,
			OccurredAt:     m.OccurredAt,
		})
	}
	return entries, total, nil
}

// GetUsageSummary 当前周期（当日零点起）按功能汇总
func (r *usageRepo) GetUsageSummary(ctx context.Context, identity string) (*biz.UsageSummary, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var featureStats []struct {
		Feature        string
		Count          int64
		TotalCost      int64
		FromAllocation int64
		FromPurchased  int64
	}

	if err := r.data.db.WithContext(ctx).Model(&model.UsageEntry{}).
		Where("identity = ? AND occurred_at >= ? AND occurred_at < ?", identity, dayStart, dayEnd).
		Select(
			"feature",
			"COUNT(*) as count",
			"SUM(cost) as total_cost",
			"SUM(from_allocation) as from_allocation",
			"SUM(from_purchased) as from_purchased",
		).
		Group("feature").
		Scan(&featureStats).Error; err != nil {
		return nil, fmt.Errorf("get usage summary failed: %w", err)
	}

	summary := &biz.UsageSummary{
		Identity: identity,
		Features: make([]*biz.FeatureUsage, 0, len(featureStats)),
	}
	for _, s := range featureStats {
		summary.Features = append(summary.Features, &biz.FeatureUsage{
			Feature:        s.Feature,
			Count:          s.Count,
			TotalCost:      s.TotalCost,
			FromAllocation: s.FromAllocation,
			FromPurchased:  s.FromPurchased,
		})
		summary.TotalCost += s.TotalCost
	}
	return summary, nil
}
