package data

import (
	"context"
	"encoding/json"
	"time"

	"token-service/internal/biz"
	"token-service/internal/conf"
	"token-service/internal/metrics"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// usageSink 用量事件发送端：优先投递 MQ，不可用时直写 DB 降级
// 任何失败只记日志与指标，不回传给调用方
type usageSink struct {
	data    *Data
	repo    biz.UsageRepo
	topic   string
	log     *log.Helper
	metrics *metrics.TokenMetrics
}

// NewUsageSink 创建用量事件接收方
func NewUsageSink(c *conf.Bootstrap, data *Data, repo biz.UsageRepo, logger log.Logger) biz.UsageSink {
	topic := ""
	if c.Data != nil && c.Data.Rocketmq != nil {
		topic = c.Data.Rocketmq.Topic
	}
	return &usageSink{
		data:    data,
		repo:    repo,
		topic:   topic,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Record 投递一条用量事件（尽力而为）
func (s *usageSink) Record(ctx context.Context, event *biz.UsageEvent) {
	if s.data.mq != nil && s.topic != "" {
		body, err := json.Marshal(event)
		if err != nil {
			s.log.Errorf("marshal usage event error: %v, entry_id: %s", err, event.EntryID)
			s.metrics.UsageAppendFailedTotal.WithLabelValues("marshal").Inc()
			return
		}
		msg := primitive.NewMessage(s.topic, body)
		msg.WithKeys([]string{event.EntryID})
		if err := s.data.mq.SendOneWay(ctx, msg); err != nil {
			s.log.Errorf("send usage event to mq error: %v, entry_id: %s", err, event.EntryID)
			s.metrics.UsageAppendFailedTotal.WithLabelValues("mq").Inc()
			// 投递失败转直写
			s.appendDirect(event)
		}
		return
	}
	s.appendDirect(event)
}

// appendDirect MQ 不可用时的直写降级，单独超时避免拖慢扣减路径
func (s *usageSink) appendDirect(event *biz.UsageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	entry := &biz.UsageEntry{
		ID:             event.EntryID,
		Identity:       event.Identity,
		Tier:           event.Tier,
		Cost:           event.Cost,
		FromAllocation: event.FromAllocation,
		FromPurchased:  event.FromPurchased,
		Feature:        event.Feature,
		OccurredAt:     event.OccurredAt,
	}
	if err := s.repo.AppendUsage(ctx, entry); err != nil {
		s.log.Errorf("append usage entry error: %v, entry_id: %s", err, event.EntryID)
		s.metrics.UsageAppendFailedTotal.WithLabelValues("db").Inc()
	}
}
