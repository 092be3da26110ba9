package server

import (
	"context"
	"encoding/json"

	"token-service/internal/biz"
	"token-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费用量事件并批量落库
type MQConsumerServer struct {
	c       rocketmq.PushConsumer
	repo    biz.UsageRepo
	conf    *conf.Bootstrap
	log     *log.Helper
	enabled bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者服务
func NewMQConsumerServer(c *conf.Bootstrap, repo biz.UsageRepo, logger log.Logger) *MQConsumerServer {
	logHelper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: logHelper}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(c.Data.Rocketmq.RetryTimes),
		consumer.WithConsumeMessageBatchMaxSize(100),
	)
	if err != nil {
		logHelper.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: logHelper}
	}

	return &MQConsumerServer{
		c:       r,
		repo:    repo,
		conf:    c,
		log:     logHelper,
		enabled: true,
	}
}

// Start 启动消费者
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Info("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	topic := s.conf.Data.Rocketmq.Topic
	s.log.Infof("starting MQConsumerServer, topic: %s", topic)

	if err := s.c.Subscribe(topic, consumer.MessageSelector{}, s.handler); err != nil {
		// 不拦启动：MQ 不可用时用量流水已在生产端直写降级
		s.log.Errorf("failed to subscribe to topic %s: %v", topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("failed to start rocketmq consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费者
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	if len(msgs) == 0 {
		return consumer.ConsumeSuccess, nil
	}

	var events []*biz.UsageEvent
	for _, msg := range msgs {
		var event biz.UsageEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("unmarshal usage event failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		events = append(events, &event)
	}

	if len(events) > 0 {
		if err := s.repo.BatchAppendUsage(ctx, events); err != nil {
			s.log.Errorf("BatchAppendUsage failed: %v", err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
