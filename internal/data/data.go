package data

import (
	"fmt"

	"token-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewMQProducer,
	NewData,
	NewBalanceRepo,
	NewPurchaseRepo,
	NewUsageRepo,
	NewUsageSink,
	NewPaymentGatewayClient,
	NewIdentityResolver,
)

// Data 数据层结构体
// rdb 与 mq 允许为 nil：缓存与异步通道是可选加速，DB 是权威
type Data struct {
	db   *gorm.DB
	rdb  *redis.Client
	mq   rocketmq.Producer
	sync *redsync.Redsync
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	// TranslateError: 唯一约束冲突要能用 gorm.ErrDuplicatedKey 判别
	db, err := gorm.Open(mysql.Open(c.Data.Database.Source), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		ReadTimeout:  conf.ParseDuration(c.Data.Redis.ReadTimeout, 0),
		WriteTimeout: conf.ParseDuration(c.Data.Redis.WriteTimeout, 0),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewMQProducer 创建 RocketMQ 生产者（未启用时返回 nil，走降级路径）
func NewMQProducer(c *conf.Bootstrap, logger log.Logger) (rocketmq.Producer, func(), error) {
	logHelper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return nil, func() {}, nil
	}

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		producer.WithGroupName(c.Data.Rocketmq.GroupName),
		producer.WithRetry(c.Data.Rocketmq.RetryTimes),
	)
	if err != nil {
		logHelper.Errorf("init rocketmq producer error: %v", err)
		// 生产者起不来不拦启动，用量流水走直写降级
		return nil, func() {}, nil
	}
	if err := p.Start(); err != nil {
		logHelper.Errorf("start rocketmq producer error: %v", err)
		return nil, func() {}, nil
	}

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			logHelper.Errorf("shutdown rocketmq producer error: %v", err)
		}
	}
	return p, cleanup, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client, mq rocketmq.Producer) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.NewHelper(logger).Errorf("failed to close redis: %v", err)
			}
		}
	}

	d := &Data{
		db:  db,
		rdb: rdb,
		mq:  mq,
	}
	if rdb != nil {
		d.sync = redsync.New(goredis.NewPool(rdb))
	}
	return d, cleanup, nil
}
