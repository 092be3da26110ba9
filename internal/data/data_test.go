package data

import (
	"fmt"
	"sync/atomic"
	"testing"

	"token-service/internal/data/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBSeq int64

// newTestData 构造仅带内存数据库的 Data（无 Redis / MQ，走降级路径）
func newTestData(t *testing.T) *Data {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	// 内存库共享同一连接，避免并发写触发 busy 错误
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.TokenBalance{},
		&model.PendingPurchase{},
		&model.PurchaseHistory{},
		&model.UsageEntry{},
	))

	t.Cleanup(func() { sqlDB.Close() })
	return &Data{db: db}
}
