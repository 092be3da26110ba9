package constants

// 时间格式常量
const (
	// TimeFormatDay 日期格式 (YYYY-MM-DD)，用作补给周期边界
	TimeFormatDay = "2006-01-02"
)

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "token:balance:"
	// RedisKeyDebitLock 扣减锁 key 前缀
	RedisKeyDebitLock = "token:debit:lock:"
)

// 订阅档位常量
const (
	// TierFree 免费档
	TierFree = "free"
	// TierStandard 标准档
	TierStandard = "standard"
	// TierPlus 加强档
	TierPlus = "plus"
	// TierPremium 高级档（不限量）
	TierPremium = "premium"
)

// CeilingUnlimited 配置中表示"不限量"的哨兵值
const CeilingUnlimited = -1

// 购买订单状态常量
const (
	// PurchaseStatusPending 待支付
	PurchaseStatusPending = "pending"
	// PurchaseStatusProcessing 支付确认中
	PurchaseStatusProcessing = "processing"
	// PurchaseStatusCompleted 支付成功并已入账
	PurchaseStatusCompleted = "completed"
	// PurchaseStatusFailed 支付失败
	PurchaseStatusFailed = "failed"
	// PurchaseStatusExpired 超时未支付
	PurchaseStatusExpired = "expired"
)

// 支付回调结果常量
const (
	// PaymentOutcomeSuccess 支付成功
	PaymentOutcomeSuccess = "success"
	// PaymentOutcomeFailure 支付失败
	PaymentOutcomeFailure = "failure"
)

// 扣减结果常量（用于指标）
const (
	// DebitResultSuccess 扣减成功
	DebitResultSuccess = "success"
	// DebitResultInsufficient 余额不足
	DebitResultInsufficient = "insufficient"
	// DebitResultError 系统错误
	DebitResultError = "error"
)

// 代币池常量（用于指标与流水）
const (
	// PoolAllocation 周期补给池
	PoolAllocation = "allocation"
	// PoolPurchased 购买池
	PoolPurchased = "purchased"
)

// 确认结果常量（用于指标）
const (
	// ConfirmOutcomeCredited 首次确认，已入账
	ConfirmOutcomeCredited = "credited"
	// ConfirmOutcomeDuplicate 重复回调，幂等跳过
	ConfirmOutcomeDuplicate = "duplicate"
	// ConfirmOutcomeFailed 网关上报失败
	ConfirmOutcomeFailed = "failed"
)

// 锁结果常量
const (
	// LockResultSuccess 加锁成功
	LockResultSuccess = "success"
	// LockResultFailed 加锁失败
	LockResultFailed = "failed"
)

// 订单ID前缀常量
const (
	// OrderIDPrefixTokens 代币购买订单ID前缀
	OrderIDPrefixTokens = "tokens_"
)

// 身份解析请求头
const (
	// HeaderIdentity 身份标识（账号ID或匿名会话ID），由上游网关注入
	HeaderIdentity = "X-Identity"
	// HeaderTier 订阅档位，由上游网关注入
	HeaderTier = "X-Tier"
)
