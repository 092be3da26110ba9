package errors

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// Token Service 错误定义（基于 kratos errors）
// Reason 格式：模块_错误，HTTP 状态码按语义映射
//
// 模块划分：
//   BALANCE: 余额模块
//   DEBIT:   扣减模块
//   CREDIT:  入账模块
//   PURCHASE: 购买模块
//   PLAN:    套餐目录模块

// 错误 Reason 常量
const (
	// ReasonInvalidInput 入参非法（非正数的 cost/quantity 等），调用方错误，不重试
	ReasonInvalidInput = "INVALID_INPUT"
	// ReasonInsufficientBalance 余额不足，属于正常业务结果
	ReasonInsufficientBalance = "BALANCE_INSUFFICIENT"
	// ReasonConcurrentModification 并发冲突，可重试
	ReasonConcurrentModification = "DEBIT_CONCURRENT_MODIFICATION"
	// ReasonDebitLockFailed 获取扣减锁失败，可重试
	ReasonDebitLockFailed = "DEBIT_LOCK_FAILED"
	// ReasonPlanCatalogUnavailable 套餐目录不可用（区别于档位未知的降级）
	ReasonPlanCatalogUnavailable = "PLAN_CATALOG_UNAVAILABLE"
	// ReasonIdentityUnresolved 无法解析调用方身份
	ReasonIdentityUnresolved = "IDENTITY_UNRESOLVED"
	// ReasonPurchaseNotFound 购买订单不存在
	ReasonPurchaseNotFound = "PURCHASE_NOT_FOUND"
	// ReasonGatewayUnavailable 支付网关不可用
	ReasonGatewayUnavailable = "PURCHASE_GATEWAY_UNAVAILABLE"
	// ReasonPurchaseCreateFailed 创建购买订单失败
	ReasonPurchaseCreateFailed = "PURCHASE_CREATE_FAILED"
)

// ErrInvalidInput 入参非法
func ErrInvalidInput(format string, args ...interface{}) *errors.Error {
	return errors.Newf(400, ReasonInvalidInput, format, args...)
}

// ErrInsufficientBalance 余额不足
func ErrInsufficientBalance() *errors.Error {
	return errors.New(402, ReasonInsufficientBalance, "not enough tokens")
}

// ErrConcurrentModification 并发冲突（重试后仍失败时返回）
func ErrConcurrentModification() *errors.Error {
	return errors.New(409, ReasonConcurrentModification, "balance was modified concurrently, retry")
}

// ErrDebitLockFailed 获取扣减锁失败
func ErrDebitLockFailed() *errors.Error {
	return errors.New(503, ReasonDebitLockFailed, "failed to acquire debit lock")
}

// ErrPlanCatalogUnavailable 套餐目录不可用
func ErrPlanCatalogUnavailable() *errors.Error {
	return errors.New(503, ReasonPlanCatalogUnavailable, "plan catalog is unavailable")
}

// ErrIdentityUnresolved 身份解析失败
func ErrIdentityUnresolved() *errors.Error {
	return errors.New(400, ReasonIdentityUnresolved, "caller identity could not be resolved")
}

// ErrPurchaseNotFound 购买订单不存在
func ErrPurchaseNotFound(orderID string) *errors.Error {
	return errors.Newf(404, ReasonPurchaseNotFound, "purchase order %s not found", orderID)
}

// ErrGatewayUnavailable 支付网关不可用
func ErrGatewayUnavailable() *errors.Error {
	return errors.New(503, ReasonGatewayUnavailable, "payment gateway is unavailable")
}

// ErrPurchaseCreateFailed 创建购买订单失败
func ErrPurchaseCreateFailed(err error) *errors.Error {
	return errors.New(500, ReasonPurchaseCreateFailed, "failed to create purchase order").WithCause(err)
}

// IsInsufficientBalance 是否余额不足
func IsInsufficientBalance(err error) bool {
	return errors.Reason(err) == ReasonInsufficientBalance
}

// IsConcurrentModification 是否并发冲突
func IsConcurrentModification(err error) bool {
	return errors.Reason(err) == ReasonConcurrentModification
}

// IsInvalidInput 是否入参非法
func IsInvalidInput(err error) bool {
	return errors.Reason(err) == ReasonInvalidInput
}

// IsPurchaseNotFound 是否订单不存在
func IsPurchaseNotFound(err error) bool {
	return errors.Reason(err) == ReasonPurchaseNotFound
}
