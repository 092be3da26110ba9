package biz

import "context"

// Caller 已解析的调用方
type Caller struct {
	// Identity 稳定标识：账号ID或匿名会话ID
	Identity string
	// Tier 订阅档位字符串
	Tier string
}

// IdentityResolver 身份与档位解析器
// 本服务信任解析结果，不自行做鉴权
type IdentityResolver interface {
	Resolve(ctx context.Context) (*Caller, error)
}
