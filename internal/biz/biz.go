package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPlanCatalog,
	NewUsageUseCase,
	NewPurchaseUseCase,
	NewMeterUseCase, // 组合 UseCase
)
