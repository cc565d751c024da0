package gateway

// Log names emitted by the gateway.
const (
	EventOrderCreated         = "OrderCreated"
	EventOrderFulfilled       = "OrderFulfilled"
	EventOrderRefunded        = "OrderRefunded" // emitted by refund tooling, not by this package
	EventAssetSupportUpdated  = "AssetSupportUpdated"
	EventTreasuryUpdated      = "TreasuryUpdated"
	EventFeeRateUpdated       = "FeeRateUpdated"
	EventRouterUpdated        = "RouterUpdated"
	EventSwapExecuted         = "SwapExecuted"
	EventAdminTransferStarted = "AdminTransferStarted"
	EventAdminTransferred     = "AdminTransferred"
)
