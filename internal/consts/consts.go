package consts

const (
	// ContextKeySellerID is the gin context key holding the authenticated seller.
	ContextKeySellerID = "seller_id"

	HeaderAdminKey = "X-Admin-Key"

	JobNameExpirePaymentLinks = "payment_link_expiry"
	JobNameUptimeHeartbeat    = "uptime_heartbeat"
	JobNameIndexDeposits      = "deposit_indexer"
)
