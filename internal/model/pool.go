package model

// PoolState is the backend's risk color for a monitored pool.
type PoolState string

const (
	PoolGreen  PoolState = "Green"
	PoolYellow PoolState = "Yellow"
	PoolRed    PoolState = "Red"
)

// PoolMetrics are the latest pool observations; nil means unavailable.
type PoolMetrics struct {
	TWAP         *float64 `json:"twap"`
	ReserveRatio *float64 `json:"reserveRatio"`
	UpdatedAt    *string  `json:"updatedAt"`
}

// PoolSummary is a monitored pool returned by GET /v1/pools.
type PoolSummary struct {
	PoolID  string      `json:"poolId"`
	ChainID uint64      `json:"chainId"`
	Name    string      `json:"name"`
	Address string      `json:"address"`
	RiskID  string      `json:"riskId"`
	State   PoolState   `json:"state"`
	Metrics PoolMetrics `json:"metrics"`
}

// ReserveOverview summarizes reserve pool health.
type ReserveOverview struct {
	NavUSD                float64 `json:"navUSD"`
	CashRatio             float64 `json:"cashRatio"`
	PendingClaimsUSD      float64 `json:"pendingClaimsUSD"`
	PendingRedemptionsUSD float64 `json:"pendingRedemptionsUSD"`
	LgusdPricePerShare    float64 `json:"lgusdPricePerShare"`
	UpdatedAt             string  `json:"updatedAt"`
}

// Health buckets the cash ratio.
func (r ReserveOverview) Health() string {
	switch {
	case r.CashRatio > 0.3:
		return "Healthy"
	case r.CashRatio > 0.15:
		return "Moderate"
	default:
		return "Low"
	}
}

// AvailableForClaims is the NAV share held as cash.
func (r ReserveOverview) AvailableForClaims() float64 {
	return r.NavUSD * r.CashRatio
}

// TotalObligations sums pending claims and redemptions.
func (r ReserveOverview) TotalObligations() float64 {
	return r.PendingClaimsUSD + r.PendingRedemptionsUSD
}

// APIError is the backend's error body; every field is optional.
type APIError struct {
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"statusCode,omitempty"`
	Code       string      `json:"code,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}
