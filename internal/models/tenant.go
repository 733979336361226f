package models

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// DefaultTier is used when the tenant row or the tier cache is unavailable.
const DefaultTier = TierPro

type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier Tier   `json:"tier"`
}
