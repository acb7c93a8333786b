package ledger

import (
	"time"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/types"
)

// Customer is keyed by the channel identity supplied by the front-end.
// Credit never goes below zero.
type Customer struct {
	types.Entity
	ID               string      `json:"id"`
	DisplayName      string      `json:"display_name"`
	Credit           types.Money `json:"credit"`
	ReferralCode     string      `json:"referral_code"`
	ReferredBy       string      `json:"referred_by,omitempty"`
	ReferralsGranted int64       `json:"referrals_granted"`
	TotalSpent       types.Money `json:"total_spent"`
}

// Referral links a referred customer to its referrer. A customer has at most
// one referral row; BonusApplied flips false to true exactly once.
type Referral struct {
	ID           id.ReferralID `json:"id"`
	ReferrerID   string        `json:"referrer_id"`
	ReferredID   string        `json:"referred_id"`
	BonusAmount  types.Money   `json:"bonus_amount"`
	BonusApplied bool          `json:"bonus_applied"`
	BonusOrderID id.OrderID    `json:"bonus_order_id,omitempty"`
	GrantedAt    *time.Time    `json:"granted_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// BonusGrant describes a referral bonus that was just credited.
type BonusGrant struct {
	ReferralID id.ReferralID `json:"referral_id"`
	ReferrerID string        `json:"referrer_id"`
	ReferredID string        `json:"referred_id"`
	Amount     types.Money   `json:"amount"`
	OrderID    id.OrderID    `json:"order_id,omitempty"`
}
