package ledger

import (
	"context"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/types"
)

type Store interface {
	// Create inserts the customer and, when ref is non-nil, its referral row
	// in one atomic unit.
	Create(ctx context.Context, c *Customer, ref *Referral) error
	Get(ctx context.Context, customerID string) (*Customer, error)
	GetByReferralCode(ctx context.Context, code string) (*Customer, error)
	GetReferral(ctx context.Context, referredID string) (*Referral, error)

	// Reserve decrements credit only if the balance covers amount.
	Reserve(ctx context.Context, customerID string, amount types.Money) error
	Refund(ctx context.Context, customerID string, amount types.Money) error

	// GrantBonus flips the referral flag of referredID and credits the
	// referrer. It returns nil when there is no referral or it was already
	// applied.
	GrantBonus(ctx context.Context, referredID string, orderID id.OrderID) (*BonusGrant, error)
}
