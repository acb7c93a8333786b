package topup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/types"
)

const maxReferralCodeAttempts = 5

// ──────────────────────────────────────────────────
// Customers and referrals
// ──────────────────────────────────────────────────

// RegisterCustomer creates the customer on first contact and returns it.
// An existing customer is returned unchanged. A known referral code that is
// not the customer's own links the customer to its referrer; any other code
// is ignored.
func (e *Engine) RegisterCustomer(ctx context.Context, customerID, displayName, referredByCode string) (*ledger.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ValidationError{Field: "customer_id", Message: "is required"}
	}

	existing, err := e.store.GetCustomer(ctx, customerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	referrer, err := e.resolveReferrer(ctx, customerID, referredByCode)
	if err != nil {
		return nil, err
	}

	for range maxReferralCodeAttempts {
		c := &ledger.Customer{
			Entity:       types.NewEntity(),
			ID:           customerID,
			DisplayName:  strings.TrimSpace(displayName),
			Credit:       types.Zero(e.currency),
			ReferralCode: ledger.NewReferralCode(),
			TotalSpent:   types.Zero(e.currency),
		}

		var ref *ledger.Referral
		if referrer != nil {
			c.ReferredBy = referrer.ID
			ref = &ledger.Referral{
				ID:          id.NewReferralID(),
				ReferrerID:  referrer.ID,
				ReferredID:  customerID,
				BonusAmount: types.New(e.referralBonus, e.currency),
				CreatedAt:   c.CreatedAt,
			}
		}

		err := e.store.CreateCustomer(ctx, c, ref)
		if err == nil {
			e.logger.InfoContext(ctx, "customer registered",
				"customer_id", c.ID,
				"referred_by", c.ReferredBy,
			)
			e.plugins.EmitCustomerRegistered(ctx, c, ref)
			return c, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}

		// Either the other front-end registered the customer first or the
		// referral code collided.
		if existing, gerr := e.store.GetCustomer(ctx, customerID); gerr == nil {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("topup: generate unique referral code for %s: %w", customerID, ErrAlreadyExists)
}

func (e *Engine) resolveReferrer(ctx context.Context, customerID, code string) (*ledger.Customer, error) {
	code = ledger.NormalizeReferralCode(code)
	if code == "" {
		return nil, nil
	}

	referrer, err := e.store.GetCustomerByReferralCode(ctx, code)
	if errors.Is(err, ErrCustomerNotFound) {
		e.logger.DebugContext(ctx, "unknown referral code ignored", "customer_id", customerID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if referrer.ID == customerID {
		return nil, nil
	}
	return referrer, nil
}

// GetCustomer retrieves a customer by channel identity.
func (e *Engine) GetCustomer(ctx context.Context, customerID string) (*ledger.Customer, error) {
	return e.store.GetCustomer(ctx, customerID)
}

// GetReferral returns the referral row where customerID is the referred party.
func (e *Engine) GetReferral(ctx context.Context, customerID string) (*ledger.Referral, error) {
	return e.store.GetReferral(ctx, customerID)
}

// GetCreditBalance returns the customer's available credit.
func (e *Engine) GetCreditBalance(ctx context.Context, customerID string) (types.Money, error) {
	c, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return types.Money{}, err
	}
	return c.Credit, nil
}

// ──────────────────────────────────────────────────
// Ledger operations
// ──────────────────────────────────────────────────

// Reserve takes amount from the customer's credit if the balance covers it.
func (e *Engine) Reserve(ctx context.Context, customerID string, amount types.Money) error {
	if err := e.validateAmount(amount); err != nil {
		return err
	}
	return e.store.Reserve(ctx, customerID, amount)
}

// Refund returns amount to the customer's credit.
func (e *Engine) Refund(ctx context.Context, customerID string, amount types.Money) error {
	if err := e.validateAmount(amount); err != nil {
		return err
	}
	return e.store.Refund(ctx, customerID, amount)
}

// GrantReferralBonus credits the customer's referrer once. It returns nil
// when the customer has no referral or the bonus was already granted.
// Completing an order grants the bonus automatically.
func (e *Engine) GrantReferralBonus(ctx context.Context, customerID string) (*ledger.BonusGrant, error) {
	grant, err := e.store.GrantReferralBonus(ctx, customerID, id.Nil)
	if err != nil || grant == nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "referral bonus granted",
		"referrer_id", grant.ReferrerID,
		"referred_id", grant.ReferredID,
		"amount", grant.Amount.Amount,
	)
	e.plugins.EmitReferralBonusGranted(ctx, grant)
	e.notifyBonusGranted(grant)

	return grant, nil
}

func (e *Engine) validateAmount(amount types.Money) error {
	if !amount.IsPositive() {
		return ValidationError{Field: "amount", Message: "must be positive"}
	}
	if amount.Currency != e.currency {
		return ValidationError{Field: "amount", Message: "currency must be " + e.currency}
	}
	return nil
}

