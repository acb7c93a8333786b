package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	"github.com/xraph/topup/types"
)

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:topup_plans"`

	ID          string    `grove:"id,pk"`
	Category    string    `grove:"category"`
	Name        string    `grove:"name"`
	Description string    `grove:"description"`
	Price       int64     `grove:"price"`
	Currency    string    `grove:"currency"`
	Active      bool      `grove:"active"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPlanModel(p *catalog.Plan) *planModel {
	return &planModel{
		ID:          p.ID.String(),
		Category:    p.Category,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Amount,
		Currency:    p.Price.Currency,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*catalog.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}
	return &catalog.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          planID,
		Category:    m.Category,
		Name:        m.Name,
		Description: m.Description,
		Price:       types.New(m.Price, m.Currency),
		Active:      m.Active,
	}, nil
}

// ==================== Customer models ====================

type customerModel struct {
	grove.BaseModel `grove:"table:topup_customers"`

	ID               string    `grove:"id,pk"`
	DisplayName      string    `grove:"display_name"`
	Credit           int64     `grove:"credit"`
	Currency         string    `grove:"currency"`
	ReferralCode     string    `grove:"referral_code"`
	ReferredBy       string    `grove:"referred_by"`
	ReferralsGranted int64     `grove:"referrals_granted"`
	TotalSpent       int64     `grove:"total_spent"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
}

func toCustomerModel(c *ledger.Customer) *customerModel {
	return &customerModel{
		ID:               c.ID,
		DisplayName:      c.DisplayName,
		Credit:           c.Credit.Amount,
		Currency:         c.Credit.Currency,
		ReferralCode:     c.ReferralCode,
		ReferredBy:       c.ReferredBy,
		ReferralsGranted: c.ReferralsGranted,
		TotalSpent:       c.TotalSpent.Amount,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func fromCustomerModel(m *customerModel) *ledger.Customer {
	return &ledger.Customer{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:               m.ID,
		DisplayName:      m.DisplayName,
		Credit:           types.New(m.Credit, m.Currency),
		ReferralCode:     m.ReferralCode,
		ReferredBy:       m.ReferredBy,
		ReferralsGranted: m.ReferralsGranted,
		TotalSpent:       types.New(m.TotalSpent, m.Currency),
	}
}

// ==================== Referral models ====================

type referralModel struct {
	grove.BaseModel `grove:"table:topup_referrals"`

	ID           string     `grove:"id,pk"`
	ReferrerID   string     `grove:"referrer_id"`
	ReferredID   string     `grove:"referred_id"`
	BonusAmount  int64      `grove:"bonus_amount"`
	Currency     string     `grove:"currency"`
	BonusApplied bool       `grove:"bonus_applied"`
	BonusOrderID string     `grove:"bonus_order_id"`
	GrantedAt    *time.Time `grove:"granted_at"`
	CreatedAt    time.Time  `grove:"created_at"`
}

func toReferralModel(r *ledger.Referral) *referralModel {
	m := &referralModel{
		ID:           r.ID.String(),
		ReferrerID:   r.ReferrerID,
		ReferredID:   r.ReferredID,
		BonusAmount:  r.BonusAmount.Amount,
		Currency:     r.BonusAmount.Currency,
		BonusApplied: r.BonusApplied,
		GrantedAt:    r.GrantedAt,
		CreatedAt:    r.CreatedAt,
	}
	if !r.BonusOrderID.IsNil() {
		m.BonusOrderID = r.BonusOrderID.String()
	}
	return m
}

func fromReferralModel(m *referralModel) (*ledger.Referral, error) {
	refID, err := id.ParseReferralID(m.ID)
	if err != nil {
		return nil, err
	}
	r := &ledger.Referral{
		ID:           refID,
		ReferrerID:   m.ReferrerID,
		ReferredID:   m.ReferredID,
		BonusAmount:  types.New(m.BonusAmount, m.Currency),
		BonusApplied: m.BonusApplied,
		GrantedAt:    m.GrantedAt,
		CreatedAt:    m.CreatedAt,
	}
	if m.BonusOrderID != "" {
		if r.BonusOrderID, err = id.ParseOrderID(m.BonusOrderID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func grantFromReferral(r *ledger.Referral) *ledger.BonusGrant {
	return &ledger.BonusGrant{
		ReferralID: r.ID,
		ReferrerID: r.ReferrerID,
		ReferredID: r.ReferredID,
		Amount:     r.BonusAmount,
		OrderID:    r.BonusOrderID,
	}
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:topup_orders"`

	ID             string    `grove:"id,pk"`
	CustomerID     string    `grove:"customer_id"`
	CustomerName   string    `grove:"customer_name"`
	PlanID         string    `grove:"plan_id"`
	PlanName       string    `grove:"plan_name"`
	Price          int64     `grove:"price"`
	CreditUsed     int64     `grove:"credit_used"`
	Currency       string    `grove:"currency"`
	Destination    string    `grove:"destination"`
	Status         string    `grove:"status"`
	PreviousStatus string    `grove:"previous_status"`
	PaymentProof   string    `grove:"payment_proof"`
	CancelReason   string    `grove:"cancel_reason"`
	LastActor      string    `grove:"last_actor"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toOrderModel(o *order.Order) *orderModel {
	return &orderModel{
		ID:           o.ID.String(),
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		PlanID:       o.PlanID.String(),
		PlanName:     o.PlanName,
		Price:        o.Price.Amount,
		CreditUsed:   o.CreditUsed.Amount,
		Currency:     o.Price.Currency,
		Destination:  o.Destination,
		Status:       string(o.Status),
		PaymentProof: o.PaymentProof,
		CancelReason: o.CancelReason,
		LastActor:    o.LastActor,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}
	return &order.Order{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           orderID,
		CustomerID:   m.CustomerID,
		CustomerName: m.CustomerName,
		PlanID:       planID,
		PlanName:     m.PlanName,
		Price:        types.New(m.Price, m.Currency),
		CreditUsed:   types.New(m.CreditUsed, m.Currency),
		Destination:  m.Destination,
		Status:       order.Status(m.Status),
		PaymentProof: m.PaymentProof,
		CancelReason: m.CancelReason,
		LastActor:    m.LastActor,
	}, nil
}

// ==================== Settings models ====================

type settingModel struct {
	grove.BaseModel `grove:"table:topup_settings"`

	Key       string    `grove:"key,pk"`
	Value     string    `grove:"value"`
	UpdatedAt time.Time `grove:"updated_at"`
}
