package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/topup"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	topupstore "github.com/xraph/topup/store"
	"github.com/xraph/topup/types"
)

// compile-time interface check
var _ topupstore.Store = (*Store)(nil)

const settingAcceptingOrders = "accepting_orders"

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Every mutation that spans orders and the ledger is a single statement
// built from data-modifying CTEs, so it commits or fails as one unit and
// concurrent writers serialize on the order row.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("topup/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("topup/postgres: %w: %w", topup.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Catalog Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *catalog.Plan) error {
	_, err := s.pg.NewInsert(toPlanModel(p)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/postgres: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*catalog.Plan, error) {
	m := new(planModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", planID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, topup.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m)
}

func (s *Store) ListPlans(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Plan, error) {
	var models []planModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.IncludeInactive {
		argIdx++
		q = q.Where(fmt.Sprintf("active = $%d", argIdx), true)
	}
	if opts.Category != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("category = $%d", argIdx), opts.Category)
	}
	q = q.OrderExpr("price ASC, name ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*catalog.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlanPrice(ctx context.Context, planID id.PlanID, price types.Money) error {
	res, err := s.pg.NewUpdate((*planModel)(nil)).
		Set("price = $1", price.Amount).
		Set("currency = $2", price.Currency).
		Set("updated_at = $3", now()).
		Where("id = $4", planID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return topup.ErrPlanNotFound
	}
	return nil
}

func (s *Store) CountPlans(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pg.NewRaw(`SELECT COUNT(*) FROM topup_plans`).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ==================== Ledger Store ====================

const createReferredCustomerSQL = `
WITH referrer AS (
	SELECT id FROM topup_customers WHERE id = $6
), inserted AS (
	INSERT INTO topup_customers
		(id, display_name, credit, currency, referral_code, referred_by, referrals_granted, total_spent, created_at, updated_at)
	SELECT $1, $2, $3, $4, $5, referrer.id, 0, $7, $8, $8 FROM referrer
	RETURNING id
), referral AS (
	INSERT INTO topup_referrals
		(id, referrer_id, referred_id, bonus_amount, currency, bonus_applied, bonus_order_id, created_at)
	SELECT $9, $6, inserted.id, $10, $4, FALSE, '', $8 FROM inserted
	RETURNING id
)
SELECT COUNT(*) FROM referral`

func (s *Store) CreateCustomer(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error {
	if ref == nil {
		_, err := s.pg.NewInsert(toCustomerModel(c)).Exec(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return topup.ErrAlreadyExists
			}
			return fmt.Errorf("topup/postgres: create customer: %w", err)
		}
		return nil
	}

	var created int64
	err := s.pg.NewRaw(createReferredCustomerSQL,
		c.ID, c.DisplayName, c.Credit.Amount, c.Credit.Currency, c.ReferralCode,
		ref.ReferrerID, c.TotalSpent.Amount, c.CreatedAt,
		ref.ID.String(), ref.BonusAmount.Amount,
	).Scan(ctx, &created)
	if err != nil {
		if isUniqueViolation(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/postgres: create referred customer: %w", err)
	}
	if created == 0 {
		return topup.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*ledger.Customer, error) {
	m := new(customerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", customerID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, topup.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m), nil
}

func (s *Store) GetCustomerByReferralCode(ctx context.Context, code string) (*ledger.Customer, error) {
	m := new(customerModel)
	err := s.pg.NewSelect(m).
		Where("referral_code = $1", code).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, topup.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m), nil
}

func (s *Store) GetReferral(ctx context.Context, referredID string) (*ledger.Referral, error) {
	m := new(referralModel)
	err := s.pg.NewSelect(m).
		Where("referred_id = $1", referredID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, topup.ErrReferralNotFound
		}
		return nil, err
	}
	return fromReferralModel(m)
}

func (s *Store) Reserve(ctx context.Context, customerID string, amount types.Money) error {
	res, err := s.pg.NewUpdate((*customerModel)(nil)).
		Set("credit = credit - $1", amount.Amount).
		Set("updated_at = $2", now()).
		Where("id = $3", customerID).
		Where("credit >= $4", amount.Amount).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.missingOr(ctx, customerID, topup.ErrInsufficientCredit)
	}
	return nil
}

func (s *Store) Refund(ctx context.Context, customerID string, amount types.Money) error {
	res, err := s.pg.NewUpdate((*customerModel)(nil)).
		Set("credit = credit + $1", amount.Amount).
		Set("updated_at = $2", now()).
		Where("id = $3", customerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return topup.ErrCustomerNotFound
	}
	return nil
}

const grantBonusSQL = `
WITH granted AS (
	UPDATE topup_referrals r SET bonus_applied = TRUE, bonus_order_id = $2, granted_at = $3
	WHERE r.referred_id = $1 AND NOT r.bonus_applied
	RETURNING r.*
), credited AS (
	UPDATE topup_customers c
	SET credit = c.credit + g.bonus_amount, referrals_granted = c.referrals_granted + 1, updated_at = $3
	FROM granted g
	WHERE c.id = g.referrer_id
	RETURNING c.id
)
SELECT row_to_json(g)::text FROM granted g`

func (s *Store) GrantReferralBonus(ctx context.Context, referredID string, orderID id.OrderID) (*ledger.BonusGrant, error) {
	var orderRef string
	if !orderID.IsNil() {
		orderRef = orderID.String()
	}

	var raw string
	err := s.pg.NewRaw(grantBonusSQL, referredID, orderRef, now()).Scan(ctx, &raw)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("topup/postgres: grant referral bonus: %w", err)
	}
	return decodeGrant(raw)
}

// ==================== Order Store ====================

const placeOrderSQL = `
WITH debited AS (
	UPDATE topup_customers SET credit = credit - $7, updated_at = $13
	WHERE id = $2 AND credit >= $7
	RETURNING id
), placed AS (
	INSERT INTO topup_orders
		(id, customer_id, customer_name, plan_id, plan_name, price, credit_used, currency,
		 destination, status, last_actor, created_at, updated_at)
	SELECT $1, debited.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13 FROM debited
	RETURNING id
)
SELECT COUNT(*) FROM placed`

func (s *Store) PlaceOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)

	var placed int64
	err := s.pg.NewRaw(placeOrderSQL,
		m.ID, m.CustomerID, m.CustomerName, m.PlanID, m.PlanName, m.Price, m.CreditUsed,
		m.Currency, m.Destination, m.Status, m.LastActor, m.CreatedAt, m.UpdatedAt,
	).Scan(ctx, &placed)
	if err != nil {
		if isUniqueViolation(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/postgres: place order: %w", err)
	}
	if placed == 0 {
		return s.missingOr(ctx, o.CustomerID, topup.ErrInsufficientCredit)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	m := new(orderModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, topup.ErrOrderNotFound
		}
		return nil, err
	}
	return fromOrderModel(m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		args := make([]any, len(opts.Statuses))
		for i, st := range opts.Statuses {
			argIdx++
			placeholders[i] = "$" + strconv.Itoa(argIdx)
			args[i] = string(st)
		}
		q = q.Where("status IN ("+strings.Join(placeholders, ", ")+")", args...)
	}
	if opts.CustomerID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("customer_id = $%d", argIdx), opts.CustomerID)
	}
	if !opts.CreatedBefore.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at < $%d", argIdx), opts.CreatedBefore)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

// transitionSQL moves one order and applies the ledger effect of entering
// the target status. The %s slot receives the OR-ed preconditions.
const transitionSQL = `
WITH moved AS (
	UPDATE topup_orders o SET
		previous_status = o.status,
		status          = $2::text,
		last_actor      = $3,
		updated_at      = $4,
		payment_proof   = CASE WHEN $2::text = 'payment_submitted' THEN $5::text ELSE o.payment_proof END,
		cancel_reason   = CASE WHEN $2::text = 'cancelled' THEN $6::text ELSE o.cancel_reason END
	WHERE o.id = $1 AND ($7::text = '' OR o.customer_id = $7::text) AND (%s)
	RETURNING o.*
), refunded AS (
	UPDATE topup_customers c SET credit = c.credit + m.credit_used, updated_at = $4
	FROM moved m
	WHERE $2::text = 'cancelled' AND m.credit_used > 0 AND c.id = m.customer_id
	RETURNING c.id
), spent AS (
	UPDATE topup_customers c SET total_spent = c.total_spent + m.price, updated_at = $4
	FROM moved m
	WHERE $2::text = 'completed' AND c.id = m.customer_id
	RETURNING c.id
), granted AS (
	UPDATE topup_referrals r SET bonus_applied = TRUE, bonus_order_id = m.id, granted_at = $4
	FROM moved m
	WHERE $2::text = 'completed' AND r.referred_id = m.customer_id AND NOT r.bonus_applied
	RETURNING r.*
), credited AS (
	UPDATE topup_customers c
	SET credit = c.credit + g.bonus_amount, referrals_granted = c.referrals_granted + 1, updated_at = $4
	FROM granted g
	WHERE c.id = g.referrer_id
	RETURNING c.id
)
SELECT json_build_object(
	'order', row_to_json(m),
	'bonus', (SELECT row_to_json(g) FROM granted g)
)::text
FROM moved m`

type transitionRow struct {
	Order orderModel     `json:"order"`
	Bonus *referralModel `json:"bonus"`
}

func (s *Store) TransitionOrder(ctx context.Context, t *order.Transition) (*order.Outcome, error) {
	if len(t.From) == 0 {
		return nil, topup.ErrStateConflict
	}

	at := t.At
	if at.IsZero() {
		at = now()
	}

	args := []any{t.OrderID.String(), string(t.To), t.Actor, at, t.PaymentProof, t.CancelReason, t.CustomerID}
	conds := make([]string, len(t.From))
	for i, p := range t.From {
		args = append(args, string(p.Status))
		cond := "o.status = $" + strconv.Itoa(len(args))
		if p.Settled {
			cond += " AND o.credit_used = o.price"
		}
		conds[i] = "(" + cond + ")"
	}

	var raw string
	err := s.pg.NewRaw(fmt.Sprintf(transitionSQL, strings.Join(conds, " OR ")), args...).Scan(ctx, &raw)
	if err != nil {
		if isNoRows(err) {
			return nil, s.transitionFailure(ctx, t)
		}
		return nil, fmt.Errorf("topup/postgres: transition order: %w", err)
	}

	var row transitionRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, fmt.Errorf("topup/postgres: decode transition: %w", err)
	}
	o, err := fromOrderModel(&row.Order)
	if err != nil {
		return nil, err
	}

	out := &order.Outcome{
		Order:    o,
		From:     order.Status(row.Order.PreviousStatus),
		Refunded: types.Zero(o.Price.Currency),
	}
	if t.To == order.StatusCancelled {
		out.Refunded = o.CreditUsed
	}
	if row.Bonus != nil {
		ref, err := fromReferralModel(row.Bonus)
		if err != nil {
			return nil, err
		}
		out.Bonus = grantFromReferral(ref)
	}
	return out, nil
}

// transitionFailure tells a missing or foreign order apart from one that
// is no longer in an acceptable state.
func (s *Store) transitionFailure(ctx context.Context, t *order.Transition) error {
	o, err := s.GetOrder(ctx, t.OrderID)
	if err != nil {
		return err
	}
	if t.CustomerID != "" && o.CustomerID != t.CustomerID {
		return topup.ErrOrderNotFound
	}
	return topup.ErrStateConflict
}

func (s *Store) OrderStats(ctx context.Context) (*order.Stats, error) {
	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.Statuses))}
	for _, st := range order.Statuses {
		var n int64
		err := s.pg.NewRaw(`SELECT COUNT(*) FROM topup_orders WHERE status = $1`, string(st)).Scan(ctx, &n)
		if err != nil {
			return nil, err
		}
		stats.ByStatus[st] = n
		stats.Total += n
	}

	err := s.pg.NewRaw(`
		SELECT COALESCE(SUM(price), 0) FROM topup_orders WHERE status = $1
	`, string(order.StatusCompleted)).Scan(ctx, &stats.Revenue)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ==================== Service Gate ====================

func (s *Store) AcceptingOrders(ctx context.Context) (bool, error) {
	m := new(settingModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", settingAcceptingOrders).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return true, nil
		}
		return false, err
	}
	return strconv.ParseBool(m.Value)
}

func (s *Store) SetAcceptingOrders(ctx context.Context, accepting bool) error {
	m := &settingModel{
		Key:       settingAcceptingOrders,
		Value:     strconv.FormatBool(accepting),
		UpdatedAt: now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Helpers ====================

// missingOr returns ErrCustomerNotFound when the customer does not exist
// and otherwise err.
func (s *Store) missingOr(ctx context.Context, customerID string, err error) error {
	if _, gerr := s.GetCustomer(ctx, customerID); gerr != nil {
		return gerr
	}
	return err
}

func decodeGrant(raw string) (*ledger.BonusGrant, error) {
	var m referralModel
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("topup/postgres: decode referral: %w", err)
	}
	ref, err := fromReferralModel(&m)
	if err != nil {
		return nil, err
	}
	return grantFromReferral(ref), nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
