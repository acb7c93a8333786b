package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// busyTries bounds how often a write that found the database locked by
// another connection is attempted before it fails with
// topup.ErrTransactionFailed.
const busyTries = 12

// Store implements store.Store using SQLite via Grove ORM.
//
// Ledger effects of placing and moving orders live in triggers installed by
// Migrations, so each order write and its credit change are one statement.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables, indexes and triggers using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("topup/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("topup/sqlite: %w: %w", topup.ErrMigrationFailed, err)
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
	err := s.write(ctx, func() error {
		_, err := s.sdb.NewInsert(toPlanModel(p)).Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/sqlite: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*catalog.Plan, error) {
	m := new(planModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", planID.String()).
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
	q := s.sdb.NewSelect(&models)

	if !opts.IncludeInactive {
		q = q.Where("active = ?", true)
	}
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
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
	var rows int64
	err := s.write(ctx, func() error {
		res, err := s.sdb.NewUpdate((*planModel)(nil)).
			Set("price = ?", price.Amount).
			Set("currency = ?", price.Currency).
			Set("updated_at = ?", now()).
			Where("id = ?", planID.String()).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
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
	if err := s.sdb.NewRaw(`SELECT COUNT(*) FROM topup_plans`).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ==================== Ledger Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error {
	if ref != nil {
		if _, err := s.GetCustomer(ctx, ref.ReferrerID); err != nil {
			return err
		}
	}

	return s.write(ctx, func() error {
		return s.insertCustomer(ctx, c, ref)
	})
}

// insertCustomer writes the customer and its referral in one transaction.
func (s *Store) insertCustomer(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) (err error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("topup/sqlite: %w: %w", topup.ErrTransactionFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the insert error wins
		}
	}()

	if _, err = tx.NewInsert(toCustomerModel(c)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/sqlite: create customer: %w", err)
	}
	if ref != nil {
		if _, err = tx.NewInsert(toReferralModel(ref)).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return topup.ErrAlreadyExists
			}
			return fmt.Errorf("topup/sqlite: create referral: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("topup/sqlite: commit customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*ledger.Customer, error) {
	m := new(customerModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", customerID).
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
	err := s.sdb.NewSelect(m).
		Where("referral_code = ?", code).
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
	err := s.sdb.NewSelect(m).
		Where("referred_id = ?", referredID).
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
	var rows int64
	err := s.write(ctx, func() error {
		res, err := s.sdb.NewUpdate((*customerModel)(nil)).
			Set("credit = credit - ?", amount.Amount).
			Set("updated_at = ?", now()).
			Where("id = ?", customerID).
			Where("credit >= ?", amount.Amount).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		return topup.ErrInsufficientCredit
	}
	return nil
}

func (s *Store) Refund(ctx context.Context, customerID string, amount types.Money) error {
	var rows int64
	err := s.write(ctx, func() error {
		res, err := s.sdb.NewUpdate((*customerModel)(nil)).
			Set("credit = credit + ?", amount.Amount).
			Set("updated_at = ?", now()).
			Where("id = ?", customerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return topup.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) GrantReferralBonus(ctx context.Context, referredID string, orderID id.OrderID) (*ledger.BonusGrant, error) {
	var orderRef string
	if !orderID.IsNil() {
		orderRef = orderID.String()
	}

	var rows int64
	err := s.write(ctx, func() error {
		res, err := s.sdb.NewUpdate((*referralModel)(nil)).
			Set("bonus_applied = ?", true).
			Set("bonus_order_id = ?", orderRef).
			Set("granted_at = ?", now()).
			Where("referred_id = ?", referredID).
			Where("bonus_applied = ?", false).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("topup/sqlite: grant referral bonus: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	ref, err := s.GetReferral(ctx, referredID)
	if err != nil {
		return nil, err
	}
	return grantFromReferral(ref), nil
}

// ==================== Order Store ====================

func (s *Store) PlaceOrder(ctx context.Context, o *order.Order) error {
	err := s.write(ctx, func() error {
		_, err := s.sdb.NewInsert(toOrderModel(o)).Exec(ctx)
		return err
	})
	if err != nil {
		return placeError(err)
	}
	return nil
}

// placeError maps the aborts raised by topup_orders_check_credit.
func placeError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, topup.ErrInsufficientCredit.Error()):
		return topup.ErrInsufficientCredit
	case strings.Contains(msg, topup.ErrCustomerNotFound.Error()):
		return topup.ErrCustomerNotFound
	case isUniqueViolation(err):
		return topup.ErrAlreadyExists
	case errors.Is(err, topup.ErrTransactionFailed):
		return err
	}
	return fmt.Errorf("topup/sqlite: place order: %w", err)
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	m := new(orderModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", orderID.String()).
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
	q := s.sdb.NewSelect(&models)

	if len(opts.Statuses) > 0 {
		args := make([]any, len(opts.Statuses))
		for i, st := range opts.Statuses {
			args[i] = string(st)
		}
		q = q.Where("status IN ("+placeholders(len(args))+")", args...)
	}
	if opts.CustomerID != "" {
		q = q.Where("customer_id = ?", opts.CustomerID)
	}
	if !opts.CreatedBefore.IsZero() {
		q = q.Where("created_at < ?", opts.CreatedBefore.UTC())
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

// TransitionOrder is one UPDATE guarded by the preconditions. The
// topup_orders triggers apply the refund, spend and referral bonus of the
// target status inside the same statement.
func (s *Store) TransitionOrder(ctx context.Context, t *order.Transition) (*order.Outcome, error) {
	if len(t.From) == 0 {
		return nil, topup.ErrStateConflict
	}

	at := t.At
	if at.IsZero() {
		at = now()
	}

	sets := []string{"previous_status = status", "status = ?", "last_actor = ?", "updated_at = ?"}
	args := []any{string(t.To), t.Actor, at.UTC()}
	switch t.To {
	case order.StatusPaymentSubmitted:
		sets = append(sets, "payment_proof = ?")
		args = append(args, t.PaymentProof)
	case order.StatusCancelled:
		sets = append(sets, "cancel_reason = ?")
		args = append(args, t.CancelReason)
	}

	where := []string{"id = ?"}
	args = append(args, t.OrderID.String())
	if t.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, t.CustomerID)
	}
	conds := make([]string, len(t.From))
	for i, p := range t.From {
		conds[i] = "(status = ?"
		if p.Settled {
			conds[i] += " AND credit_used = price"
		}
		conds[i] += ")"
		args = append(args, string(p.Status))
	}
	where = append(where, "("+strings.Join(conds, " OR ")+")")

	query := "UPDATE topup_orders SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") +
		" RETURNING previous_status"

	var from string
	err := s.write(ctx, func() error {
		return s.sdb.NewRaw(query, args...).Scan(ctx, &from)
	})
	if err != nil {
		if isNoRows(err) {
			return nil, s.transitionFailure(ctx, t)
		}
		return nil, fmt.Errorf("topup/sqlite: transition order: %w", err)
	}

	o, err := s.GetOrder(ctx, t.OrderID)
	if err != nil {
		return nil, err
	}
	out := &order.Outcome{
		Order:    o,
		From:     order.Status(from),
		Refunded: types.Zero(o.Price.Currency),
	}
	switch t.To {
	case order.StatusCancelled:
		out.Refunded = o.CreditUsed
	case order.StatusCompleted:
		if out.Bonus, err = s.grantedBy(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// grantedBy returns the bonus the completion of orderID triggered, if any.
func (s *Store) grantedBy(ctx context.Context, orderID id.OrderID) (*ledger.BonusGrant, error) {
	m := new(referralModel)
	err := s.sdb.NewSelect(m).
		Where("bonus_order_id = ?", orderID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	ref, err := fromReferralModel(m)
	if err != nil {
		return nil, err
	}
	return grantFromReferral(ref), nil
}

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
		err := s.sdb.NewRaw(`SELECT COUNT(*) FROM topup_orders WHERE status = ?`, string(st)).Scan(ctx, &n)
		if err != nil {
			return nil, err
		}
		stats.ByStatus[st] = n
		stats.Total += n
	}

	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(price), 0) FROM topup_orders WHERE status = ?
	`, string(order.StatusCompleted)).Scan(ctx, &stats.Revenue)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ==================== Service Gate ====================

func (s *Store) AcceptingOrders(ctx context.Context) (bool, error) {
	m := new(settingModel)
	err := s.sdb.NewSelect(m).
		Where("key = ?", settingAcceptingOrders).
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
	return s.write(ctx, func() error {
		_, err := s.sdb.NewInsert(m).
			OnConflict("(key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// ==================== Helpers ====================

// write runs op, retrying with backoff while another connection holds the
// database write lock. A write still locked out after busyTries attempts
// fails with topup.ErrTransactionFailed so callers can retry it later.
func (s *Store) write(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 5 * time.Millisecond
	eb.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if isBusy(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(busyTries),
	)
	if err != nil && isBusy(err) && !errors.Is(err, topup.ErrTransactionFailed) {
		return fmt.Errorf("topup/sqlite: %w: %w", topup.ErrTransactionFailed, err)
	}
	return err
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusy reports SQLITE_BUSY and SQLITE_LOCKED, raised when another
// connection holds the lock a statement needs.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
