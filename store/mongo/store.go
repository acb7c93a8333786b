package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/topup"
	"github.com/xraph/topup/catalog"
	"github.com/xraph/topup/id"
	"github.com/xraph/topup/ledger"
	"github.com/xraph/topup/order"
	topupstore "github.com/xraph/topup/store"
	"github.com/xraph/topup/types"
)

// Collection name constants.
const (
	colPlans     = "topup_plans"
	colCustomers = "topup_customers"
	colReferrals = "topup_referrals"
	colOrders    = "topup_orders"
	colSettings  = "topup_settings"
)

const settingAcceptingOrders = "accepting_orders"

// compile-time interface check
var _ topupstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Operations that touch an order and the ledger run in a multi-document
// transaction, so the deployment must be a replica set or sharded cluster.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all topup collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("topup/mongo: migrate %s indexes: %w: %w", col, topup.ErrMigrationFailed, err)
		}
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
	_, err := s.mdb.NewInsert(toPlanModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*catalog.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": planID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, topup.ErrPlanNotFound
		}
		return nil, fmt.Errorf("topup/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Plan, error) {
	var models []planModel

	filter := bson.M{}
	if !opts.IncludeInactive {
		filter["active"] = true
	}
	if opts.Category != "" {
		filter["category"] = opts.Category
	}

	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "price", Value: 1}, {Key: "name", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("topup/mongo: list plans: %w", err)
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
	res, err := s.mdb.NewUpdate((*planModel)(nil)).
		Filter(bson.M{"_id": planID.String()}).
		Set("price", price.Amount).
		Set("currency", price.Currency).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("topup/mongo: update plan price: %w", err)
	}
	if res.MatchedCount() == 0 {
		return topup.ErrPlanNotFound
	}
	return nil
}

func (s *Store) CountPlans(ctx context.Context) (int64, error) {
	n, err := s.mdb.Collection(colPlans).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("topup/mongo: count plans: %w", err)
	}
	return n, nil
}

// ==================== Ledger Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *ledger.Customer, ref *ledger.Referral) error {
	if ref == nil {
		_, err := s.mdb.NewInsert(toCustomerModel(c)).Exec(ctx)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return topup.ErrAlreadyExists
			}
			return fmt.Errorf("topup/mongo: create customer: %w", err)
		}
		return nil
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		n, err := s.mdb.Collection(colCustomers).CountDocuments(ctx, bson.M{"_id": ref.ReferrerID})
		if err != nil {
			return err
		}
		if n == 0 {
			return topup.ErrCustomerNotFound
		}
		if _, err := s.mdb.Collection(colCustomers).InsertOne(ctx, toCustomerModel(c)); err != nil {
			return err
		}
		_, err = s.mdb.Collection(colReferrals).InsertOne(ctx, toReferralModel(ref))
		return err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return topup.ErrAlreadyExists
		}
		if errors.Is(err, topup.ErrCustomerNotFound) {
			return err
		}
		return fmt.Errorf("topup/mongo: create referred customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (*ledger.Customer, error) {
	var m customerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": customerID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, topup.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("topup/mongo: get customer: %w", err)
	}
	return fromCustomerModel(&m), nil
}

func (s *Store) GetCustomerByReferralCode(ctx context.Context, code string) (*ledger.Customer, error) {
	var m customerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"referral_code": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, topup.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("topup/mongo: get customer by code: %w", err)
	}
	return fromCustomerModel(&m), nil
}

func (s *Store) GetReferral(ctx context.Context, referredID string) (*ledger.Referral, error) {
	var m referralModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"referred_id": referredID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, topup.ErrReferralNotFound
		}
		return nil, fmt.Errorf("topup/mongo: get referral: %w", err)
	}
	return fromReferralModel(&m)
}

func (s *Store) Reserve(ctx context.Context, customerID string, amount types.Money) error {
	return s.debit(ctx, customerID, amount.Amount)
}

func (s *Store) Refund(ctx context.Context, customerID string, amount types.Money) error {
	res, err := s.mdb.Collection(colCustomers).UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{
			"$inc": bson.M{"credit": amount.Amount},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("topup/mongo: refund: %w", err)
	}
	if res.MatchedCount == 0 {
		return topup.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) GrantReferralBonus(ctx context.Context, referredID string, orderID id.OrderID) (*ledger.BonusGrant, error) {
	var grant *ledger.BonusGrant
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		grant, err = s.grantBonus(ctx, referredID, orderID, now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("topup/mongo: grant referral bonus: %w", err)
	}
	return grant, nil
}

// debit takes amount from the customer only if the balance covers it.
func (s *Store) debit(ctx context.Context, customerID string, amount int64) error {
	res, err := s.mdb.Collection(colCustomers).UpdateOne(ctx,
		bson.M{"_id": customerID, "credit": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"credit": -amount},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.mdb.Collection(colCustomers).CountDocuments(ctx, bson.M{"_id": customerID})
	if err != nil {
		return err
	}
	if n == 0 {
		return topup.ErrCustomerNotFound
	}
	return topup.ErrInsufficientCredit
}

// grantBonus flips the pending referral of referredID and credits the
// referrer. It must run inside a transaction.
func (s *Store) grantBonus(ctx context.Context, referredID string, orderID id.OrderID, at time.Time) (*ledger.BonusGrant, error) {
	set := bson.M{"bonus_applied": true, "granted_at": at}
	if !orderID.IsNil() {
		set["bonus_order_id"] = orderID.String()
	}

	var m referralModel
	err := s.mdb.Collection(colReferrals).FindOneAndUpdate(ctx,
		bson.M{"referred_id": referredID, "bonus_applied": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, nil
		}
		return nil, err
	}

	_, err = s.mdb.Collection(colCustomers).UpdateOne(ctx,
		bson.M{"_id": m.ReferrerID},
		bson.M{
			"$inc": bson.M{"credit": m.BonusAmount, "referrals_granted": 1},
			"$set": bson.M{"updated_at": at},
		},
	)
	if err != nil {
		return nil, err
	}

	ref, err := fromReferralModel(&m)
	if err != nil {
		return nil, err
	}
	return grantFromReferral(ref), nil
}

// ==================== Order Store ====================

func (s *Store) PlaceOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.debit(ctx, m.CustomerID, m.CreditUsed); err != nil {
			return err
		}
		_, err := s.mdb.Collection(colOrders).InsertOne(ctx, m)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, topup.ErrCustomerNotFound), errors.Is(err, topup.ErrInsufficientCredit):
			return err
		case mongo.IsDuplicateKeyError(err):
			return topup.ErrAlreadyExists
		}
		return fmt.Errorf("topup/mongo: place order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, topup.ErrOrderNotFound
		}
		return nil, fmt.Errorf("topup/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel

	filter := bson.M{}
	if len(opts.Statuses) > 0 {
		statuses := make(bson.A, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if opts.CustomerID != "" {
		filter["customer_id"] = opts.CustomerID
	}
	if !opts.CreatedBefore.IsZero() {
		filter["created_at"] = bson.M{"$lt": opts.CreatedBefore}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("topup/mongo: list orders: %w", err)
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

func (s *Store) TransitionOrder(ctx context.Context, t *order.Transition) (*order.Outcome, error) {
	if len(t.From) == 0 {
		return nil, topup.ErrStateConflict
	}

	at := t.At
	if at.IsZero() {
		at = now()
	}

	preconds := make(bson.A, len(t.From))
	for i, p := range t.From {
		cond := bson.M{"status": string(p.Status)}
		if p.Settled {
			cond["$expr"] = bson.M{"$eq": bson.A{"$credit_used", "$price"}}
		}
		preconds[i] = cond
	}
	filter := bson.M{"_id": t.OrderID.String(), "$or": preconds}
	if t.CustomerID != "" {
		filter["customer_id"] = t.CustomerID
	}

	set := bson.M{"status": string(t.To), "last_actor": t.Actor, "updated_at": at}
	switch t.To {
	case order.StatusPaymentSubmitted:
		set["payment_proof"] = t.PaymentProof
	case order.StatusCancelled:
		set["cancel_reason"] = t.CancelReason
	}

	var out *order.Outcome
	err := s.inTx(ctx, func(ctx context.Context) error {
		var before orderModel
		err := s.mdb.Collection(colOrders).FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if err != nil {
			if isNoDocuments(err) {
				return errNoMatch
			}
			return err
		}

		after := before
		after.Status = string(t.To)
		after.LastActor = t.Actor
		after.UpdatedAt = at
		if proof, ok := set["payment_proof"].(string); ok {
			after.PaymentProof = proof
		}
		if reason, ok := set["cancel_reason"].(string); ok {
			after.CancelReason = reason
		}

		o, err := fromOrderModel(&after)
		if err != nil {
			return err
		}
		out = &order.Outcome{
			Order:    o,
			From:     order.Status(before.Status),
			Refunded: types.Zero(o.Price.Currency),
		}

		switch t.To {
		case order.StatusCancelled:
			if o.CreditUsed.IsPositive() {
				if err := s.credit(ctx, o.CustomerID, bson.M{"credit": o.CreditUsed.Amount}, at); err != nil {
					return err
				}
				out.Refunded = o.CreditUsed
			}
		case order.StatusCompleted:
			if err := s.credit(ctx, o.CustomerID, bson.M{"total_spent": o.Price.Amount}, at); err != nil {
				return err
			}
			if out.Bonus, err = s.grantBonus(ctx, o.CustomerID, o.ID, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoMatch) {
			return nil, s.transitionFailure(ctx, t)
		}
		return nil, fmt.Errorf("topup/mongo: transition order: %w", err)
	}
	return out, nil
}

func (s *Store) credit(ctx context.Context, customerID string, inc bson.M, at time.Time) error {
	_, err := s.mdb.Collection(colCustomers).UpdateOne(ctx,
		bson.M{"_id": customerID},
		bson.M{"$inc": inc, "$set": bson.M{"updated_at": at}},
	)
	return err
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
	pipeline := bson.A{
		bson.M{
			"$group": bson.M{
				"_id":   "$status",
				"count": bson.M{"$sum": 1},
				"total": bson.M{"$sum": "$price"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colOrders).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("topup/mongo: order stats: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
		Total  int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("topup/mongo: order stats decode: %w", err)
	}

	stats := &order.Stats{ByStatus: make(map[order.Status]int64, len(order.Statuses))}
	for _, st := range order.Statuses {
		stats.ByStatus[st] = 0
	}
	for _, r := range results {
		st := order.Status(r.Status)
		stats.ByStatus[st] = r.Count
		stats.Total += r.Count
		if st == order.StatusCompleted {
			stats.Revenue = r.Total
		}
	}
	return stats, nil
}

// ==================== Service Gate ====================

func (s *Store) AcceptingOrders(ctx context.Context) (bool, error) {
	var m settingModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": settingAcceptingOrders}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return true, nil
		}
		return false, fmt.Errorf("topup/mongo: get service gate: %w", err)
	}
	return strconv.ParseBool(m.Value)
}

func (s *Store) SetAcceptingOrders(ctx context.Context, accepting bool) error {
	_, err := s.mdb.NewUpdate((*settingModel)(nil)).
		Filter(bson.M{"_id": settingAcceptingOrders}).
		SetUpdate(bson.M{"$set": bson.M{
			"value":      strconv.FormatBool(accepting),
			"updated_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("topup/mongo: set service gate: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

var errNoMatch = errors.New("topup/mongo: no matching order")

// inTx runs fn in a transaction on a fresh session. The driver retries fn on
// transient transaction errors, so fn must be safe to re-run.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	client := s.mdb.Collection(colOrders).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: %w", topup.ErrTransactionFailed, err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all topup collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPlans: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "active", Value: 1}, {Key: "price", Value: 1}}},
		},
		colCustomers: {
			{
				Keys:    bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colReferrals: {
			{
				Keys:    bson.D{{Key: "referred_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "referrer_id", Value: 1}}},
			{Keys: bson.D{{Key: "bonus_order_id", Value: 1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colSettings: {},
	}
}
