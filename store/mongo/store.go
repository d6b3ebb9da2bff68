// Package mongo provides a MongoDB-backed store using the official v2
// driver.
//
// The engine serializes mutating operations, so composite writes here
// rely on per-document conditional updates rather than multi-document
// transactions and therefore work against standalone servers as well as
// replica sets.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	ledgerstore "github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
	"github.com/xraph/subledger/types"
)

// Collection name constants.
const (
	colRoles         = "subledger_roles"
	colBalances      = "subledger_balances"
	colSupply        = "subledger_supply"
	colAllowances    = "subledger_allowances"
	colSubscriptions = "subledger_subscriptions"
	colTiers         = "subledger_tiers"
	colEvents        = "subledger_events"
)

// singletonID is the fixed _id of the roles and supply documents.
const singletonID = 1

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store over a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB at uri and uses the named database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("subledger/mongo: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// NewWithClient wraps an existing client, for callers that manage their
// own connection lifecycle.
func NewWithClient(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Database returns the underlying database handle for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all subledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colAllowances: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "actor", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: %s indexes: %v", subledger.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from the database.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Roles ====================

func (s *Store) Roles(ctx context.Context) (ledgerstore.Roles, error) {
	var (
		roles ledgerstore.Roles
		m     rolesModel
	)
	err := s.db.Collection(colRoles).
		FindOne(ctx, bson.M{"_id": singletonID}).
		Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return roles, subledger.ErrStoreNotReady
		}
		return roles, err
	}

	if roles.Admin, err = id.Parse(m.Admin); err != nil {
		return roles, err
	}
	if roles.Minter, err = id.Parse(m.Minter); err != nil {
		return roles, err
	}
	roles.Paused = m.Paused

	return roles, nil
}

func (s *Store) SeedRoles(ctx context.Context, admin, minter id.Principal) error {
	_, err := s.db.Collection(colRoles).UpdateOne(ctx,
		bson.M{"_id": singletonID},
		bson.M{"$setOnInsert": bson.M{
			"admin":      admin.String(),
			"minter":     minter.String(),
			"paused":     false,
			"updated_at": time.Now().UTC(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (s *Store) SetAdmin(ctx context.Context, admin id.Principal) error {
	return s.updateRoles(ctx, bson.M{"admin": admin.String()})
}

func (s *Store) SetMinter(ctx context.Context, minter id.Principal) error {
	return s.updateRoles(ctx, bson.M{"minter": minter.String()})
}

func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	return s.updateRoles(ctx, bson.M{"paused": paused})
}

func (s *Store) updateRoles(ctx context.Context, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := s.db.Collection(colRoles).UpdateOne(ctx,
		bson.M{"_id": singletonID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return subledger.ErrStoreNotReady
	}
	return nil
}

// ==================== Balances & supply ====================

func (s *Store) Balance(ctx context.Context, acct id.Principal) (types.Amount, error) {
	var m balanceModel
	err := s.db.Collection(colBalances).
		FindOne(ctx, bson.M{"_id": acct.String()}).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(m.Micro), nil
}

func (s *Store) TotalSupply(ctx context.Context) (types.Amount, error) {
	var m supplyModel
	err := s.db.Collection(colSupply).
		FindOne(ctx, bson.M{"_id": singletonID}).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(m.Micro), nil
}

// ==================== Allowances ====================

func (s *Store) Allowance(ctx context.Context, owner, spender id.Principal) (types.Amount, error) {
	var m allowanceModel
	err := s.db.Collection(colAllowances).
		FindOne(ctx, bson.M{"_id": allowanceID(owner, spender)}).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.Zero(), nil
	}
	if err != nil {
		return types.Zero(), err
	}
	return types.Micro(m.Micro), nil
}

func (s *Store) SetAllowance(ctx context.Context, owner, spender id.Principal, amount types.Amount) error {
	col := s.db.Collection(colAllowances)
	key := allowanceID(owner, spender)

	if amount.IsZero() {
		_, err := col.DeleteOne(ctx, bson.M{"_id": key})
		return err
	}

	_, err := col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$set": bson.M{"micro": amount.Micro},
			"$setOnInsert": bson.M{
				"owner":   owner.String(),
				"spender": spender.String(),
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// ==================== Composite ledger operations ====================

func (s *Store) Transfer(ctx context.Context, from, to id.Principal, amount types.Amount, spender *id.Principal) error {
	// Conditional debit: matches only when the balance covers amount,
	// so an insufficient balance never goes negative.
	res, err := s.db.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": from.String(), "micro": bson.M{"$gte": amount.Micro}},
		bson.M{"$inc": bson.M{"micro": -amount.Micro}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return subledger.ErrInsufficientBalance
	}

	if spender != nil {
		ares, err := s.db.Collection(colAllowances).UpdateOne(ctx,
			bson.M{"_id": allowanceID(from, *spender), "micro": bson.M{"$gte": amount.Micro}},
			bson.M{"$inc": bson.M{"micro": -amount.Micro}},
		)
		if err == nil && ares.MatchedCount == 0 {
			err = subledger.ErrInsufficientAllowance
		}
		if err != nil {
			// Undo the debit so a failed delegated transfer leaves no trace.
			_, _ = s.db.Collection(colBalances).UpdateOne(ctx,
				bson.M{"_id": from.String()},
				bson.M{"$inc": bson.M{"micro": amount.Micro}},
			)
			return err
		}

		_, _ = s.db.Collection(colAllowances).DeleteOne(ctx,
			bson.M{"_id": allowanceID(from, *spender), "micro": 0})
	}

	return s.credit(ctx, to, amount.Micro)
}

func (s *Store) Burn(ctx context.Context, acct id.Principal, amount types.Amount) error {
	res, err := s.db.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": acct.String(), "micro": bson.M{"$gte": amount.Micro}},
		bson.M{"$inc": bson.M{"micro": -amount.Micro}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return subledger.ErrInsufficientBalance
	}

	_, err = s.db.Collection(colSupply).UpdateOne(ctx,
		bson.M{"_id": singletonID},
		bson.M{"$inc": bson.M{"micro": -amount.Micro}},
	)
	return err
}

func (s *Store) credit(ctx context.Context, acct id.Principal, micro int64) error {
	_, err := s.db.Collection(colBalances).UpdateOne(ctx,
		bson.M{"_id": acct.String()},
		bson.M{"$inc": bson.M{"micro": micro}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// ==================== Subscription records ====================

func (s *Store) Subscription(ctx context.Context, acct id.Principal) (*subscription.Record, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"_id": acct.String()}).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, subledger.ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) PutSubscription(ctx context.Context, rec *subscription.Record) error {
	m := toSubscriptionModel(rec)
	_, err := s.db.Collection(colSubscriptions).ReplaceOne(ctx,
		bson.M{"_id": m.Account},
		m,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) MintSubscription(ctx context.Context, rec *subscription.Record, amount types.Amount) error {
	// The unique _id makes the insert the one-record-per-account gate.
	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, toSubscriptionModel(rec))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return subledger.ErrAlreadySubscribed
		}
		return err
	}

	if err := s.credit(ctx, rec.Account, amount.Micro); err != nil {
		return err
	}

	_, err = s.db.Collection(colSupply).UpdateOne(ctx,
		bson.M{"_id": singletonID},
		bson.M{"$inc": bson.M{"micro": amount.Micro}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (s *Store) CancelSubscription(ctx context.Context, acct id.Principal, burn types.Amount) error {
	res, err := s.db.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"_id": acct.String()},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return subledger.ErrNoSubscription
	}

	return s.Burn(ctx, acct, burn)
}

// ==================== Tier table ====================

func (s *Store) TierDuration(ctx context.Context, t tier.Tier) (uint64, error) {
	var m tierModel
	err := s.db.Collection(colTiers).
		FindOne(ctx, bson.M{"_id": int(t)}).
		Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, subledger.ErrInvalidTier
	}
	if err != nil {
		return 0, err
	}
	return uint64(m.Duration), nil
}

func (s *Store) Tiers(ctx context.Context) (tier.Table, error) {
	cursor, err := s.db.Collection(colTiers).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	table := make(tier.Table)
	for cursor.Next(ctx) {
		var m tierModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		table[tier.Tier(m.Tier)] = uint64(m.Duration)
	}
	return table, cursor.Err()
}

func (s *Store) SeedTiers(ctx context.Context, table tier.Table) error {
	count, err := s.db.Collection(colTiers).CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	docs := make([]any, 0, len(table))
	for t, d := range table {
		docs = append(docs, tierModel{Tier: int(t), Duration: int64(d)})
	}
	if len(docs) == 0 {
		return nil
	}

	_, err = s.db.Collection(colTiers).InsertMany(ctx, docs)
	return err
}

// ==================== Event log ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	_, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(e))
	return err
}

func (s *Store) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if !opts.Actor.IsNil() {
		filter["actor"] = opts.Actor.String()
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
		if opts.Offset > 0 {
			findOpts = findOpts.SetSkip(int64(opts.Offset))
		}
	}

	cursor, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	result := make([]*event.Event, 0)
	for cursor.Next(ctx) {
		var m eventModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		e, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, cursor.Err()
}
