package mongo

import (
	"time"

	"github.com/xraph/subledger/event"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/tier"
)

// ==================== Roles model ====================

// rolesModel is a singleton document with a fixed _id.
type rolesModel struct {
	ID        int       `bson:"_id"`
	Admin     string    `bson:"admin"`
	Minter    string    `bson:"minter"`
	Paused    bool      `bson:"paused"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ==================== Balance models ====================

type balanceModel struct {
	Account string `bson:"_id"`
	Micro   int64  `bson:"micro"`
}

// supplyModel is a singleton document with a fixed _id.
type supplyModel struct {
	ID    int   `bson:"_id"`
	Micro int64 `bson:"micro"`
}

type allowanceModel struct {
	// ID is "owner|spender" so the pair is the primary key.
	ID      string `bson:"_id"`
	Owner   string `bson:"owner"`
	Spender string `bson:"spender"`
	Micro   int64  `bson:"micro"`
}

func allowanceID(owner, spender id.Principal) string {
	return owner.String() + "|" + spender.String()
}

// ==================== Subscription model ====================

type subscriptionModel struct {
	Account     string    `bson:"_id"`
	ID          string    `bson:"id"`
	Tier        int       `bson:"tier"`
	StartHeight int64     `bson:"start_height"`
	Duration    int64     `bson:"duration"`
	AutoRenew   bool      `bson:"auto_renew"`
	Active      bool      `bson:"active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toSubscriptionModel(rec *subscription.Record) *subscriptionModel {
	return &subscriptionModel{
		Account:     rec.Account.String(),
		ID:          rec.ID.String(),
		Tier:        int(rec.Tier),
		StartHeight: int64(rec.StartHeight),
		Duration:    int64(rec.Duration),
		AutoRenew:   rec.AutoRenew,
		Active:      rec.Active,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Record, error) {
	account, err := id.Parse(m.Account)
	if err != nil {
		return nil, err
	}
	recID, err := id.Parse(m.ID)
	if err != nil {
		return nil, err
	}

	rec := &subscription.Record{
		ID:          recID,
		Account:     account,
		Tier:        tier.Tier(m.Tier),
		StartHeight: uint64(m.StartHeight),
		Duration:    uint64(m.Duration),
		AutoRenew:   m.AutoRenew,
		Active:      m.Active,
	}
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return rec, nil
}

// ==================== Tier model ====================

type tierModel struct {
	Tier     int   `bson:"_id"`
	Duration int64 `bson:"duration"`
}

// ==================== Event model ====================

type eventModel struct {
	ID        string         `bson:"_id"`
	Type      string         `bson:"type"`
	Actor     string         `bson:"actor"`
	Height    int64          `bson:"height"`
	Payload   map[string]any `bson:"payload,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Actor:     e.Actor.String(),
		Height:    int64(e.Height),
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	actor, err := id.Parse(m.Actor)
	if err != nil {
		return nil, err
	}

	e := &event.Event{
		ID:      evtID,
		Type:    event.Type(m.Type),
		Actor:   actor,
		Height:  uint64(m.Height),
		Payload: m.Payload,
	}
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.CreatedAt
	return e, nil
}
