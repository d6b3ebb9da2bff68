// Package event defines the append-only event log records emitted once
// per successful mutation, intended for off-chain indexers.
package event

import (
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/types"
)

// Type is the event type tag. The tag and payload field names are part
// of the external indexer contract and must not change.
type Type string

// Event type tags, one per mutating operation.
const (
	TypeTransfer         Type = "transfer"
	TypeApproval         Type = "approval"
	TypeSubscribed       Type = "subscribed"
	TypeCancelled        Type = "cancelled"
	TypeRenewed          Type = "renewed"
	TypeAutoRenewToggled Type = "auto-renew-toggled"
	TypeEmergencyBurn    Type = "emergency-burn"
	TypeAdminTransferred Type = "admin-transferred"
	TypeMinterChanged    Type = "minter-changed"
	TypePauseChanged     Type = "pause-changed"
)

// Payload field name constants shared by emitters and indexers.
const (
	FieldUser      = "user"
	FieldFrom      = "from"
	FieldTo        = "to"
	FieldSpender   = "spender"
	FieldAmount    = "amount"
	FieldTier      = "tier"
	FieldRefund    = "refund"
	FieldAutoRenew = "auto_renew"
	FieldPaused    = "paused"
	FieldAdmin     = "admin"
	FieldMinter    = "minter"
)

// Event is one append-only log entry. Actor is the principal whose
// authority performed the mutation; Height is the block height the
// mutation committed at.
type Event struct {
	types.Entity
	ID      id.EventID     `json:"id"`
	Type    Type           `json:"type"`
	Actor   id.Principal   `json:"actor"`
	Height  uint64         `json:"height"`
	Payload map[string]any `json:"payload,omitempty"`
}

// New creates an Event with a fresh ID and timestamps.
func New(typ Type, actor id.Principal, height uint64, payload map[string]any) *Event {
	return &Event{
		Entity:  types.NewEntity(),
		ID:      id.NewEventID(),
		Type:    typ,
		Actor:   actor,
		Height:  height,
		Payload: payload,
	}
}

// QueryOpts filters event log reads.
type QueryOpts struct {
	Type   Type
	Actor  id.Principal
	Limit  int
	Offset int
}
