// Package points defines the whole-number point economy: balances,
// allowances, action costs and the entry log of every balance movement.
package points

import (
	"time"

	"github.com/xraph/marketplace/id"
	"github.com/xraph/marketplace/types"
)

// Account holds the point balance of an identity. Accounts are created on
// first credit; an absent account has a zero balance.
type Account struct {
	types.Entity
	Owner   string `json:"owner" bson:"owner"`
	Balance uint64 `json:"balance" bson:"balance"`
}

// Costs are the point prices of marketplace actions.
type Costs struct {
	Listing uint64 `json:"listing" bson:"listing"`
	Quote   uint64 `json:"quote" bson:"quote"`
}

// DefaultCosts charges one point per listing and per quote.
func DefaultCosts() Costs {
	return Costs{Listing: 1, Quote: 1}
}

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Reason records why a balance moved.
type Reason string

const (
	ReasonMint         Reason = "mint"
	ReasonDeduct       Reason = "deduct"
	ReasonListing      Reason = "listing"
	ReasonQuote        Reason = "quote"
	ReasonTransfer     Reason = "transfer"
	ReasonTransferFrom Reason = "transfer_from"
	ReasonBurn         Reason = "burn"
)

// Entry is one side of a balance movement. A transfer produces a debit
// entry for the sender and a credit entry for the receiver.
type Entry struct {
	ID           id.PointEntryID `json:"id" bson:"_id"`
	Owner        string          `json:"owner" bson:"owner"`
	Counterparty string          `json:"counterparty,omitempty" bson:"counterparty,omitempty"`
	Direction    Direction       `json:"direction" bson:"direction"`
	Amount       uint64          `json:"amount" bson:"amount"`
	Reason       Reason          `json:"reason" bson:"reason"`
	NoteHash     string          `json:"note_hash,omitempty" bson:"note_hash,omitempty"`
	BalanceAfter uint64          `json:"balance_after" bson:"balance_after"`
	Actor        string          `json:"actor" bson:"actor"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
}
