package models

import "time"

// Database model
type TreasuryAccount struct {
	ID         string    `db:"id" json:"id"`
	TreasuryID int64     `db:"treasury_id" json:"treasury_id"`
	Account    string    `db:"account" json:"account"`
	Name       *string   `db:"name" json:"name,omitempty"`
	Target     *int64    `db:"target" json:"target,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RawTransaction is one event as yielded by an external source.
type RawTransaction struct {
	ID               string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AmountMinorUnits int64
	Reference        string
}

// CardEvent is a card-processor webhook normalized by the webhook edge and published on Kafka.
type CardEvent struct {
	EventID     string    `json:"event_id"`
	TreasuryID  int64     `json:"treasury_id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	Account     *string   `json:"account,omitempty"`
	OrderID     *string   `json:"order_id,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Card event kinds
const (
	CardEventPayment = "payment"
	CardEventRefund  = "refund"
)

// SettlementMessage is published when an operation becomes settleable.
type SettlementMessage struct {
	OperationID string    `json:"operation_id"`
	TreasuryID  int64     `json:"treasury_id"`
	Direction   Direction `json:"direction"`
	Amount      int64     `json:"amount"`
	Account     string    `json:"account"`
	Token       string    `json:"token"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
