package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Database model
type TreasuryOperation struct {
	ID         string            `db:"id" json:"id"`
	TreasuryID int64             `db:"treasury_id" json:"treasury_id"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
	Direction  Direction         `db:"direction" json:"direction"`
	Amount     int64             `db:"amount" json:"amount"`
	Status     OperationStatus   `db:"status" json:"status"`
	Message    string            `db:"message" json:"message"`
	Metadata   OperationMetadata `db:"metadata" json:"metadata"`
	TxHash     *string           `db:"tx_hash" json:"tx_hash,omitempty"`
	Account    *string           `db:"account" json:"account,omitempty"`
	Origin     Origin            `db:"origin" json:"origin"`
}

// Origin records which feed produced an operation.
type Origin string

const (
	OriginBank Origin = "bank"
	OriginCard Origin = "card"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// DirectionOf derives the direction from a signed source amount and returns the absolute amount.
func DirectionOf(signed int64) (Direction, int64) {
	if signed < 0 {
		return DirectionOut, -signed
	}
	return DirectionIn, signed
}

// SettlementAmount is the amount the settlement consumer should mint or burn for this operation.
// Promoted periodic operations settle on behalf of their whole group.
func (o TreasuryOperation) SettlementAmount() int64 {
	if o.Metadata.Periodic != nil {
		return o.Metadata.Periodic.SettlementAmount
	}
	return o.Amount
}

// PaygMetadata is attached to individually settled operations.
type PaygMetadata struct {
	OrderID     *string `json:"order_id,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PeriodicMetadata is attached to the representative operation of a promoted group.
type PeriodicMetadata struct {
	GroupedOperations []string `json:"grouped_operations"`
	TotalAmount       int64    `json:"total_amount"`
	Reward            int64    `json:"reward"`
	SettlementAmount  int64    `json:"settlement_amount"`
}

// OperationMetadata holds at most one of the strategy-specific payloads.
type OperationMetadata struct {
	Payg     *PaygMetadata
	Periodic *PeriodicMetadata
}

var ErrAmbiguousMetadata = errors.New("operation metadata carries both payg and periodic payloads")

func NewPaygMetadata(orderID, description *string) OperationMetadata {
	return OperationMetadata{Payg: &PaygMetadata{OrderID: orderID, Description: description}}
}

func NewPeriodicMetadata(grouped []string, total, reward, settlement int64) OperationMetadata {
	if grouped == nil {
		grouped = []string{}
	}
	return OperationMetadata{Periodic: &PeriodicMetadata{
		GroupedOperations: grouped,
		TotalAmount:       total,
		Reward:            reward,
		SettlementAmount:  settlement,
	}}
}

func (m OperationMetadata) MarshalJSON() ([]byte, error) {
	switch {
	case m.Payg != nil && m.Periodic != nil:
		return nil, ErrAmbiguousMetadata
	case m.Periodic != nil:
		return json.Marshal(m.Periodic)
	case m.Payg != nil:
		return json.Marshal(m.Payg)
	default:
		return []byte("{}"), nil
	}
}

func (m *OperationMetadata) UnmarshalJSON(data []byte) error {
	*m = OperationMetadata{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode operation metadata: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}

	_, grouped := fields["grouped_operations"]
	_, total := fields["total_amount"]
	if grouped || total {
		var p PeriodicMetadata
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to decode periodic metadata: %w", err)
		}
		if p.GroupedOperations == nil {
			p.GroupedOperations = []string{}
		}
		m.Periodic = &p
		return nil
	}

	var p PaygMetadata
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to decode payg metadata: %w", err)
	}
	m.Payg = &p
	return nil
}

// Value stores the metadata in a jsonb column.
func (m OperationMetadata) Value() (driver.Value, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *OperationMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = OperationMetadata{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
}
