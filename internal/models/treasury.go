package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SyncStrategy string

const (
	SyncStrategyPayg     SyncStrategy = "payg"
	SyncStrategyPeriodic SyncStrategy = "periodic"
)

const SyncProviderPonto = "ponto"

type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "day"
	IntervalWeek  IntervalUnit = "week"
	IntervalMonth IntervalUnit = "month"
	IntervalYear  IntervalUnit = "year"
)

var ErrMissingStrategyConfig = errors.New("periodic treasury has no strategy config")

// Database model
type Treasury struct {
	ID                  int64           `db:"id" json:"id"`
	Name                string          `db:"name" json:"name"`
	SyncProvider        *string         `db:"sync_provider" json:"sync_provider,omitempty"`
	SyncProviderAccount *string         `db:"sync_provider_account" json:"sync_provider_account,omitempty"`
	SyncStrategy        SyncStrategy    `db:"sync_strategy" json:"sync_strategy"`
	SyncStrategyConfig  *PeriodicConfig `db:"sync_strategy_config" json:"sync_strategy_config,omitempty"`
	Token               TokenConfig     `db:"token" json:"token"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}

// PeriodicConfig configures pooled settlement. Amounts are minor units.
type PeriodicConfig struct {
	Target       int64        `json:"target" validate:"gt=0"`
	Reward       int64        `json:"reward" validate:"gte=0"`
	IntervalUnit IntervalUnit `json:"interval_unit" validate:"required,oneof=day week month year"`
	DayOfMonth   *int         `json:"day_of_month,omitempty" validate:"omitempty,min=1,max=31"`
	Hour         *int         `json:"hour,omitempty" validate:"omitempty,min=0,max=23"`
	Minute       *int         `json:"minute,omitempty" validate:"omitempty,min=0,max=59"`
}

func (c *PeriodicConfig) Scan(src interface{}) error {
	return scanJSON(src, c)
}

func (c PeriodicConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// TokenConfig identifies the settlement token of a treasury.
type TokenConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

func (t *TokenConfig) Scan(src interface{}) error {
	return scanJSON(src, t)
}

func (t TokenConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// SyncCursor is the durable resume point of a treasury's bank feed.
type SyncCursor struct {
	TreasuryID  int64     `db:"treasury_id"`
	OperationID string    `db:"operation_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}
