package models

import "errors"

type OperationStatus string

// Status constants
const (
	StatusRequesting              OperationStatus = "requesting"
	StatusPending                 OperationStatus = "pending"
	StatusPendingPeriodic         OperationStatus = "pending-periodic"
	StatusConfirming              OperationStatus = "confirming"
	StatusProcessed               OperationStatus = "processed"
	StatusProcessedAccountMissing OperationStatus = "processed-account-not-found"
)

var ErrInvalidTransition = errors.New("invalid operation status transition")

var transitions = map[OperationStatus][]OperationStatus{
	StatusRequesting:      {StatusPending},
	StatusPending:         {StatusConfirming, StatusProcessedAccountMissing},
	StatusPendingPeriodic: {StatusPending, StatusProcessedAccountMissing},
	StatusConfirming:      {StatusProcessed},
}

func (s OperationStatus) Valid() bool {
	switch s {
	case StatusRequesting, StatusPending, StatusPendingPeriodic, StatusConfirming,
		StatusProcessed, StatusProcessedAccountMissing:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusProcessedAccountMissing
}

// IsSettleable reports whether the settlement consumer may pick the operation up.
func (s OperationStatus) IsSettleable() bool {
	return s == StatusPending
}

func CanTransition(from, to OperationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
