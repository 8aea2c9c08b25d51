// Package commission implements the broker commission ledger and the rules for
// distributing a broker's granted commission across its sub-brokers.
package commission

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidAmount is the sentinel matched by every ValidationError.
var ErrInvalidAmount = errors.New("invalid commission amount")

// ErrInsufficientCommission is the sentinel matched by every InsufficientCommissionError.
var ErrInsufficientCommission = errors.New("insufficient commission")

// ValidationError reports a commission amount that is not a non-negative integer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid commission: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidAmount }

// InsufficientCommissionError reports an allocation larger than the remaining pool.
type InsufficientCommissionError struct {
	Requested int64
	Remaining int64
}

func (e *InsufficientCommissionError) Error() string {
	return fmt.Sprintf("insufficient commission: requested %d, remaining %d", e.Requested, e.Remaining)
}

func (e *InsufficientCommissionError) Is(target error) bool { return target == ErrInsufficientCommission }

// Ledger is the commission state held on a broker record.
type Ledger struct {
	OriginalCommission   int64            `json:"original_commission"`
	AvailableCommission  int64            `json:"available_commission"`
	SubBrokerCommissions map[string]int64 `json:"sub_broker_commissions"`
}

// NewLedger returns a fresh ledger with nothing distributed.
func NewLedger(original int64) (Ledger, error) {
	if original < 0 {
		return Ledger{}, &ValidationError{Field: "original_commission", Reason: "must not be negative"}
	}
	return Ledger{
		OriginalCommission:   original,
		AvailableCommission:  original,
		SubBrokerCommissions: map[string]int64{},
	}, nil
}

// TotalAllocated sums the sub-broker allocations.
func (l Ledger) TotalAllocated() int64 {
	var total int64
	for _, v := range l.SubBrokerCommissions {
		total += v
	}
	return total
}

// Remaining is the part of the original commission not yet allocated.
func (l Ledger) Remaining() int64 {
	return l.OriginalCommission - l.TotalAllocated()
}

// Check verifies available = original - sum(allocations) and that no value is negative.
func (l Ledger) Check() error {
	if l.OriginalCommission < 0 || l.AvailableCommission < 0 {
		return fmt.Errorf("ledger holds a negative commission")
	}
	for id, v := range l.SubBrokerCommissions {
		if v < 0 {
			return fmt.Errorf("ledger allocation for %s is negative", id)
		}
	}
	if got, want := l.AvailableCommission, l.Remaining(); got != want {
		return fmt.Errorf("ledger available commission %d does not match remaining %d", got, want)
	}
	return nil
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := l
	out.SubBrokerCommissions = make(map[string]int64, len(l.SubBrokerCommissions))
	for k, v := range l.SubBrokerCommissions {
		out.SubBrokerCommissions[k] = v
	}
	return out
}

// Allocate sets the allocation of subBrokerID to amount (an absolute value, not an
// increment) and returns the updated ledger. The input ledger is never modified.
func Allocate(l Ledger, subBrokerID string, amount int64) (Ledger, error) {
	subBrokerID = strings.TrimSpace(subBrokerID)
	if subBrokerID == "" {
		return Ledger{}, &ValidationError{Field: "sub_broker_id", Reason: "is required"}
	}
	if amount < 0 {
		return Ledger{}, &ValidationError{Field: "commission", Reason: "must not be negative"}
	}

	current := l.SubBrokerCommissions[subBrokerID]
	delta := amount - current
	remaining := l.Remaining()
	if remaining < delta {
		return Ledger{}, &InsufficientCommissionError{Requested: delta, Remaining: remaining}
	}

	next := l.Clone()
	next.SubBrokerCommissions[subBrokerID] = amount
	next.AvailableCommission = remaining - delta
	return next, nil
}

// Revise replaces the original commission. The new value must still cover what has
// already been distributed.
func (l Ledger) Revise(original int64) (Ledger, error) {
	if original < 0 {
		return Ledger{}, &ValidationError{Field: "original_commission", Reason: "must not be negative"}
	}
	allocated := l.TotalAllocated()
	if original < allocated {
		return Ledger{}, &InsufficientCommissionError{Requested: allocated, Remaining: original}
	}
	next := l.Clone()
	next.OriginalCommission = original
	next.AvailableCommission = original - allocated
	return next, nil
}

// jsonNumber is the number grammar of RFC 8259.
var jsonNumber = regexp.MustCompile(`^-?(?:0|[1-9][0-9]*)(?:\.[0-9]+)?(?:[eE]([+-]?[0-9]+))?$`)

const maxExponent = 64

// ParseAmount converts a decoded JSON number into a commission amount, rejecting
// negative and fractional values.
func ParseAmount(raw json.Number) (int64, error) {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return 0, &ValidationError{Field: "commission", Reason: "is required"}
	}
	m := jsonNumber.FindStringSubmatch(s)
	if m == nil {
		return 0, &ValidationError{Field: "commission", Reason: "must be a number"}
	}
	if m[1] != "" {
		exp, err := strconv.Atoi(m[1])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return 0, &ValidationError{Field: "commission", Reason: "is out of range"}
		}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, &ValidationError{Field: "commission", Reason: "must be a number"}
	}
	if !r.IsInt() {
		return 0, &ValidationError{Field: "commission", Reason: "must be a whole number"}
	}
	if r.Sign() < 0 {
		return 0, &ValidationError{Field: "commission", Reason: "must not be negative"}
	}
	n := r.Num()
	if !n.IsInt64() {
		return 0, &ValidationError{Field: "commission", Reason: "is too large"}
	}
	return n.Int64(), nil
}
