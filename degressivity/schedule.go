/*
Package degressivity implements the progressive reduction and absolute
cap applied to raw per-holding payment amounts.

PURPOSE:
  Large raw amounts are reduced tranche by tranche, the way a progressive
  tax bracket works: each tranche's own span is retained at its own rate
  and the pieces are summed. The whole amount is NEVER multiplied by a
  single marginal rate. After the tranches, an absolute ceiling applies.

STATUTORY SCHEDULE (currency units):
  [     0,  20000)  retained at 100%
  [ 20000,  50000)  retained at  75%
  [ 50000,  75000)  retained at  50%
  [ 75000,      ∞)  retained at  25%
  cap: min(sum, 100000)

PROPERTIES (relied on by the calibration solver):
  - transform(0) = 0
  - monotone non-decreasing
  - continuous at every tranche boundary

USAGE:
  s := degressivity.Default()
  net := s.Transform(decimal.NewFromInt(60000)) // 20000 + 22500 + 5000
*/
package degressivity

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptySchedule is returned when a schedule has no tranches.
	ErrEmptySchedule = errors.New("degressivity schedule has no tranches")

	// ErrInvalidSchedule is returned when tranche floors are out of order,
	// the first floor is nonzero, or a retention rate leaves [0, 1].
	ErrInvalidSchedule = errors.New("invalid degressivity schedule")
)

// Tranche retains the span of a raw amount above Floor (up to the next
// tranche's floor) at Rate.
type Tranche struct {
	Floor decimal.Decimal
	Rate  decimal.Decimal
}

// Schedule is an ordered list of tranches plus an optional absolute cap.
type Schedule struct {
	Tranches []Tranche
	Cap      decimal.NullDecimal
}

// Default returns the statutory schedule.
func Default() Schedule {
	return Schedule{
		Tranches: []Tranche{
			{Floor: decimal.Zero, Rate: rate("1")},
			{Floor: decimal.NewFromInt(20000), Rate: rate("0.75")},
			{Floor: decimal.NewFromInt(50000), Rate: rate("0.5")},
			{Floor: decimal.NewFromInt(75000), Rate: rate("0.25")},
		},
		Cap: decimal.NullDecimal{Decimal: decimal.NewFromInt(100000), Valid: true},
	}
}

// Identity returns a schedule that retains every amount in full. Used by
// scenarios that switch degressivity off.
func Identity() Schedule {
	return Schedule{Tranches: []Tranche{{Floor: decimal.Zero, Rate: rate("1")}}}
}

// Validate checks the structural invariants the transform relies on.
func (s Schedule) Validate() error {
	if len(s.Tranches) == 0 {
		return ErrEmptySchedule
	}
	if s.Tranches[0].Floor.Sign() != 0 {
		return fmt.Errorf("%w: first tranche floor must be zero, got %s",
			ErrInvalidSchedule, s.Tranches[0].Floor)
	}
	for i, t := range s.Tranches {
		if t.Rate.Sign() < 0 || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: tranche %d rate %s outside [0, 1]",
				ErrInvalidSchedule, i, t.Rate)
		}
		if i > 0 && !t.Floor.GreaterThan(s.Tranches[i-1].Floor) {
			return fmt.Errorf("%w: tranche floors must be strictly increasing at index %d",
				ErrInvalidSchedule, i)
		}
	}
	return nil
}

// Transform maps a raw amount to its reduced, capped amount. Negative
// input is treated as zero.
func (s Schedule) Transform(raw decimal.Decimal) decimal.Decimal {
	if raw.Sign() <= 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for i, t := range s.Tranches {
		if raw.LessThanOrEqual(t.Floor) {
			break
		}
		span := raw.Sub(t.Floor)
		if i+1 < len(s.Tranches) {
			width := s.Tranches[i+1].Floor.Sub(t.Floor)
			span = decimal.Min(span, width)
		}
		sum = sum.Add(span.Mul(t.Rate))
	}

	if s.Cap.Valid {
		sum = decimal.Min(sum, s.Cap.Decimal)
	}
	return sum
}

func rate(s string) decimal.Decimal { return decimal.RequireFromString(s) }
