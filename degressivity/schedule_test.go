package degressivity_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/subsidy-engine/degressivity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTransform_ZeroAndNegative(t *testing.T) {
	// GIVEN: the statutory schedule
	// WHEN: transforming zero and a negative amount
	// THEN: both yield zero

	s := degressivity.Default()
	if got := s.Transform(decimal.Zero); !got.Equal(decimal.Zero) {
		t.Errorf("Transform(0) = %s, want 0", got)
	}
	if got := s.Transform(dec("-500")); !got.Equal(decimal.Zero) {
		t.Errorf("Transform(-500) = %s, want 0", got)
	}
}

func TestTransform_FirstTrancheIsIdentity(t *testing.T) {
	// GIVEN: an amount inside the fully retained first tranche
	// WHEN: transforming
	// THEN: the amount is unchanged

	s := degressivity.Default()
	for _, raw := range []string{"1", "12345.67", "20000"} {
		if got := s.Transform(dec(raw)); !got.Equal(dec(raw)) {
			t.Errorf("Transform(%s) = %s, want %s", raw, got, raw)
		}
	}
}

func TestTransform_MarginalTranches(t *testing.T) {
	// GIVEN: 60000 across three tranches
	// WHEN: transforming
	// THEN: 20000×1 + 30000×0.75 + 10000×0.5 = 47500,
	//       never 60000 × a single marginal rate

	s := degressivity.Default()
	got := s.Transform(dec("60000"))
	if !got.Equal(dec("47500")) {
		t.Errorf("Transform(60000) = %s, want 47500", got)
	}
}

func TestTransform_BoundaryContinuity(t *testing.T) {
	// GIVEN: amounts straddling each tranche floor
	// WHEN: transforming both sides of the boundary
	// THEN: outputs differ by at most the input step × the higher rate

	s := degressivity.Default()
	eps := dec("0.01")
	for _, floor := range []string{"20000", "50000", "75000"} {
		below := s.Transform(dec(floor).Sub(eps))
		at := s.Transform(dec(floor))
		above := s.Transform(dec(floor).Add(eps))

		if at.Sub(below).GreaterThan(eps) {
			t.Errorf("jump below floor %s: %s -> %s", floor, below, at)
		}
		if above.Sub(at).GreaterThan(eps) {
			t.Errorf("jump above floor %s: %s -> %s", floor, at, above)
		}
	}
}

func TestTransform_AbsoluteCap(t *testing.T) {
	// GIVEN: an amount whose tranche sum exceeds the cap
	// WHEN: transforming
	// THEN: the cap wins

	s := degressivity.Default()
	// 20000 + 22500 + 12500 + 0.25×(500000−75000) = 161250 before the cap.
	got := s.Transform(dec("500000"))
	if !got.Equal(dec("100000")) {
		t.Errorf("Transform(500000) = %s, want capped 100000", got)
	}
}

func TestTransform_Monotone(t *testing.T) {
	// GIVEN: increasing raw amounts
	// WHEN: transforming each
	// THEN: outputs never decrease

	s := degressivity.Default()
	prev := decimal.Zero
	for _, raw := range []string{"0", "100", "19999", "20001", "49999",
		"50001", "74999", "75001", "100000", "400000", "1000000"} {
		got := s.Transform(dec(raw))
		if got.LessThan(prev) {
			t.Errorf("Transform(%s) = %s dropped below previous %s", raw, got, prev)
		}
		prev = got
	}
}

func TestIdentity_RetainsEverything(t *testing.T) {
	s := degressivity.Identity()
	if got := s.Transform(dec("999999")); !got.Equal(dec("999999")) {
		t.Errorf("identity Transform(999999) = %s", got)
	}
}

func TestValidate_RejectsBrokenSchedules(t *testing.T) {
	cases := []struct {
		name string
		s    degressivity.Schedule
		want error
	}{
		{
			name: "empty",
			s:    degressivity.Schedule{},
			want: degressivity.ErrEmptySchedule,
		},
		{
			name: "nonzero first floor",
			s: degressivity.Schedule{Tranches: []degressivity.Tranche{
				{Floor: dec("10"), Rate: dec("1")},
			}},
			want: degressivity.ErrInvalidSchedule,
		},
		{
			name: "rate above one",
			s: degressivity.Schedule{Tranches: []degressivity.Tranche{
				{Floor: decimal.Zero, Rate: dec("1.5")},
			}},
			want: degressivity.ErrInvalidSchedule,
		},
		{
			name: "floors out of order",
			s: degressivity.Schedule{Tranches: []degressivity.Tranche{
				{Floor: decimal.Zero, Rate: dec("1")},
				{Floor: dec("5000"), Rate: dec("0.5")},
				{Floor: dec("5000"), Rate: dec("0.25")},
			}},
			want: degressivity.ErrInvalidSchedule,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.s.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidate_AcceptsStatutorySchedule(t *testing.T) {
	if err := degressivity.Default().Validate(); err != nil {
		t.Errorf("statutory schedule failed validation: %v", err)
	}
}
