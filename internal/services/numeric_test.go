package services

import (
	"math"
	"testing"

	"github.com/yungbote/liftlog-backend/internal/types"
)

func TestCoerceNumberStrings(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  *float64
	}{
		{name: "decimal_point", input: "7.5", want: f(7.5)},
		{name: "decimal_comma", input: "7,5", want: f(7.5)},
		{name: "middle_dot", input: "7·5", want: f(7.5)},
		{name: "arabic_separator", input: "7٫5", want: f(7.5)},
		{name: "empty_string", input: "", want: nil},
		{name: "nil", input: nil, want: nil},
		{name: "garbage", input: "abc", want: nil},
		{name: "units_stripped", input: "135 lbs", want: f(135)},
		{name: "negative", input: "-12,5", want: f(-12.5)},
		{name: "double_dot_defensive", input: "7.5.2", want: f(7.52)},
		{name: "already_float", input: 61.2, want: f(61.2)},
		{name: "already_int", input: 8, want: f(8)},
		{name: "nan", input: math.NaN(), want: nil},
		{name: "inf", input: math.Inf(1), want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CoerceNumber(tc.input)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("CoerceNumber(%v): want=%v got=%v", tc.input, tc.want, got)
			}
			if got != nil && math.Abs(*got-*tc.want) > 1e-9 {
				t.Fatalf("CoerceNumber(%v): want=%v got=%v", tc.input, *tc.want, *got)
			}
		})
	}
}

func TestCoerceReps(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  *int
	}{
		{name: "valid", input: "10", want: i(10)},
		{name: "rounds", input: 7.6, want: i(8)},
		{name: "zero_is_absent", input: 0, want: nil},
		{name: "negative_is_absent", input: -3, want: nil},
		{name: "below_one_is_absent", input: 0.4, want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CoerceReps(tc.input)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("CoerceReps(%v): want=%v got=%v", tc.input, tc.want, got)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("CoerceReps(%v): want=%d got=%d", tc.input, *tc.want, *got)
			}
		})
	}
}

func TestUnitRoundTrip(t *testing.T) {
	for _, kg := range []float64{0, 20, 61.2, 102.5, 250} {
		back := LbToKg(KgToLb(kg))
		if math.Abs(back-kg) > 0.01 {
			t.Fatalf("round trip for %v kg: got %v", kg, back)
		}
	}
}

func TestToKg(t *testing.T) {
	if got := Round2(ToKg(135, types.WeightUnitLb)); math.Abs(got-61.24) > 0.01 {
		t.Fatalf("ToKg(135, lb): want=61.24 got=%v", got)
	}
	if got := ToKg(100, types.WeightUnitKg); got != 100 {
		t.Fatalf("ToKg(100, kg): want=100 got=%v", got)
	}
}

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }
