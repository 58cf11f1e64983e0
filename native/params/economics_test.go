package params

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultEconomicsAreValid(t *testing.T) {
	if err := DefaultEconomics().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Economics{ReserveShareBps: 5_000, ZeroStakePolicy: " Reserve "}.Normalize()
	if got.InflationIntervalSecs != 157_680_000 || got.BuyPrice != 1_000_000 || got.RedeemRate != 700_000 {
		t.Fatalf("unexpected normalized economics %+v", got)
	}
	if got.ZeroStakePolicy != ZeroStakeReserve {
		t.Fatalf("policy = %q, want reserve", got.ZeroStakePolicy)
	}
	if got.ReserveShareBps != 5_000 {
		t.Fatalf("explicit values must be kept")
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := map[string]func(*Economics){
		"ReserveShareBps":       func(e *Economics) { e.ReserveShareBps = 10_001 },
		"FounderShareBps":       func(e *Economics) { e.FounderShareBps = 20_000 },
		"InflationBps":          func(e *Economics) { e.InflationBps = 1_001 },
		"InflationIntervalSecs": func(e *Economics) { e.InflationIntervalSecs = -1 },
		"RedeemRate":            func(e *Economics) { e.RedeemRate = 700_001 },
		"ZeroStakePolicy":       func(e *Economics) { e.ZeroStakePolicy = "burn" },
	}
	for field, mutate := range cases {
		econ := DefaultEconomics()
		mutate(&econ)
		err := econ.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", field)
		}
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("%s: error %q does not name the field", field, err)
		}
	}
}

func TestValidateCapsInflationInterval(t *testing.T) {
	econ := DefaultEconomics()
	econ.InflationIntervalSecs = MaxInflationIntervalSecs
	if err := econ.Validate(); err != nil {
		t.Fatalf("a hundred year interval is valid: %v", err)
	}
	econ.InflationIntervalSecs = math.MaxInt64
	err := econ.Validate()
	if err == nil || !strings.Contains(err.Error(), "InflationIntervalSecs") {
		t.Fatalf("expected interval cap error, got %v", err)
	}
}
