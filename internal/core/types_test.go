package core

import (
	"testing"
	"time"
)

func TestPricePoint_IsValid(t *testing.T) {
	p := PricePoint{Time: time.Now(), Price: 82.4}
	if !p.IsValid() {
		t.Error("expected valid point")
	}

	if (PricePoint{Time: time.Now(), Price: 0}).IsValid() {
		t.Error("zero price should be invalid")
	}
	if (PricePoint{Price: 10}).IsValid() {
		t.Error("zero time should be invalid")
	}
}

func TestPredictionPoint_IsValid(t *testing.T) {
	lo, hi := 95.0, 110.0
	bad := 120.0

	tests := []struct {
		name string
		p    PredictionPoint
		want bool
	}{
		{"no interval", PredictionPoint{Predicted: 100}, true},
		{"inside interval", PredictionPoint{Predicted: 100, Lower: &lo, Upper: &hi}, true},
		{"outside interval", PredictionPoint{Predicted: 100, Lower: &bad, Upper: &hi}, false},
		{"half interval", PredictionPoint{Predicted: 100, Lower: &lo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAction_Constants(t *testing.T) {
	actions := []Action{ActionBuy, ActionSell, ActionHold}
	expected := []string{"buy", "sell", "hold"}

	for i, a := range actions {
		if string(a) != expected[i] {
			t.Errorf("expected %s, got %s", expected[i], a)
		}
	}
}

func TestAction_Direction(t *testing.T) {
	if ActionBuy.Direction() != 1 || ActionSell.Direction() != -1 || ActionHold.Direction() != 0 {
		t.Error("unexpected action directions")
	}
}

func TestPrices(t *testing.T) {
	now := time.Now()
	got := Prices([]PricePoint{{Time: now, Price: 1}, {Time: now, Price: 2}})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Prices() = %v", got)
	}
}
