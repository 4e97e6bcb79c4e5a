package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// SMA(3) for [10,11,12,13,14,15]:
	// [0] = (10+11+12)/3 = 11
	// [3] = (13+14+15)/3 = 14
	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	if got := SMA([]float64{10, 11}, 5); len(got) != 0 {
		t.Errorf("expected empty slice, got %d values", len(got))
	}
	if got := SMA([]float64{10, 11}, 0); len(got) != 0 {
		t.Errorf("expected empty slice for zero period, got %d values", len(got))
	}
}

func TestTail(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	if got := Tail(prices, 2); len(got) != 2 || got[0] != 4 {
		t.Errorf("Tail(2) = %v", got)
	}
	if got := Tail(prices, 10); len(got) != 5 {
		t.Errorf("Tail(10) = %v", got)
	}
	if got := Tail(prices, 0); len(got) != 0 {
		t.Errorf("Tail(0) = %v", got)
	}
}

func TestMeanStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(values); got != 5 {
		t.Errorf("Mean = %f, want 5", got)
	}

	// sample variance = 32/7
	want := math.Sqrt(32.0 / 7.0)
	if got := StdDev(values); !almostEqual(got, want, 1e-12) {
		t.Errorf("StdDev = %f, want %f", got, want)
	}

	if !math.IsNaN(Mean(nil)) {
		t.Error("Mean(nil) should be NaN")
	}
	if !math.IsNaN(StdDev([]float64{1})) {
		t.Error("StdDev of one value should be NaN")
	}
}

func TestMaxMin(t *testing.T) {
	values := []float64{3, 9, -2, 4}
	if Max(values) != 9 {
		t.Errorf("Max = %f", Max(values))
	}
	if Min(values) != -2 {
		t.Errorf("Min = %f", Min(values))
	}
	if !math.IsNaN(Max(nil)) || !math.IsNaN(Min(nil)) {
		t.Error("empty input should give NaN")
	}
}

func TestSlope(t *testing.T) {
	if got := Slope([]float64{1, 3, 5, 7}); !almostEqual(got, 2, 1e-12) {
		t.Errorf("Slope = %f, want 2", got)
	}
	if got := Slope([]float64{5}); got != 0 {
		t.Errorf("Slope of one value = %f, want 0", got)
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
