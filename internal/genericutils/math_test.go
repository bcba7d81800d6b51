package genericutils

import (
	"testing"
	"time"
)

func TestMinMax(t *testing.T) {
	if got := Max(3, 9, 1); got != 9 {
		t.Errorf("got %d, want 9", got)
	}
	if got := Min("b", "a", "c"); got != "a" {
		t.Errorf("got %q, want %q", got, "a")
	}
	if got := Max(time.Second, time.Minute); got != time.Minute {
		t.Errorf("got %v, want %v", got, time.Minute)
	}
}

func TestDivCeil(t *testing.T) {
	tests := []struct{ a, b, want int }{{0, 8, 0}, {1, 8, 1}, {8, 8, 1}, {9, 8, 2}, {16385, 16384, 2}}
	for _, test := range tests {
		if got := DivCeil(test.a, test.b); got != test.want {
			t.Errorf("DivCeil(%d, %d) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestPowerOfTwoCeil(t *testing.T) {
	tests := []struct{ n, want uint8 }{{0, 1}, {1, 1}, {3, 4}, {4, 4}, {5, 8}, {7, 8}, {9, 16}}
	for _, test := range tests {
		if got := PowerOfTwoCeil(test.n); got != test.want {
			t.Errorf("PowerOfTwoCeil(%d) = %d, want %d", test.n, got, test.want)
		}
	}
}
