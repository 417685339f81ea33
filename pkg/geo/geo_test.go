package geo

import (
	"errors"
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	t.Run("same point", func(t *testing.T) {
		d, err := Distance(12.9716, 77.5946, 12.9716, 77.5946)
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if d != 0 {
			t.Errorf("d = %v, want 0", d)
		}
	})

	t.Run("one degree of longitude on the equator", func(t *testing.T) {
		d, err := Distance(0, 0, 0, 1)
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if d != 111.19 {
			t.Errorf("d = %v, want 111.19", d)
		}
	})

	t.Run("rounded to two decimals", func(t *testing.T) {
		d, err := Distance(0, 0, 0.027, 0)
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if d != 3 {
			t.Errorf("d = %v, want 3", d)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a, err := Distance(28.6139, 77.209, 28.4595, 77.0266)
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		b, err := Distance(28.4595, 77.0266, 28.6139, 77.209)
		if err != nil {
			t.Fatalf("Distance: %v", err)
		}
		if a != b {
			t.Errorf("d(a,b) = %v but d(b,a) = %v", a, b)
		}
		if a < 20 || a > 30 {
			t.Errorf("Delhi-Gurgaon = %v km, expected roughly 24", a)
		}
	})
}

func TestDistanceRejectsInvalidCoordinates(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
	}{
		{"latitude above 90", 91, 0, 0, 0},
		{"latitude below -90", 0, 0, -90.5, 0},
		{"longitude above 180", 0, 181, 0, 0},
		{"longitude below -180", 0, 0, 0, -180.2},
		{"nan latitude", math.NaN(), 0, 0, 0},
		{"nan longitude", 0, 0, 0, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Distance(tc.lat1, tc.lng1, tc.lat2, tc.lng2); !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("err = %v, want ErrInvalidCoordinate", err)
			}
		})
	}
}

func TestWithinRadius(t *testing.T) {
	in, err := WithinRadius(0, 0, 0.027, 0, 6)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if !in {
		t.Error("3 km reported outside a 6 km radius")
	}

	out, err := WithinRadius(0, 0, 0.09, 0, 6)
	if err != nil {
		t.Fatalf("WithinRadius: %v", err)
	}
	if out {
		t.Error("10 km reported inside a 6 km radius")
	}
}
