package projection

import (
	"math"
	"testing"

	"github.com/geoturtle/turtle/pkg/turtleerr"
)

func init() {
	turtleerr.SetHandler(func(e *turtleerr.Error) {})
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestS2UTMRoundTrip(t *testing.T) {
	p, err := Parse("UTM 31N")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name() != "UTM 31N" {
		t.Fatalf("Name() = %q, want %q", p.Name(), "UTM 31N")
	}

	x, y, err := p.Forward(45.0, 3.0)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	lat, lon, err := p.Inverse(x, y)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}

	if !almostEqual(lat, 45.0, 1e-8) {
		t.Fatalf("lat round-trip = %v, want 45.0", lat)
	}
	if !almostEqual(lon, 3.0, 1e-8) {
		t.Fatalf("lon round-trip = %v, want 3.0", lon)
	}
}

func TestUTMFromCentralLongitude(t *testing.T) {
	p, err := Parse("UTM 2.5S")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name() != "UTM 2.5S" {
		t.Fatalf("Name() = %q, want %q", p.Name(), "UTM 2.5S")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []string{"", "Mercator", "UTM", "UTM 61N", "UTM 0N", "Lambert", "Lambert V"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(name); err == nil {
				t.Fatalf("Parse(%q) succeeded, want BadProjection", name)
			}
		})
	}
}

func TestLambertVariantsRoundTrip(t *testing.T) {
	for _, variant := range []string{"I", "II", "IIe", "III", "IV", "93"} {
		t.Run(variant, func(t *testing.T) {
			p, err := Parse("Lambert " + variant)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			lat, lon := 46.5, 2.5
			x, y, err := p.Forward(lat, lon)
			if err != nil {
				t.Fatalf("Forward: %v", err)
			}
			lat2, lon2, err := p.Inverse(x, y)
			if err != nil {
				t.Fatalf("Inverse: %v", err)
			}
			if !almostEqual(lat, lat2, 1e-6) {
				t.Fatalf("lat round-trip = %v, want %v", lat2, lat)
			}
			if !almostEqual(lon, lon2, 1e-6) {
				t.Fatalf("lon round-trip = %v, want %v", lon2, lon)
			}
		})
	}
}

func TestNoneIsIdentity(t *testing.T) {
	var p None
	x, y, _ := p.Forward(45.0, 3.0)
	if x != 3.0 || y != 45.0 {
		t.Fatalf("None.Forward(45,3) = (%v,%v), want (3,45)", x, y)
	}
	lat, lon, _ := p.Inverse(x, y)
	if lat != 45.0 || lon != 3.0 {
		t.Fatalf("None.Inverse round-trip failed: (%v,%v)", lat, lon)
	}
}
