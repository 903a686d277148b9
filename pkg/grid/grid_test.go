package grid

import (
	"math"
	"testing"

	"github.com/geoturtle/turtle/pkg/turtleerr"
)

func init() {
	turtleerr.SetHandler(func(e *turtleerr.Error) {})
}

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func buildS3Grid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(3, 3, 0, 2, 0, 2, 0, 4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if err := g.Fill(i, j, float64(i+j)); err != nil {
				t.Fatalf("Fill(%d,%d): %v", i, j, err)
			}
		}
	}
	return g
}

func TestS3MapBilinear(t *testing.T) {
	g := buildS3Grid(t)

	z, inside, err := g.Elevation(0.5, 0.5, true)
	if err != nil || !inside {
		t.Fatalf("Elevation(0.5,0.5) = %v, %v, %v", z, inside, err)
	}
	if !almostEqual(z, 1.0, g.QuantisationStep()) {
		t.Fatalf("Elevation(0.5,0.5) = %v, want 1.0", z)
	}

	z, inside, err = g.Elevation(2.0, 2.0, true)
	if err != nil || !inside {
		t.Fatalf("Elevation(2,2) = %v, %v, %v", z, inside, err)
	}
	if !almostEqual(z, 4.0, 1e-9) {
		t.Fatalf("Elevation(2,2) = %v, want 4.0", z)
	}

	z, inside, err = g.Elevation(-0.1, 0.5, true)
	if err != nil {
		t.Fatalf("Elevation(-0.1,0.5): %v", err)
	}
	if inside {
		t.Fatalf("Elevation(-0.1,0.5) inside = true, want false")
	}
}

func TestElevationOutsideFailsWithoutInsideFlag(t *testing.T) {
	g := buildS3Grid(t)
	_, _, err := g.Elevation(-0.1, 0.5, false)
	if err == nil {
		t.Fatalf("expected DomainError")
	}
	te, ok := turtleerr.As(err)
	if !ok || te.Kind != turtleerr.DomainError {
		t.Fatalf("expected DomainError, got %v", err)
	}
}

func TestInvariant1NodeEqualsStored(t *testing.T) {
	g := buildS3Grid(t)
	tol := g.QuantisationStep()

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			x, y, zStored, err := g.Node(i, j)
			if err != nil {
				t.Fatalf("Node: %v", err)
			}
			z, inside, err := g.Elevation(x, y, true)
			if err != nil || !inside {
				t.Fatalf("Elevation at node (%d,%d): %v %v %v", i, j, z, inside, err)
			}
			if !almostEqual(z, zStored, tol) {
				t.Fatalf("node (%d,%d): elevation %v != stored %v (tol %v)", i, j, z, zStored, tol)
			}
		}
	}
}

func TestInvariant2EdgeMidpointIsAverage(t *testing.T) {
	g := buildS3Grid(t)
	// Midpoint between node (0,0)=0 and node (1,0)=1 sits at x=0.5.
	_, _, z0, _ := g.Node(0, 0)
	_, _, z1, _ := g.Node(1, 0)
	x0, y0, _, _ := g.Node(0, 0)
	x1, _, _, _ := g.Node(1, 0)

	mid, inside, err := g.Elevation((x0+x1)/2, y0, true)
	if err != nil || !inside {
		t.Fatalf("Elevation at edge midpoint: %v %v %v", mid, inside, err)
	}
	want := (z0 + z1) / 2
	if !almostEqual(mid, want, g.QuantisationStep()) {
		t.Fatalf("edge midpoint = %v, want average %v", mid, want)
	}
}

func TestInvariant3QuantisationRoundTrip(t *testing.T) {
	g, err := New(2, 2, 0, 1, 0, 1, -100, 8848, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tol := g.QuantisationStep()

	for _, z := range []float64{-100, -50, 0, 123.456, 4000, 8848} {
		if err := g.Fill(0, 0, z); err != nil {
			t.Fatalf("Fill: %v", err)
		}
		_, _, zRead, err := g.Node(0, 0)
		if err != nil {
			t.Fatalf("Node: %v", err)
		}
		if !almostEqual(z, zRead, tol) {
			t.Fatalf("round-trip z=%v got %v (tol %v)", z, zRead, tol)
		}
	}
}

func TestFillRejectsOutOfRange(t *testing.T) {
	g := buildS3Grid(t)
	if err := g.Fill(0, 0, 100); err == nil {
		t.Fatalf("expected DomainError for out-of-range z")
	}
	if err := g.Fill(5, 0, 1); err == nil {
		t.Fatalf("expected DomainError for out-of-range index")
	}
}

func TestNewRejectsDegenerateDimensions(t *testing.T) {
	if _, err := New(1, 2, 0, 1, 0, 1, 0, 1, nil); err == nil {
		t.Fatalf("expected DomainError for nx=1")
	}
	if _, err := New(2, 2, 1, 0, 0, 1, 0, 1, nil); err == nil {
		t.Fatalf("expected DomainError for inverted x range")
	}
}
