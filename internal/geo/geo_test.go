package geo

import (
	"math"
	"testing"
)

func TestDistanceNM(t *testing.T) {
	t.Run("zero distance for identical points", func(t *testing.T) {
		p := Point{Latitude: -33.9461, Longitude: 151.1772}
		d := DistanceNM(p, p)
		if d != 0 {
			t.Errorf("Expected 0nm, got %v", d)
		}
	})

	t.Run("Sydney to Canberra is roughly 130nm", func(t *testing.T) {
		syd := Point{Latitude: -33.9461, Longitude: 151.1772}
		cbr := Point{Latitude: -35.3069, Longitude: 149.1950}
		d := DistanceNM(syd, cbr)
		if d < 120 || d > 145 {
			t.Errorf("Expected ~130nm between SYD and CBR, got %v", d)
		}
	})

	t.Run("antipodal points do not panic on cosine clamp", func(t *testing.T) {
		a := Point{Latitude: 10, Longitude: 20}
		b := Point{Latitude: -10, Longitude: -160}
		d := DistanceNM(a, b)
		if math.IsNaN(d) {
			t.Error("Expected a finite distance, got NaN")
		}
	})
}

func TestPointInPolygon(t *testing.T) {
	square := [][2]float64{
		{150.0, -27.0},
		{155.0, -27.0},
		{155.0, -30.0},
		{150.0, -30.0},
	}

	t.Run("point inside", func(t *testing.T) {
		if !PointInPolygon(Point{Latitude: -28.0, Longitude: 152.0}, square) {
			t.Error("Expected point to be inside the square")
		}
	})

	t.Run("point outside", func(t *testing.T) {
		if PointInPolygon(Point{Latitude: -40.0, Longitude: 152.0}, square) {
			t.Error("Expected point to be outside the square")
		}
	})

	t.Run("degenerate ring rejected", func(t *testing.T) {
		if PointInPolygon(Point{Latitude: 0, Longitude: 0}, [][2]float64{{0, 0}, {1, 1}}) {
			t.Error("Expected a 2-point ring to never contain anything")
		}
	})
}

func TestParseLatitude(t *testing.T) {
	t.Run("plain decimal", func(t *testing.T) {
		v, err := ParseLatitude("-33.9461")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(v-(-33.9461)) > 1e-9 {
			t.Errorf("Expected -33.9461, got %v", v)
		}
	})

	t.Run("packed DMS positive", func(t *testing.T) {
		v, err := ParseLatitude("334523.000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 33 + 45.0/60.0 + 23.0/3600.0
		if math.Abs(v-want) > 1e-6 {
			t.Errorf("Expected %v, got %v", want, v)
		}
	})

	t.Run("zero DMS with explicit positive sign", func(t *testing.T) {
		v, err := ParseLatitude("+000000.000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 0.0 {
			t.Errorf("Expected 0.0, got %v", v)
		}
	})

	t.Run("zero DMS with explicit negative sign", func(t *testing.T) {
		v, err := ParseLatitude("-000000.000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 0.0 {
			t.Errorf("Expected 0.0, got %v", v)
		}
	})

	t.Run("five-digit value is out of range, not a DMS form", func(t *testing.T) {
		_, err := ParseLatitude("12345.000")
		if err == nil {
			t.Fatal("expected an error for 12345.000")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseLatitude("")
		if err == nil {
			t.Fatal("expected an error for empty input")
		}
	})
}

func TestParseLongitude(t *testing.T) {
	t.Run("plain decimal", func(t *testing.T) {
		v, err := ParseLongitude("151.1772")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(v-151.1772) > 1e-9 {
			t.Errorf("Expected 151.1772, got %v", v)
		}
	})

	t.Run("packed DMS", func(t *testing.T) {
		v, err := ParseLongitude("1511046.000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := 151 + 10.0/60.0 + 46.0/3600.0
		if math.Abs(v-want) > 1e-6 {
			t.Errorf("Expected %v, got %v", want, v)
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		_, err := ParseLongitude("200.0")
		if err == nil {
			t.Fatal("expected an error for longitude > 180")
		}
	})
}

func TestLoadPolygon(t *testing.T) {
	t.Run("missing file returns error", func(t *testing.T) {
		_, err := LoadPolygon("/nonexistent/boundary.json")
		if err == nil {
			t.Fatal("expected an error for a missing file")
		}
	})
}
