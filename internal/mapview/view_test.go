package mapview

import (
	"math"
	"net/url"
	"testing"

	"github.com/onnwee/shopfinder/internal/geo"
	"github.com/onnwee/shopfinder/internal/shop"
)

var (
	berlin   = geo.Coordinate{Latitude: 52.52, Longitude: 13.405}
	potsdam  = geo.Coordinate{Latitude: 52.3906, Longitude: 13.0645}
	fallback = geo.Coordinate{Latitude: 1, Longitude: 2}
)

func testShops() []shop.Shop {
	return []shop.Shop{
		{PlaceID: "p1", Name: "Alpha", Location: potsdam},
		{PlaceID: "p2", Name: "Beta", Location: berlin},
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name   string
		origin *geo.Coordinate
		shops  []shop.Shop
		pick   int
		want   geo.Coordinate
	}{
		{"fallback when empty", nil, nil, -1, fallback},
		{"first shop without origin", nil, testShops(), -1, potsdam},
		{"origin over list", &berlin, testShops(), -1, berlin},
		{"selection over origin", &berlin, testShops(), 0, potsdam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(Config{Fallback: fallback})
			if tt.origin != nil {
				v.SetOrigin(*tt.origin)
			}
			v.Sync(tt.shops)
			if tt.pick >= 0 {
				if _, err := v.SelectIndex(tt.pick); err != nil {
					t.Fatal(err)
				}
			}
			if got := v.Center(); got != tt.want {
				t.Errorf("Center() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSync_DropsVanishedSelection(t *testing.T) {
	v := New(Config{})
	v.Sync(testShops())
	v.Select(testShops()[1])

	v.Sync(testShops())
	if _, ok := v.Selected(); !ok {
		t.Fatal("selection should survive a sync that still lists it")
	}

	v.Sync(testShops()[:1])
	if _, ok := v.Selected(); ok {
		t.Error("selection should be cleared when the shop leaves the list")
	}
}

func TestSelectIndex_OutOfRange(t *testing.T) {
	v := New(Config{})
	v.Sync(testShops())
	if _, err := v.SelectIndex(5); err == nil {
		t.Error("expected error for index past the list")
	}
	if _, err := v.SelectIndex(-1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestDistanceToSelected(t *testing.T) {
	v := New(Config{})
	v.Sync(testShops())
	v.Select(testShops()[0])

	if _, ok := v.DistanceToSelected(); ok {
		t.Error("distance needs an origin")
	}

	v.SetOrigin(berlin)
	d, ok := v.DistanceToSelected()
	if !ok {
		t.Fatal("expected a distance")
	}
	if math.Abs(d-v.DistanceKm(berlin, potsdam)) > 1e-9 {
		t.Errorf("distance = %v", d)
	}
	if d < 25 || d > 30 {
		t.Errorf("Berlin to Potsdam = %.2f km, want about 27", d)
	}
}

func TestDirectionsURL(t *testing.T) {
	v := New(Config{})
	raw := v.DirectionsURL(berlin, testShops()[0])

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	if u.Host != "www.google.com" || u.Path != "/maps/dir/" {
		t.Errorf("url = %s", raw)
	}
	q := u.Query()
	want := map[string]string{
		"api":                  "1",
		"origin":               berlin.String(),
		"destination":          potsdam.String(),
		"destination_place_id": "p1",
	}
	for k, w := range want {
		if q.Get(k) != w {
			t.Errorf("%s = %q, want %q", k, q.Get(k), w)
		}
	}
}

func TestDirectionsToSelected(t *testing.T) {
	v := New(Config{DirectionsBaseURL: "https://maps.example/dir/"})
	v.Sync(testShops())
	v.Select(testShops()[1])

	if _, ok := v.DirectionsToSelected(); ok {
		t.Error("directions need an origin")
	}
	v.SetOrigin(potsdam)
	link, ok := v.DirectionsToSelected()
	if !ok {
		t.Fatal("expected a link")
	}
	u, _ := url.Parse(link)
	if u.Host != "maps.example" || u.Query().Get("destination_place_id") != "p2" {
		t.Errorf("link = %s", link)
	}
}
