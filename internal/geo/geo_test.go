package geo

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinate
		want float64
		tol  float64
	}{
		{
			name: "same point",
			a:    Coordinate{Latitude: 40.7128, Longitude: -74.006},
			b:    Coordinate{Latitude: 40.7128, Longitude: -74.006},
			want: 0,
			tol:  1e-9,
		},
		{
			name: "one degree of latitude",
			a:    Coordinate{Latitude: 0, Longitude: 0},
			b:    Coordinate{Latitude: 1, Longitude: 0},
			want: 111.195,
			tol:  0.01,
		},
		{
			name: "london to paris",
			a:    Coordinate{Latitude: 51.5074, Longitude: -0.1278},
			b:    Coordinate{Latitude: 48.8566, Longitude: 2.3522},
			want: 343.5,
			tol:  1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceKm() = %f, want %f ± %f", got, tt.want, tt.tol)
			}
			if back := DistanceKm(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Errorf("DistanceKm not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestNewCoordinate(t *testing.T) {
	if _, err := NewCoordinate(91, 0); err == nil {
		t.Error("expected error for latitude 91")
	}
	if _, err := NewCoordinate(0, -181); err == nil {
		t.Error("expected error for longitude -181")
	}
	c, err := NewCoordinate(-33.8688, 151.2093)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.String() != "-33.868800,151.209300" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestEncode(t *testing.T) {
	c := Coordinate{Latitude: 57.64911, Longitude: 10.40744}
	if got := Encode(c, 11); got != "u4pruydqqvj" {
		t.Errorf("Encode() = %q, want u4pruydqqvj", got)
	}
	if got := Encode(c, 0); got != "u4pruy" {
		t.Errorf("Encode() with default precision = %q, want u4pruy", got)
	}
	if got := Coarse(nil); got != "none" {
		t.Errorf("Coarse(nil) = %q", got)
	}
}

func TestProbe_SingleRequest(t *testing.T) {
	var calls int32
	locator := LocatorFunc(func(ctx context.Context) (Coordinate, error) {
		atomic.AddInt32(&calls, 1)
		return Coordinate{Latitude: 1, Longitude: 2}, nil
	})

	p := NewProbe(locator, nil)
	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("probe did not resolve")
	}
	p.Start(ctx)

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("locator called %d times, want 1", n)
	}
	loc, ok := p.Location()
	if !ok {
		t.Fatal("expected a location")
	}
	if loc.Latitude != 1 || loc.Longitude != 2 {
		t.Errorf("Location() = %+v", loc)
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v", p.Err())
	}
}

func TestProbe_FailureIsNotRetried(t *testing.T) {
	var calls int32
	denied := errors.New("permission denied")
	locator := LocatorFunc(func(ctx context.Context) (Coordinate, error) {
		atomic.AddInt32(&calls, 1)
		return Coordinate{}, denied
	})

	p := NewProbe(locator, nil)
	p.Start(context.Background())
	<-p.Done()
	p.Start(context.Background())

	if _, ok := p.Location(); ok {
		t.Error("expected no location after failure")
	}
	if !errors.Is(p.Err(), denied) {
		t.Errorf("Err() = %v, want %v", p.Err(), denied)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("locator called %d times, want 1", n)
	}
}

func TestProbe_InvalidCoordinateTreatedAsUnavailable(t *testing.T) {
	p := NewProbe(StaticLocator{Position: Coordinate{Latitude: 200}}, nil)
	p.Start(context.Background())
	<-p.Done()

	if !errors.Is(p.Err(), ErrLocationUnavailable) {
		t.Errorf("Err() = %v, want ErrLocationUnavailable", p.Err())
	}
}

func TestProbe_PendingHasNoLocation(t *testing.T) {
	release := make(chan struct{})
	p := NewProbe(LocatorFunc(func(ctx context.Context) (Coordinate, error) {
		<-release
		return Coordinate{Latitude: 3, Longitude: 4}, nil
	}), nil)
	p.Start(context.Background())

	if _, ok := p.Location(); ok {
		t.Error("expected no location while pending")
	}
	close(release)
	<-p.Done()
	if _, ok := p.Location(); !ok {
		t.Error("expected location after resolve")
	}
}
