package market

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/optfolio/optfolio/internal/core"
)

func testSnapshots(n int) []Snapshot {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	snaps := make([]Snapshot, 0, n)
	for i := 0; i < n; i++ {
		snaps = append(snaps, Snapshot{
			Time: start.AddDate(0, 0, i),
			Obs: map[string]Observation{
				"AAA": {Price: 100 + float64(i), Return: 0.01, Volume: 1000},
				"BBB": {Price: 50, Return: -0.005, Volume: 2000},
			},
		})
	}
	return snaps
}

func TestNewSeries(t *testing.T) {
	s, err := NewSeries(testSnapshots(5))
	if err != nil {
		t.Fatalf("NewSeries() error = %v", err)
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	assets := s.Assets()
	if len(assets) != 2 || assets[0] != "AAA" || assets[1] != "BBB" {
		t.Errorf("Assets() = %v, want [AAA BBB]", assets)
	}
}

func TestNewSeriesEmpty(t *testing.T) {
	if _, err := NewSeries(nil); !errors.Is(err, core.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestNewSeriesMissingAsset(t *testing.T) {
	snaps := testSnapshots(3)
	delete(snaps[1].Obs, "BBB")

	_, err := NewSeries(snaps)
	if !errors.Is(err, core.ErrInsufficientHistory) {
		t.Errorf("error = %v, want ErrInsufficientHistory", err)
	}
}

func TestNewSeriesUnorderedTimestamps(t *testing.T) {
	snaps := testSnapshots(3)
	snaps[2].Time = snaps[0].Time

	if _, err := NewSeries(snaps); !errors.Is(err, core.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestNewSeriesNonFinite(t *testing.T) {
	snaps := testSnapshots(3)
	snaps[1].Obs["AAA"] = Observation{Price: 100, Return: math.NaN()}

	if _, err := NewSeries(snaps); !errors.Is(err, core.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestWindowBounds(t *testing.T) {
	s, err := NewSeries(testSnapshots(10))
	if err != nil {
		t.Fatal(err)
	}

	w, err := s.Window(9, 5)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if w.Len() != 5 {
		t.Errorf("window Len() = %d, want 5", w.Len())
	}
	if !w.Now().Equal(s.Time(9)) {
		t.Errorf("window Now() = %v, want %v", w.Now(), s.Time(9))
	}
}

func TestWindowInsufficientHistory(t *testing.T) {
	s, err := NewSeries(testSnapshots(5))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Window(2, 10)
	if !errors.Is(err, core.ErrInsufficientHistory) {
		t.Errorf("error = %v, want ErrInsufficientHistory", err)
	}
}

func TestIndexAtOrAfter(t *testing.T) {
	s, err := NewSeries(testSnapshots(5))
	if err != nil {
		t.Fatal(err)
	}

	if got := s.IndexAtOrAfter(s.Time(2)); got != 2 {
		t.Errorf("IndexAtOrAfter(exact) = %d, want 2", got)
	}
	if got := s.IndexAtOrAfter(s.Time(2).Add(time.Hour)); got != 3 {
		t.Errorf("IndexAtOrAfter(between) = %d, want 3", got)
	}
	if got := s.IndexAtOrAfter(s.Time(4).AddDate(0, 0, 1)); got != s.Len() {
		t.Errorf("IndexAtOrAfter(past end) = %d, want %d", got, s.Len())
	}
}

func TestWindowStatistics(t *testing.T) {
	s, err := NewSeries(testSnapshots(4))
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Window(3, 4)
	if err != nil {
		t.Fatal(err)
	}

	mean := w.MeanReturns()
	if math.Abs(mean[0]-0.01) > 1e-12 || math.Abs(mean[1]+0.005) > 1e-12 {
		t.Errorf("MeanReturns() = %v", mean)
	}

	// Constant returns have zero volatility.
	if vol := w.Volatility("AAA"); vol != 0 {
		t.Errorf("Volatility() = %v, want 0", vol)
	}

	if v := w.MeanVolume("BBB"); v != 2000 {
		t.Errorf("MeanVolume() = %v, want 2000", v)
	}

	prices := w.Prices()
	if prices["AAA"] != 103 {
		t.Errorf("Prices()[AAA] = %v, want 103", prices["AAA"])
	}

	m := w.ReturnMatrix()
	if len(m) != 4 || len(m[0]) != 2 {
		t.Fatalf("ReturnMatrix() shape = %dx%d, want 4x2", len(m), len(m[0]))
	}
	if m[0][1] != -0.005 {
		t.Errorf("ReturnMatrix()[0][1] = %v, want -0.005", m[0][1])
	}
}
