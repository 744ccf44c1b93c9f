package geocoding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mbsoft/ohmy-tracks/internal/parser"
	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Full pipeline: parse an Omnitracs-style grid, then resolve it twice
// against the same cache to confirm the warm run never touches the network.
func TestParseAndResolvePipeline(t *testing.T) {
	rows := [][]string{
		{"Route Id: 77"},
		{"DR9001: M GARCIA", "", "", "", "", "", "", "", "40LG"},
		{"Route Start Time: 6/2/2025 05:00 EDT"},
		{"Stop", "Location Id"},

		{"1", "STORE-1", "", "FIRST SHOP", "", "", "", "", "05:45/1", "", "", "06:20/1", "", "0:35"},
		{"", "10 Commerce St, Springfield, IL 62701"},

		{"Paid Break", "", "", "", "", "", "", "", "08:00/1", "", "", "08:30/1", "", "0:30"},

		{"2", "STORE-2", "", "SECOND SHOP", "", "", "", "", "09:10/1", "", "", "09:50/1", "", "0:40"},
		{"", "glyphs"},
	}

	p := parser.NewLayoutParser([]string{"40LG"}, logger.NewNop())
	parse := func() *routes.RouteSet {
		set, err := p.Parse(rows)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		return set
	}

	fake := &fakeGeocoder{results: map[string]*routes.Geocode{
		"10 Commerce St, Springfield, IL 62701": {Success: true, Latitude: 39.80, Longitude: -89.64},
		"SECOND SHOP":                           {Success: true, Latitude: 39.81, Longitude: -89.63},
	}}
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"), logger.NewNop())
	r := NewResolver(fake, cache, NewNopPolicy(), 5000, nil, logger.NewNop())

	cold := r.Resolve(context.Background(), parse())

	deliveries := cold.Routes[0].Deliveries
	if len(deliveries) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(deliveries))
	}

	// Stop 1 resolves by address in pass 1.
	if g := deliveries[0].Geocode; g == nil || !g.Success || g.GeocodedWith != "address" {
		t.Errorf("stop 1 geocode = %+v", g)
	}
	// The break is untouched.
	if deliveries[1].Geocode != nil {
		t.Errorf("break geocode = %+v", deliveries[1].Geocode)
	}
	// Stop 2 has no usable address and falls through to the name pass with a
	// proximity hint from stop 1.
	g2 := deliveries[2].Geocode
	if g2 == nil || !g2.Success || g2.GeocodedWith != "locationName" {
		t.Fatalf("stop 2 geocode = %+v", g2)
	}
	if g2.ProximityHint == nil || g2.ProximityHint.Direction != "previous" {
		t.Errorf("stop 2 hint = %+v", g2.ProximityHint)
	}

	coldCalls := len(fake.calls)

	// Warm run: every lookup comes from the cache.
	warm := r.Resolve(context.Background(), parse())
	if len(fake.calls) != coldCalls {
		t.Errorf("warm run made %d extra provider calls", len(fake.calls)-coldCalls)
	}
	if warm.GeocodingStats.CacheMisses != 0 {
		t.Errorf("warm CacheMisses = %d, want 0", warm.GeocodingStats.CacheMisses)
	}
	if warm.GeocodingStats.Succeeded != 2 {
		t.Errorf("warm Succeeded = %d, want 2", warm.GeocodingStats.Succeeded)
	}
}
