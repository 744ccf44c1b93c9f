package parser

import (
	"testing"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

var testDayDates = map[string]string{
	"M": "2025-06-02",
	"T": "2025-06-03",
	"W": "2025-06-04",
	"R": "2025-06-05",
	"F": "2025-06-06",
}

func TestResolveColumnsAliases(t *testing.T) {
	header := []string{"Truck #", "Stop Seq", "Store #", "Customer Name", "Street Address", "City", "ST", "Zip Code", "Delivery Day", "Open Time", "Close Time"}
	cm := resolveColumns(header)

	wantExact := map[string]int{
		"route":      0,
		"stopNumber": 1,
		"locationId": 2,
		"address":    4,
		"city":       5,
		"state":      6,
		"zip":        7,
		"day":        8,
		"earliest":   9,
		"latest":     10,
	}
	for field, idx := range wantExact {
		ref, ok := cm[field]
		if !ok {
			t.Errorf("field %q unbound", field)
			continue
		}
		if ref.index != idx {
			t.Errorf("field %q bound to column %d (%q), want %d", field, ref.index, ref.header, idx)
		}
		if ref.strategy != matchExact {
			t.Errorf("field %q bound fuzzily, want exact", field)
		}
	}
}

func TestResolveColumnsFuzzyFallback(t *testing.T) {
	header := []string{"Rte", "Stop", "Customer Name (DBA)", "Address Line 1"}
	cm := resolveColumns(header)

	ref, ok := cm["locationName"]
	if !ok {
		t.Fatal("locationName unbound")
	}
	if ref.index != 2 || ref.strategy != matchFuzzy {
		t.Errorf("locationName = col %d strategy %d, want fuzzy match on column 2", ref.index, ref.strategy)
	}
}

func TestResolveColumnsRouteNeverFuzzy(t *testing.T) {
	// "En Route Contact" contains the alias "route" but must not bind.
	header := []string{"Stop", "Name", "En Route Contact"}
	cm := resolveColumns(header)
	if _, ok := cm["route"]; ok {
		t.Fatal("route bound by substring match; exact aliases only")
	}
}

func pocFixture() [][]string {
	return [][]string{
		{"Route", "Stop", "Store #", "Customer Name", "Address", "City", "State", "Zip", "Day", "Open", "Close"},
		{"055", "1", "8811", "OAKMONT GROCERY", "1240 Oakmont Ave", "Springfield", "IL", "62704", "M", "6:00", "21:00"},
		{"55", "2", "", "HILLTOP MARKET", "77 Hilltop Rd", "Chatham", "IL", "62629", "M", "7", "3"},
		{"", "", "", "", "", "", "", "", "", "", ""},
		{"7", "1", "9902", "LUNCH BREAK", "", "", "", "", "T", "", ""},
		{"7", "2", "9903", "RIVERSIDE DELI", "matches nothing", "Auburn", "IL", "62615", "T", "", ""},
	}
}

func TestHeaderParserGrouping(t *testing.T) {
	p := NewHeaderParser(testDayDates, logger.NewNop())
	set, err := p.Parse(pocFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if set.TotalRoutes != 2 {
		t.Fatalf("TotalRoutes = %d, want 2 (padded keys merged, blank row dropped)", set.TotalRoutes)
	}

	first := set.Routes[0]
	if first.RouteID != "55" {
		t.Errorf("first route = %q, want normalized key 55", first.RouteID)
	}
	if len(first.Deliveries) != 2 {
		t.Errorf("route 55 deliveries = %d, want 2", len(first.Deliveries))
	}

	second := set.Routes[1]
	if second.RouteID != "7" {
		t.Errorf("second route = %q, want 7", second.RouteID)
	}
}

func TestHeaderParserDeliveryFields(t *testing.T) {
	p := NewHeaderParser(testDayDates, logger.NewNop())
	set, err := p.Parse(pocFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[0].Deliveries[0]
	if d.LocationID != "8811" {
		t.Errorf("LocationID = %q", d.LocationID)
	}
	if d.Address != "1240 Oakmont Ave, Springfield, IL 62704" {
		t.Errorf("Address = %q", d.Address)
	}
	if d.Day != "M" {
		t.Errorf("Day = %q", d.Day)
	}
	if d.OpenCloseTime != "06:00 - 21:00" {
		t.Errorf("OpenCloseTime = %q", d.OpenCloseTime)
	}

	// Missing location ID falls back to the location name.
	d2 := set.Routes[0].Deliveries[1]
	if d2.LocationID != "HILLTOP MARKET" {
		t.Errorf("fallback LocationID = %q", d2.LocationID)
	}
	// Bare hours: earliest stays AM, a bare 1-6 in the close column means PM.
	if d2.OpenCloseTime != "07:00 - 15:00" {
		t.Errorf("bare-hour OpenCloseTime = %q", d2.OpenCloseTime)
	}
}

func TestHeaderParserDayDateStamping(t *testing.T) {
	p := NewHeaderParser(testDayDates, logger.NewNop())
	set, err := p.Parse(pocFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	r := set.Routes[1] // Tuesday group
	if r.RouteStartTime != "2025-06-03 04:00" {
		t.Errorf("RouteStartTime = %q", r.RouteStartTime)
	}
	if r.RouteEndTime != "2025-06-03 23:59" {
		t.Errorf("RouteEndTime = %q", r.RouteEndTime)
	}
}

func TestHeaderParserBreakDetection(t *testing.T) {
	p := NewHeaderParser(testDayDates, logger.NewNop())
	set, err := p.Parse(pocFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[1].Deliveries[0]
	if !d.IsBreak {
		t.Errorf("delivery %q not flagged as break", d.LocationName)
	}
}

func TestHeaderParserUnspecifiedRoute(t *testing.T) {
	rows := [][]string{
		{"Stop", "Customer Name", "Address", "City"},
		{"1", "CORNER STORE", "12 Main St", "Divernon"},
	}
	p := NewHeaderParser(testDayDates, logger.NewNop())
	set, err := p.Parse(rows)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set.Routes[0].RouteID != UnspecifiedRoute {
		t.Errorf("RouteID = %q, want %q", set.Routes[0].RouteID, UnspecifiedRoute)
	}
}

func TestNormalizeClockTime(t *testing.T) {
	tests := []struct {
		in       string
		isLatest bool
		want     string
	}{
		{"", false, "09:00"},
		{"", true, "16:00"},
		{"6:00", false, "06:00"},
		{"21:00", true, "21:00"},
		{"7", false, "07:00"},
		{"3", true, "15:00"},
		{"3:00", true, "03:00"}, // colon form is taken literally
		{"garbage", true, "16:00"},
		{"25:00", false, "09:00"},
	}
	for _, tt := range tests {
		if got := normalizeClockTime(tt.in, tt.isLatest); got != tt.want {
			t.Errorf("normalizeClockTime(%q, %v) = %q, want %q", tt.in, tt.isLatest, got, tt.want)
		}
	}
}

func TestNormalizeRouteKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"055", "55"},
		{"55", "55"},
		{"A12", "A12"},
		{"", UnspecifiedRoute},
		{"Day", UnspecifiedRoute},
	}
	for _, tt := range tests {
		if got := normalizeRouteKey(tt.in); got != tt.want {
			t.Errorf("normalizeRouteKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
