package parser

import (
	"testing"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

var testEquipmentTypes = []string{"14BAY", "32LG", "28LG", "40LG", "18BT", "48LG", "48FT"}

// row builds a sparse sheet row with values at given columns.
func row(cells map[int]string) []string {
	max := 0
	for col := range cells {
		if col > max {
			max = col
		}
	}
	r := make([]string, max+1)
	for col, v := range cells {
		r[col] = v
	}
	return r
}

func omnitracsFixture() [][]string {
	return [][]string{
		row(map[int]string{0: "Route Id: 102"}),
		row(map[int]string{0: "DR4431: J SMITH", 8: "32LG-REFRIG"}),
		row(map[int]string{0: "Route Start Time: 6/2/2025 04:15 EDT"}),
		row(map[int]string{0: "Route Complete Time: 6/2/2025 15:40 EDT"}),
		row(map[int]string{0: "Stop", 1: "Location Id"}),

		// Stop 1: address directly on the next row.
		row(map[int]string{0: "1", 1: "STORE-881", 3: "OAKMONT GROCERY", 8: "05:10/1", 11: "05:55/1", 13: "0:45", 15: "512.0", 18: "8", 20: "3,412"}),
		row(map[int]string{1: "1240 Oakmont Ave, Springfield, IL 62704", 12: "(217) 555-0134"}),
		row(map[int]string{1: "Open 05:00 Close 21:00", 9: "06:00-10:00"}),
		row(map[int]string{0: "Standard Instructions", 9: "Rear dock, ring bell"}),

		// Paid break pseudo-stop.
		row(map[int]string{0: "Paid Break", 8: "09:30/1", 11: "10:00/1", 13: "0:30"}),

		// Stop 2: blank filler row pushes the address to row +2.
		row(map[int]string{0: "2", 1: "STORE-882", 3: "HILLTOP MARKET", 8: "10:40/1", 11: "11:25/1", 13: "0:40", 15: "840.2", 18: "6", 20: "2,018"}),
		row(map[int]string{1: "Wk 1,3,5"}),
		row(map[int]string{1: "77 Hilltop Rd, Chatham, IL 62629", 12: "217-555-0187"}),
		row(map[int]string{1: "Open 06:00 Close 22:00"}),

		// Mid-route depot resupply.
		row(map[int]string{0: "Depot", 1: "DC-01", 3: "SPRINGFIELD DC", 8: "12:05/1", 11: "12:50/1", 13: "0:45"}),
		row(map[int]string{1: "400 Industrial Dr, Springfield, IL 62703", 5: "44", 6: "12", 7: "9,850"}),
	}
}

func TestLayoutParserRoutePreamble(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(omnitracsFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if set.TotalRoutes != 1 {
		t.Fatalf("TotalRoutes = %d, want 1", set.TotalRoutes)
	}

	r := set.Routes[0]
	if r.RouteID != "102" {
		t.Errorf("RouteID = %q, want %q", r.RouteID, "102")
	}
	if r.DriverID != "DR4431" || r.DriverName != "J SMITH" {
		t.Errorf("driver = %q/%q, want DR4431/J SMITH", r.DriverID, r.DriverName)
	}
	if r.EquipmentType != "32LG-REFRIG" {
		t.Errorf("EquipmentType = %q, want 32LG-REFRIG", r.EquipmentType)
	}
	if r.RouteStartTime != "6/2/2025 04:15 EDT" {
		t.Errorf("RouteStartTime = %q", r.RouteStartTime)
	}
	if r.RouteEndTime != "6/2/2025 15:40 EDT" {
		t.Errorf("RouteEndTime = %q", r.RouteEndTime)
	}
}

func TestLayoutParserDeliveryBlock(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(omnitracsFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	deliveries := set.Routes[0].Deliveries
	if len(deliveries) != 4 {
		t.Fatalf("deliveries = %d, want 4 (2 stops, 1 break, 1 depot)", len(deliveries))
	}

	d := deliveries[0]
	if d.StopNumber != "1" || d.LocationID != "STORE-881" || d.LocationName != "OAKMONT GROCERY" {
		t.Errorf("stop 1 identity = %q/%q/%q", d.StopNumber, d.LocationID, d.LocationName)
	}
	if d.Arrival != "05:10" || d.Depart != "05:55" {
		t.Errorf("stop 1 times = %q/%q, want slash suffixes stripped", d.Arrival, d.Depart)
	}
	if d.Address != "1240 Oakmont Ave, Springfield, IL 62704" {
		t.Errorf("stop 1 address = %q", d.Address)
	}
	if d.PhoneNumber != "(217) 555-0134" {
		t.Errorf("stop 1 phone = %q", d.PhoneNumber)
	}
	if d.OpenCloseTime != "Open 05:00 Close 21:00" {
		t.Errorf("stop 1 open/close = %q", d.OpenCloseTime)
	}
	if d.ServiceWindows != "06:00-10:00" {
		t.Errorf("stop 1 service windows = %q", d.ServiceWindows)
	}
	if d.StandardInstructions != "Rear dock, ring bell" {
		t.Errorf("stop 1 instructions = %q", d.StandardInstructions)
	}
	if d.Weight != "3412.0" {
		t.Errorf("stop 1 weight = %q, want gross override 3412.0", d.Weight)
	}
}

func TestLayoutParserAddressOnSecondRow(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(omnitracsFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[0].Deliveries[2]
	if d.StopNumber != "2" {
		t.Fatalf("expected stop 2, got %q", d.StopNumber)
	}
	if d.Address != "77 Hilltop Rd, Chatham, IL 62629" {
		t.Errorf("address = %q, want row +2 candidate", d.Address)
	}
	if d.PhoneNumber != "217-555-0187" {
		t.Errorf("phone = %q, want phone from the address row", d.PhoneNumber)
	}
	if d.OpenCloseTime != "Open 06:00 Close 22:00" {
		t.Errorf("open/close = %q, want value from the row after the address", d.OpenCloseTime)
	}
}

func TestLayoutParserPaidBreak(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(omnitracsFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[0].Deliveries[1]
	if !d.IsBreak {
		t.Fatal("expected delivery 2 to be a break")
	}
	if d.LocationName != "Paid Break" {
		t.Errorf("break name = %q", d.LocationName)
	}
	if d.Address != "" {
		t.Errorf("break address = %q, want empty", d.Address)
	}
	if d.Arrival != "09:30" || d.Depart != "10:00" {
		t.Errorf("break times = %q/%q", d.Arrival, d.Depart)
	}
}

func TestLayoutParserDepotResupply(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(omnitracsFixture())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[0].Deliveries[3]
	if !d.IsDepotResupply {
		t.Fatal("expected delivery 4 to be a depot resupply")
	}
	if d.LocationName != "SPRINGFIELD DC" {
		t.Errorf("depot name = %q", d.LocationName)
	}
	if d.Address != "400 Industrial Dr, Springfield, IL 62703" {
		t.Errorf("depot address = %q", d.Address)
	}
	// Last three numeric tokens on the follow-on row are CS, PAL, WGT.
	if d.Cube != "12" {
		t.Errorf("depot pallets = %q, want 12", d.Cube)
	}
	if d.Weight != "9850" {
		t.Errorf("depot weight = %q, want 9850", d.Weight)
	}
}

func TestLayoutParserDepotSparseNumericFallback(t *testing.T) {
	rows := [][]string{
		row(map[int]string{0: "Route Id: 7"}),
		row(map[int]string{0: "Stop", 1: "Location Id"}),
		row(map[int]string{0: "Depot", 3: "DC NORTH", 8: "11:00/1", 11: "11:30/1"}),
		// Only two numeric tokens: pallet count and a large weight.
		row(map[int]string{1: "Commerce Way Dock", 4: "18", 9: "14,200"}),
	}

	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	set, err := p.Parse(rows)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	d := set.Routes[0].Deliveries[0]
	if d.Cube != "18" {
		t.Errorf("pallets = %q, want small-integer fallback 18", d.Cube)
	}
	if d.Weight != "14200" {
		t.Errorf("weight = %q, want large-value fallback 14200", d.Weight)
	}
}

func TestLayoutParserNoRoutes(t *testing.T) {
	p := NewLayoutParser(testEquipmentTypes, logger.NewNop())
	if _, err := p.Parse([][]string{{"nothing"}, {"here"}}); err == nil {
		t.Fatal("expected error for sheet without routes")
	}
}

func TestLooksLikeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1240 Oakmont Ave", true},
		{"77 Hilltop Rd, Chatham, IL 62629", true},
		{"Open 05:00 Close 21:00", false},
		{"Wk 1,3,5", false},
		{"", false},
		{"NO DIGITS HERE STREET", false},
	}
	for _, tt := range tests {
		if got := looksLikeAddress(tt.in); got != tt.want {
			t.Errorf("looksLikeAddress(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStripSlash(t *testing.T) {
	if got := stripSlash("05:10/1"); got != "05:10" {
		t.Errorf("stripSlash = %q", got)
	}
	if got := stripSlash("05:10"); got != "05:10" {
		t.Errorf("stripSlash without suffix = %q", got)
	}
}
