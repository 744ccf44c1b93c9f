package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
)

func TestWriteCSV(t *testing.T) {
	set := &routes.RouteSet{
		Routes: []*routes.Route{{
			RouteID:    "102",
			DriverName: "J SMITH",
			Deliveries: []*routes.Delivery{
				{
					StopNumber:   "1",
					LocationID:   "STORE-881",
					LocationName: "OAKMONT GROCERY",
					Address:      "1240 Oakmont Ave, Springfield, IL",
					Geocode: &routes.Geocode{
						Success:      true,
						Latitude:     39.7817,
						Longitude:    -89.6501,
						GeocodedWith: "address",
						FromCache:    true,
					},
				},
				{LocationName: "Paid Break", IsBreak: true},
				{
					StopNumber:   "2",
					LocationName: "HILLTOP MARKET",
					Geocode:      &routes.Geocode{Success: false, Error: "No results found"},
				},
			},
		}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, set); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want header + 3 rows", len(records))
	}

	header := records[0]
	if header[0] != "Route ID" || header[len(header)-1] != "Geocode Status" {
		t.Errorf("header = %v", header)
	}

	first := records[1]
	if first[0] != "102" || first[3] != "1" {
		t.Errorf("row 1 = %v", first)
	}
	if first[15] != "39.7817" || first[16] != "-89.6501" {
		t.Errorf("row 1 coordinates = %q,%q", first[15], first[16])
	}
	if first[18] != "ok (cached)" {
		t.Errorf("row 1 status = %q", first[18])
	}

	if records[2][18] != "break" {
		t.Errorf("break status = %q", records[2][18])
	}
	if records[3][18] != "failed: No results found" {
		t.Errorf("failure status = %q", records[3][18])
	}
}
