package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
)

// csvHeader is the flat per-delivery layout dispatchers load into sheets.
var csvHeader = []string{
	"Route ID", "Driver", "Equipment", "Stop", "Location ID", "Location Name",
	"Address", "Phone", "Arrival", "Depart", "Service", "Weight", "Cube",
	"Gross", "Open/Close", "Latitude", "Longitude", "Geocoded With",
	"Geocode Status",
}

// WriteCSV renders a route set as one CSV row per delivery. Break rows are
// included so the export mirrors the planned sequence.
func WriteCSV(w io.Writer, set *routes.RouteSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, route := range set.Routes {
		for _, d := range route.Deliveries {
			if err := cw.Write(deliveryRow(route, d)); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func deliveryRow(route *routes.Route, d *routes.Delivery) []string {
	lat, lng, geocodedWith, status := "", "", "", "not geocoded"
	if g := d.Geocode; g != nil {
		geocodedWith = g.GeocodedWith
		if g.Success {
			lat = strconv.FormatFloat(g.Latitude, 'f', -1, 64)
			lng = strconv.FormatFloat(g.Longitude, 'f', -1, 64)
			status = "ok"
			if g.FromCache {
				status = "ok (cached)"
			}
		} else {
			status = "failed: " + g.Error
		}
	}
	if d.IsBreak {
		status = "break"
	}

	return []string{
		route.RouteID,
		route.DriverName,
		route.EquipmentType,
		d.StopNumber,
		d.LocationID,
		d.LocationName,
		d.Address,
		d.PhoneNumber,
		d.Arrival,
		d.Depart,
		d.Service,
		d.Weight,
		d.Cube,
		d.Gross,
		d.OpenCloseTime,
		lat,
		lng,
		geocodedWith,
		status,
	}
}
