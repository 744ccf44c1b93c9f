package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// UnspecifiedRoute is the sentinel group for rows whose route column is
// blank, a header echo, or absent entirely.
const UnspecifiedRoute = "UNSPECIFIED"

// Logical fields resolvable from a POC header row. Column names vary across
// customer files; each field lists the aliases seen in the wild.
var fieldAliases = map[string][]string{
	"route":         {"route", "route id", "route #", "rte", "truck", "truck #"},
	"stopNumber":    {"stop", "stop #", "stop number", "seq", "sequence", "stop seq"},
	"locationId":    {"location id", "customer id", "store #", "store#", "store number", "ship-to id", "ship to id", "cust #", "cust id"},
	"locationName":  {"location name", "customer name", "ship-to name", "ship to name", "store name", "name"},
	"address":       {"address", "address line 1", "address 1", "street address", "street", "addr"},
	"city":          {"city"},
	"state":         {"state", "st"},
	"zip":           {"zip", "zip code", "postal code"},
	"day":           {"day", "delivery day", "dow"},
	"driverName":    {"driver", "driver name"},
	"equipmentType": {"equipment", "equipment type", "trailer", "trailer type"},
	"routeStart":    {"route start", "start time", "depart time"},
	"routeEnd":      {"route end", "end time", "return time"},
	"earliest":      {"earliest", "earliest time", "open", "open time", "delivery from"},
	"latest":        {"latest", "latest time", "close", "close time", "delivery to"},
	"phone":         {"phone", "phone number", "phone #"},
	"weight":        {"weight", "wgt", "total weight"},
	"pallets":       {"pallets", "pal", "pallet count"},
	"service":       {"service", "service time", "svc time"},
	"instructions":  {"instructions", "delivery instructions", "notes", "comments"},
}

// matchStrategy tags how a header column was bound to a logical field.
type matchStrategy int

const (
	matchExact matchStrategy = iota
	matchFuzzy
)

// columnRef is one resolved header column.
type columnRef struct {
	index    int
	header   string
	strategy matchStrategy
}

// columnMap binds logical fields to sheet columns. Resolved once per sheet.
type columnMap map[string]columnRef

// resolveColumns binds every logical field it can. Exact case-insensitive
// alias matches are tried first; a substring-contains fallback runs only
// when exactOnly is false for that field. The route key deliberately never
// falls back to fuzzy matching, so a column like "Day" cannot be misbound
// as the route identifier.
func resolveColumns(header []string) columnMap {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cm := make(columnMap)
	for field, aliases := range fieldAliases {
		if ref, ok := resolveField(normalized, header, aliases, field == "route"); ok {
			cm[field] = ref
		}
	}
	return cm
}

func resolveField(normalized, header []string, aliases []string, exactOnly bool) (columnRef, bool) {
	for _, alias := range aliases {
		for i, h := range normalized {
			if h == alias {
				return columnRef{index: i, header: header[i], strategy: matchExact}, true
			}
		}
	}
	if exactOnly {
		return columnRef{}, false
	}
	for _, alias := range aliases {
		for i, h := range normalized {
			if h != "" && strings.Contains(h, alias) {
				return columnRef{index: i, header: header[i], strategy: matchFuzzy}, true
			}
		}
	}
	return columnRef{}, false
}

// HeaderParser extracts routes from the flat POC layout: one header row of
// named columns, one data row per delivery.
type HeaderParser struct {
	// dayDates maps a day letter (M/T/W/R/F) to the calendar date
	// (YYYY-MM-DD) a delivery day falls on for this deployment.
	dayDates map[string]string
	logger   *logger.Logger
}

// NewHeaderParser creates a parser for the POC layout.
func NewHeaderParser(dayDates map[string]string, log *logger.Logger) *HeaderParser {
	return &HeaderParser{
		dayDates: dayDates,
		logger:   log.Named("header-parser"),
	}
}

// Parse groups data rows by normalized route key and builds one route per
// group, preserving first-appearance order.
func (p *HeaderParser) Parse(rows [][]string) (*routes.RouteSet, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet has no data rows")
	}

	cm := resolveColumns(rows[0])
	routeRef, hasRouteCol := cm["route"]

	p.logger.Debug("Resolved header columns",
		logger.Int("bound_fields", len(cm)),
		logger.Bool("route_column", hasRouteCol))

	// Group rows by route key, keeping group order stable.
	var order []string
	groups := make(map[string][][]string)
	for _, row := range rows[1:] {
		key := UnspecifiedRoute
		if hasRouteCol {
			key = normalizeRouteKey(valueAt(row, routeRef.index))
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	var parsed []*routes.Route
	for _, key := range order {
		route := p.buildRoute(key, groups[key], cm)
		if len(route.Deliveries) == 0 {
			continue
		}
		parsed = append(parsed, route)
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("no deliveries found in sheet (%d rows scanned)", len(rows))
	}

	set := &routes.RouteSet{Routes: parsed, TotalRoutes: len(parsed)}
	set.TotalDeliveries = set.CountDeliveries()

	p.logger.Info("Parsed POC report",
		logger.Int("routes", set.TotalRoutes),
		logger.Int("deliveries", set.TotalDeliveries))

	return set, nil
}

func (p *HeaderParser) buildRoute(key string, group [][]string, cm columnMap) *routes.Route {
	first := group[0]
	route := &routes.Route{
		RouteID:        key,
		DriverName:     cm.value(first, "driverName"),
		EquipmentType:  cm.value(first, "equipmentType"),
		RouteStartTime: cm.value(first, "routeStart"),
		RouteEndTime:   cm.value(first, "routeEnd"),
	}

	for _, row := range group {
		d := p.buildDelivery(row, cm)
		if d == nil {
			continue
		}
		route.Deliveries = append(route.Deliveries, d)
	}

	// When the report carries delivery days, route start/end come from the
	// deployment's day-to-date table: start at 04:00, end at 23:59.
	for _, d := range route.Deliveries {
		if d.Day == "" {
			continue
		}
		if date, ok := p.dayDates[d.Day]; ok {
			if t, err := time.Parse("2006-01-02", date); err == nil {
				route.RouteStartTime = t.Format("2006-01-02") + " 04:00"
				route.RouteEndTime = t.Format("2006-01-02") + " 23:59"
			}
		}
		break
	}

	return route
}

func (p *HeaderParser) buildDelivery(row []string, cm columnMap) *routes.Delivery {
	stopNumber := cm.value(row, "stopNumber")
	name := cm.value(row, "locationName")
	street := cm.value(row, "address")
	city := cm.value(row, "city")

	// Blank and header-echo rows carry none of the identifying fields.
	if stopNumber == "" && name == "" && street == "" && city == "" {
		return nil
	}

	state := cm.value(row, "state")
	zip := cm.value(row, "zip")

	locationID := cm.value(row, "locationId")
	if locationID == "" {
		locationID = name
	}
	if locationID == "" {
		locationID = strings.Join([]string{street, city, state, zip}, "|")
	}

	d := &routes.Delivery{
		StopNumber:           stopNumber,
		LocationID:           locationID,
		LocationName:         name,
		Day:                  dayLetter(cm.value(row, "day")),
		Address:              composeAddress(street, city, state, zip),
		PhoneNumber:          cm.value(row, "phone"),
		Weight:               cm.value(row, "weight"),
		Cube:                 cm.value(row, "pallets"),
		Service:              cm.value(row, "service"),
		StandardInstructions: cm.value(row, "instructions"),
		OpenCloseTime: fmt.Sprintf("%s - %s",
			normalizeClockTime(cm.value(row, "earliest"), false),
			normalizeClockTime(cm.value(row, "latest"), true)),
	}

	if strings.Contains(strings.ToLower(name), "break") {
		d.IsBreak = true
	}

	return d
}

// value reads the resolved column for a logical field, or "" if unbound.
func (cm columnMap) value(row []string, field string) string {
	ref, ok := cm[field]
	if !ok {
		return ""
	}
	return valueAt(row, ref.index)
}

func valueAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// normalizeRouteKey groups numeric-looking route values regardless of
// zero-padding ("055" and "55" are the same route). Blank values and the
// literal header echo "day" map to the unspecified sentinel.
func normalizeRouteKey(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "day") {
		return UnspecifiedRoute
	}
	if n, err := strconv.Atoi(v); err == nil {
		return strconv.Itoa(n)
	}
	return v
}

// dayLetter maps a day column value to its single-letter token (M/T/W/R/F).
func dayLetter(v string) string {
	if v == "" {
		return ""
	}
	letter := strings.ToUpper(v[:1])
	switch letter {
	case "M", "T", "W", "R", "F":
		return letter
	}
	return ""
}

// composeAddress builds the single-line geocodable address, avoiding double
// commas when parts are missing. State and zip share one comma-separated
// segment.
func composeAddress(street, city, state, zip string) string {
	var parts []string
	if street != "" {
		parts = append(parts, street)
	}
	if city != "" {
		parts = append(parts, city)
	}
	stateZip := strings.TrimSpace(state + " " + zip)
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

// normalizeClockTime accepts H, HH, H:MM and HH:MM forms and returns HH:MM.
// Unparseable or absent values default to 09:00 (earliest) or 16:00
// (latest). For the latest value only, bare hours 1-6 mean PM: a "3" in a
// closing-time column is 3 PM, while the same raw value in the earliest
// column is always AM.
func normalizeClockTime(v string, isLatest bool) string {
	fallback := "09:00"
	if isLatest {
		fallback = "16:00"
	}

	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}

	hourPart := v
	minutePart := "00"
	if idx := strings.Index(v, ":"); idx >= 0 {
		hourPart = v[:idx]
		minutePart = v[idx+1:]
	}

	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil || hour < 0 || hour > 23 {
		return fallback
	}
	minute, err := strconv.Atoi(strings.TrimSpace(minutePart))
	if err != nil || minute < 0 || minute > 59 {
		return fallback
	}

	if isLatest && hour >= 1 && hour <= 6 && !strings.Contains(v, ":") {
		hour += 12
	}

	return fmt.Sprintf("%02d:%02d", hour, minute)
}
