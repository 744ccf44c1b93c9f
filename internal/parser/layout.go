package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// Column positions in an Omnitracs stop-list report. Field values for one
// delivery are scattered across these fixed offsets over a 3-6 row block.
const (
	colStopNumber     = 0
	colLocationID     = 1
	colAddress        = 1 // on the row after the stop row
	colOpenClose      = 1
	colLocationName   = 3
	colArrival        = 8
	colEquipment      = 8
	colServiceWindows = 9
	colInstructions   = 9
	colDepart         = 11
	colPhone          = 12
	colService        = 13
	colWeight         = 15
	colCube           = 18 // PAL column on depot rows
	colGross          = 20 // WGT column on depot rows
)

// scanState tracks where the forward scan is within the report structure.
type scanState int

const (
	// stateSeekingRouteHeader: before the first "Route Id:" marker.
	stateSeekingRouteHeader scanState = iota
	// stateSeekingDeliverySection: inside a route's preamble (driver,
	// equipment, start/complete times), before the "Stop ... Location"
	// table header.
	stateSeekingDeliverySection
	// stateInDeliverySection: scanning delivery records.
	stateInDeliverySection
)

var (
	routeHeaderRe = regexp.MustCompile(`^Route Id:\s*(.+)`)
	driverRe      = regexp.MustCompile(`^([A-Z0-9]{2,}):\s*(.+)$`)
	stopNumberRe  = regexp.MustCompile(`^\d+$`)
	phoneRe       = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	numericRe     = regexp.MustCompile(`-?\d{1,3}(?:,\d{3})*(?:\.\d+)?|-?\d+(?:\.\d+)?`)
	streetWordRe  = regexp.MustCompile(`(?i)(st|street|ave|avenue|rd|road|dr|drive|blvd|boulevard|pkwy|parkway|ln|lane|way|ct|court|pl|place)`)
)

// LayoutParser extracts routes from the fixed-position Omnitracs report.
// Records have no delimiter beyond a bare stop number in the first column,
// which marks the start of a multi-row delivery block.
type LayoutParser struct {
	equipmentTypes []string
	logger         *logger.Logger
}

// NewLayoutParser creates a parser for the Omnitracs layout. equipmentTypes
// is the vocabulary of equipment codes recognized in the route preamble.
func NewLayoutParser(equipmentTypes []string, log *logger.Logger) *LayoutParser {
	return &LayoutParser{
		equipmentTypes: equipmentTypes,
		logger:         log.Named("layout-parser"),
	}
}

// Parse walks the sheet with a single forward cursor and reconstructs all
// routes. Malformed or short rows degrade to empty fields; the only hard
// error is a sheet with no recognizable routes at all.
func (p *LayoutParser) Parse(rows [][]string) (*routes.RouteSet, error) {
	var (
		parsed       []*routes.Route
		currentRoute *routes.Route
		state        = stateSeekingRouteHeader
	)

	for i := 0; i < len(rows); i++ {
		firstCell := cell(rows, i, 0)

		// A new route header closes the previous route. The same row may
		// carry other signals, so this is not an exclusive branch.
		if m := routeHeaderRe.FindStringSubmatch(firstCell); m != nil {
			if currentRoute != nil {
				parsed = append(parsed, currentRoute)
			}
			currentRoute = &routes.Route{RouteID: strings.TrimSpace(m[1])}
			state = stateSeekingDeliverySection
		}

		if currentRoute == nil {
			continue
		}

		p.scanPreambleSignals(rows, i, firstCell, currentRoute)

		if firstCell == "Stop" && strings.Contains(cell(rows, i, 1), "Location") {
			state = stateInDeliverySection
		}

		if state != stateInDeliverySection {
			continue
		}

		switch {
		case stopNumberRe.MatchString(firstCell):
			currentRoute.Deliveries = append(currentRoute.Deliveries, p.extractDeliveryBlock(newRowWindow(rows, i)))
		case isPaidBreakRow(rows, i, firstCell):
			currentRoute.Deliveries = append(currentRoute.Deliveries, extractPaidBreak(rows, i))
		case strings.EqualFold(firstCell, "depot"):
			currentRoute.Deliveries = append(currentRoute.Deliveries, extractDepotResupply(newRowWindow(rows, i)))
		}
	}

	if currentRoute != nil {
		parsed = append(parsed, currentRoute)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no routes found in sheet (%d rows scanned)", len(rows))
	}

	set := &routes.RouteSet{Routes: parsed, TotalRoutes: len(parsed)}
	set.TotalDeliveries = set.CountDeliveries()

	p.logger.Info("Parsed Omnitracs report",
		logger.Int("routes", set.TotalRoutes),
		logger.Int("deliveries", set.TotalDeliveries))

	return set, nil
}

// scanPreambleSignals records route-level fields that appear between the
// route header and the delivery table. Each is captured once per route;
// several may share a single physical row.
func (p *LayoutParser) scanPreambleSignals(rows [][]string, i int, firstCell string, route *routes.Route) {
	if route.EquipmentType == "" {
		equipCell := cell(rows, i, colEquipment)
		for _, code := range p.equipmentTypes {
			if strings.HasPrefix(equipCell, code) {
				route.EquipmentType = equipCell
				break
			}
		}
	}

	if route.DriverID == "" {
		if m := driverRe.FindStringSubmatch(firstCell); m != nil {
			route.DriverID = strings.TrimSpace(m[1])
			route.DriverName = strings.TrimSpace(m[2])
		}
	}

	if after, ok := strings.CutPrefix(firstCell, "Route Start Time:"); ok {
		route.RouteStartTime = strings.TrimSpace(after)
	}
	if after, ok := strings.CutPrefix(firstCell, "Route Complete Time:"); ok {
		route.RouteEndTime = strings.TrimSpace(after)
	}
}

// extractDeliveryBlock reads one delivery whose fields span up to six rows
// starting at the window base (the row holding the bare stop number).
func (p *LayoutParser) extractDeliveryBlock(w rowWindow) *routes.Delivery {
	d := &routes.Delivery{
		StopNumber:   w.cell(0, colStopNumber),
		LocationID:   w.cell(0, colLocationID),
		LocationName: w.cell(0, colLocationName),
		Arrival:      stripSlash(w.cell(0, colArrival)),
		Depart:       stripSlash(w.cell(0, colDepart)),
		Service:      w.cell(0, colService),
		Cube:         w.cell(0, colCube),
		Gross:        w.cell(0, colGross),
	}

	d.Weight = normalizeWeight(w.cell(0, colWeight), d.Gross)

	// The street address lands on row +1 or +2 depending on whether an
	// extra blank row was inserted upstream. Whichever row wins determines
	// where phone and open/close data live.
	addr1 := w.cell(1, colAddress)
	addr2 := w.cell(2, colAddress)

	addressOffset := 1
	switch {
	case looksLikeAddress(addr1):
		d.Address = addr1
	case looksLikeAddress(addr2):
		d.Address = addr2
		addressOffset = 2
		p.logger.Debug("Address found on second candidate row",
			logger.String("location", d.LocationName),
			logger.String("address", addr2))
	case addr1 != "":
		// Neither candidate classified as an address; best-effort default
		// to the first non-empty row.
		d.Address = addr1
	}

	d.PhoneNumber = phoneRe.FindString(w.cell(addressOffset, colPhone))
	d.OpenCloseTime = w.cell(addressOffset+1, colOpenClose)
	d.ServiceWindows = w.cell(addressOffset+1, colServiceWindows)

	// Instructions trail the record by up to three rows.
	for offset := 3; offset <= 5; offset++ {
		label := w.cell(offset, 0)
		lower := strings.ToLower(label)
		if label == "Standard Instructions" || strings.Contains(lower, "standard instruction") {
			d.StandardInstructions = w.cell(offset, colInstructions)
			break
		} else if strings.Contains(lower, "special instruction") {
			d.SpecialInstructions = w.cell(offset, colInstructions)
			break
		} else if strings.Contains(lower, "instruction") && d.StandardInstructions == "" {
			d.StandardInstructions = label
		}
	}

	return d
}

// isPaidBreakRow reports whether this row is a Paid Break pseudo-stop. The
// marker may sit in the first cell or the location-name column.
func isPaidBreakRow(rows [][]string, i int, firstCell string) bool {
	nameCell := cell(rows, i, colLocationName)
	return hasPrefixFold(firstCell, "paid break") || hasPrefixFold(nameCell, "paid break")
}

// extractPaidBreak synthesizes a break delivery from a single row. Breaks
// carry no address and are excluded from geocoding.
func extractPaidBreak(rows [][]string, i int) *routes.Delivery {
	return &routes.Delivery{
		LocationName: "Paid Break",
		Arrival:      stripSlash(cell(rows, i, colArrival)),
		Depart:       stripSlash(cell(rows, i, colDepart)),
		Service:      cell(rows, i, colService),
		IsBreak:      true,
	}
}

// extractDepotResupply reads a mid-route return-to-depot pickup. The depot
// row itself usually shows zeros; the real pickup quantities and the depot
// address sit on the following row.
func extractDepotResupply(w rowWindow) *routes.Delivery {
	d := &routes.Delivery{
		LocationID:      w.cell(0, colLocationID),
		LocationName:    w.cell(0, colLocationName),
		Arrival:         stripSlash(w.cell(0, colArrival)),
		Depart:          stripSlash(w.cell(0, colDepart)),
		Service:         w.cell(0, colService),
		Gross:           w.cell(0, colGross),
		Address:         w.cell(1, colAddress),
		IsDepotResupply: true,
	}
	if d.LocationName == "" {
		d.LocationName = "Depot"
	}

	pallets := w.cell(0, colCube)
	weight := ""

	// Ordered numeric tokens from the next row; the final three are
	// CS, PAL, WGT.
	nums := numericTokens(w.row(1))
	if len(nums) >= 3 {
		pallets = strconv.Itoa(int(roundHalfUp(nums[len(nums)-2])))
		weight = strconv.Itoa(int(roundHalfUp(nums[len(nums)-1])))
	} else {
		// Sparse rows: last small positive integer is the pallet count,
		// largest large value is the weight.
		for _, n := range nums {
			if n > 0 && n <= 100 {
				pallets = strconv.Itoa(int(roundHalfUp(n)))
			}
		}
		maxWeight := 0.0
		for _, n := range nums {
			if n >= 1000 && n > maxWeight {
				maxWeight = n
			}
		}
		if maxWeight > 0 {
			weight = strconv.Itoa(int(roundHalfUp(maxWeight)))
		}
	}

	// Canonical PAL/WGT columns on the next row win over the heuristic.
	if v, ok := parseNumber(w.cell(1, colCube)); ok && v > 0 {
		pallets = strconv.Itoa(int(roundHalfUp(v)))
	}
	if v, ok := parseNumber(w.cell(1, colGross)); ok && v > 0 {
		weight = strconv.Itoa(int(roundHalfUp(v)))
	}

	if weight == "" && d.Gross != "" {
		weight = strings.ReplaceAll(d.Gross, ",", "")
	}

	d.Cube = pallets
	d.Weight = weight
	return d
}

// looksLikeAddress is a best-effort text classifier for the address-row
// disambiguation: a digit plus either a street-type keyword or enough
// length, and not an open/close time label. Genuinely ambiguous rows can
// still misclassify; there is no verification fallback.
func looksLikeAddress(s string) bool {
	if s == "" {
		return false
	}
	hasDigit := strings.ContainsAny(s, "0123456789")
	lower := strings.ToLower(s)
	notOpenClose := !strings.Contains(lower, "open") && !strings.Contains(lower, "close")
	return hasDigit && (streetWordRe.MatchString(s) || len(s) > 10) && notOpenClose
}

// stripSlash drops a trailing "/..." suffix from a time value.
func stripSlash(s string) string {
	if idx := strings.Index(s, "/"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

// normalizeWeight prefers the gross column when present and rounds the
// result to one decimal place.
func normalizeWeight(weight, gross string) string {
	if gross != "" {
		weight = strings.ReplaceAll(gross, ",", "")
	}
	if v, ok := parseNumber(weight); ok {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return weight
}

// numericTokens extracts every numeric token from a row's cells in textual
// order, with thousands separators stripped.
func numericTokens(row []string) []float64 {
	var nums []float64
	for _, c := range row {
		for _, tok := range numericRe.FindAllString(c, -1) {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64); err == nil {
				nums = append(nums, v)
			}
		}
	}
	return nums
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func roundHalfUp(v float64) float64 {
	if v < 0 {
		return -roundHalfUp(-v)
	}
	return float64(int(v + 0.5))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
