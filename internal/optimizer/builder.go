package optimizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
)

// Time windows in the reports are local wall-clock strings with an optional
// US timezone abbreviation on the route timestamp. Epochs are derived by
// parsing the wall-clock time as UTC and adding the zone's offset.
var tzOffsets = []struct {
	abbr   string
	offset int64 // seconds behind UTC
}{
	{"EDT", 4 * 3600},
	{"EST", 5 * 3600},
	{"CDT", 5 * 3600},
	{"CST", 6 * 3600},
	{"MDT", 6 * 3600},
	{"MST", 7 * 3600},
	{"PDT", 7 * 3600},
	{"PST", 8 * 3600},
}

var clockTokenRe = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?)`)

// builderConfig carries the deployment knobs for request construction.
type builderConfig struct {
	mode             string
	travelCost       string
	trafficTimestamp int64
	shiftHours       int64
	layover          *LayoverConfig
}

func defaultBuilderConfig() builderConfig {
	return builderConfig{
		mode:       "truck",
		travelCost: "duration",
		shiftHours: 12,
		layover: &LayoverConfig{
			MaxContinuousTime:  18000,
			LayoverDuration:    1800,
			IncludeServiceTime: true,
		},
	}
}

// buildRouteRequests constructs the in-sequence and free-sequence problem
// bodies for one route. Deliveries without coordinates are skipped; the
// depot is location index 0 and is the vehicle's start and end.
func buildRouteRequests(route *routes.Route, depot string, cfg builderConfig) (inSeq, noSeq *Request, err error) {
	if depot == "" {
		return nil, nil, fmt.Errorf("depot location is required for route optimization")
	}

	locations := []string{depot}
	indexByKey := map[string]int{"depot": 0}
	addLocation := func(key, latlng string) int {
		if idx, ok := indexByKey[key]; ok {
			return idx
		}
		indexByKey[key] = len(locations)
		locations = append(locations, latlng)
		return len(locations) - 1
	}

	var baseJobs []Job
	for _, d := range route.Deliveries {
		g := d.Geocode
		if g == nil || !g.Success {
			continue
		}
		locIdx := addLocation("stop-"+d.StopNumber, fmt.Sprintf("%v,%v", g.Latitude, g.Longitude))
		twStart, twEnd := deriveTimeWindow(d.OpenCloseTime, route.RouteStartTime, d.Arrival, d.Depart)
		baseJobs = append(baseJobs, Job{
			ID:            fmt.Sprintf("%s-%s", d.StopNumber, route.RouteID),
			Description:   fmt.Sprintf("%s|%s|%s|%s-%s", d.StopNumber, d.LocationName, d.Address, d.Arrival, d.Depart),
			Service:       serviceSeconds(d.Service),
			LocationIndex: locIdx,
			TimeWindows:   [][2]int64{{twStart, twEnd}},
		})
	}
	if len(baseJobs) == 0 {
		return nil, nil, fmt.Errorf("route %s has no geocoded deliveries to optimize", route.RouteID)
	}

	shiftStart := routeStartEpoch(route.RouteStartTime)
	shiftEnd := shiftStart + cfg.shiftHours*3600

	vehicle := Vehicle{
		ID:            route.RouteID,
		Description:   fmt.Sprintf("%s-%s-%d", route.RouteID, route.DriverName, len(route.Deliveries)),
		TimeWindow:    [2]int64{shiftStart, shiftEnd},
		StartIndex:    0,
		EndIndex:      0,
		LayoverConfig: cfg.layover,
	}

	options := Options{
		Routing:   Routing{Mode: cfg.mode, TrafficTimestamp: cfg.trafficTimestamp},
		Objective: Objective{TravelCost: cfg.travelCost},
	}

	// The in-sequence run pins the planned stop order. Time windows are
	// dropped for all but the first job so the pinned order stays feasible.
	seqJobs := make([]Job, len(baseJobs))
	for i, j := range baseJobs {
		j.SequenceOrder = i + 1
		if i > 0 {
			j.TimeWindows = nil
		}
		seqJobs[i] = j
	}

	inSeq = &Request{
		Locations:   Locations{Location: locations},
		Vehicles:    []Vehicle{vehicle},
		Jobs:        seqJobs,
		Options:     options,
		Description: fmt.Sprintf("Optimization (in-sequence) for %s", route.RouteID),
	}
	noSeq = &Request{
		Locations:   Locations{Location: locations},
		Vehicles:    []Vehicle{vehicle},
		Jobs:        baseJobs,
		Options:     options,
		Description: fmt.Sprintf("Optimization (no sequence) for %s", route.RouteID),
	}
	return inSeq, noSeq, nil
}

// deriveTimeWindow extracts a [start, end] epoch pair from an open/close
// string, falling back to the planned arrival/depart times.
func deriveTimeWindow(openClose, routeDateTime, fallbackArrival, fallbackDepart string) (int64, int64) {
	if openClose != "" {
		tokens := clockTokenRe.FindAllString(openClose, 2)
		if len(tokens) == 2 {
			start := parseTimeToEpoch(tokens[0], routeDateTime)
			end := parseTimeToEpoch(tokens[1], routeDateTime)
			if start != 0 && end != 0 && end >= start {
				return start, end
			}
		}

		openRe := regexp.MustCompile(`(?i)open\s+(\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?)`)
		closeRe := regexp.MustCompile(`(?i)close\s+(\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?)`)
		openM := openRe.FindStringSubmatch(openClose)
		closeM := closeRe.FindStringSubmatch(openClose)
		if openM != nil && closeM != nil {
			start := parseTimeToEpoch(openM[1], routeDateTime)
			end := parseTimeToEpoch(closeM[1], routeDateTime)
			if start != 0 && end != 0 && end >= start {
				return start, end
			}
		}
	}

	return parseTimeToEpoch(fallbackArrival, routeDateTime), parseTimeToEpoch(fallbackDepart, routeDateTime)
}

// parseTimeToEpoch combines a wall-clock time with the date portion of the
// route timestamp. Returns 0 when either part is unusable.
func parseTimeToEpoch(timeStr, routeDateTime string) int64 {
	timeStr = strings.TrimSpace(timeStr)
	if timeStr == "" || routeDateTime == "" {
		return 0
	}
	dateOnly := strings.Fields(routeDateTime)[0]

	base, err := parseDate(dateOnly)
	if err != nil {
		return 0
	}

	m := regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(?i:(am|pm))?$`).FindStringSubmatch(timeStr)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds := 0
	if m[3] != "" {
		seconds, _ = strconv.Atoi(m[3])
	}
	switch strings.ToLower(m[4]) {
	case "pm":
		if hours != 12 {
			hours += 12
		}
	case "am":
		if hours == 12 {
			hours = 0
		}
	}

	epoch := base.Add(time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second).Unix()
	return epoch + tzOffsetSeconds(routeDateTime)
}

// routeStartEpoch parses the full route start timestamp.
func routeStartEpoch(routeDateTime string) int64 {
	if routeDateTime == "" {
		return 0
	}
	fields := strings.Fields(routeDateTime)
	if len(fields) == 0 {
		return 0
	}
	base, err := parseDate(fields[0])
	if err != nil {
		return 0
	}
	if len(fields) >= 2 {
		clock := fields[1]
		if len(fields) >= 3 && (strings.EqualFold(fields[2], "am") || strings.EqualFold(fields[2], "pm")) {
			clock += " " + fields[2]
		}
		if epoch := parseTimeToEpoch(clock, routeDateTime); epoch != 0 {
			return epoch
		}
	}
	return base.Unix() + tzOffsetSeconds(routeDateTime)
}

// parseDate accepts the date forms seen in the reports.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"1/2/2006", "01/02/2006", "2006-01-02", "1/2/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %q", s)
}

// tzOffsetSeconds maps a US timezone abbreviation in the route timestamp to
// its offset behind UTC.
func tzOffsetSeconds(routeDateTime string) int64 {
	upper := strings.ToUpper(routeDateTime)
	for _, tz := range tzOffsets {
		if strings.Contains(upper, tz.abbr) {
			return tz.offset
		}
	}
	return 0
}

// serviceSeconds converts a service duration to whole seconds. Accepts
// H:MM:SS, H:MM, and bare numeric seconds.
func serviceSeconds(val string) int {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	parts := strings.Split(val, ":")
	nums := make([]int, 0, len(parts))
	allNumeric := true
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			allNumeric = false
			break
		}
		nums = append(nums, n)
	}
	if allNumeric {
		switch len(nums) {
		case 3:
			return nums[0]*3600 + nums[1]*60 + nums[2]
		case 2:
			return nums[0]*3600 + nums[1]*60
		}
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
		return int(f + 0.5)
	}
	return 0
}
