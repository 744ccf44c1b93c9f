package routes

// Route represents one vehicle's delivery plan for a shift, as reconstructed
// from a carrier stop-list report.
type Route struct {
	RouteID        string      `json:"routeId"`
	DriverID       string      `json:"driverId,omitempty"`
	DriverName     string      `json:"driverName,omitempty"`
	EquipmentType  string      `json:"equipmentType,omitempty"`
	RouteStartTime string      `json:"routeStartTime,omitempty"`
	RouteEndTime   string      `json:"routeEndTime,omitempty"`
	Status         string      `json:"status,omitempty"` // "in progress", "complete"
	Deliveries     []*Delivery `json:"deliveries"`
}

// Delivery is a single stop (or pseudo-stop) within a route. Order within
// Route.Deliveries is the as-planned stop sequence and is preserved through
// geocoding.
type Delivery struct {
	StopNumber           string `json:"stopNumber"`
	LocationID           string `json:"locationId"`
	LocationName         string `json:"locationName"`
	Day                  string `json:"day,omitempty"` // M/T/W/R/F, POC reports only
	Arrival              string `json:"arrival"`
	Depart               string `json:"depart"`
	Service              string `json:"service"`
	Weight               string `json:"weight"`
	Cube                 string `json:"cube"`
	Gross                string `json:"gross"`
	Address              string `json:"address"`
	PhoneNumber          string `json:"phoneNumber"`
	OpenCloseTime        string `json:"openCloseTime"`
	ServiceWindows       string `json:"serviceWindows"`
	StandardInstructions string `json:"standardInstructions"`
	SpecialInstructions  string `json:"specialInstructions"`

	// IsBreak marks a paid rest period; it carries no address and is
	// excluded from geocoding. IsDepotResupply marks a mid-route return to
	// the depot to reload cargo.
	IsBreak         bool `json:"isBreak,omitempty"`
	IsDepotResupply bool `json:"isDepotResupply,omitempty"`

	// Geocode is nil until the geocoding pass runs. It stays nil only for
	// rows with neither an address nor a location name to resolve.
	Geocode *Geocode `json:"geocode"`
}

// Geocode is the outcome of resolving a delivery to coordinates. Failures
// are recorded here rather than aborting the batch.
type Geocode struct {
	Success          bool           `json:"success"`
	Address          string         `json:"address,omitempty"`
	Latitude         float64        `json:"latitude,omitempty"`
	Longitude        float64        `json:"longitude,omitempty"`
	FormattedAddress string         `json:"formattedAddress,omitempty"`
	Confidence       float64        `json:"confidence,omitempty"`
	GeocodedWith     string         `json:"geocodedWith,omitempty"` // "address" or "locationName"
	ProximityHint    *ProximityHint `json:"proximityHint,omitempty"`
	FromCache        bool           `json:"fromCache,omitempty"`
	CachedAt         string         `json:"cachedAt,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// ProximityHint records which nearby stop biased a location-name search,
// for observability.
type ProximityHint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Distance  int     `json:"distance"`  // stops away within the route
	Direction string  `json:"direction"` // "previous" or "next"
}

// RouteSet is the canonical parsed output of either report layout, and the
// unit the geocoding resolver and optimizer operate on.
type RouteSet struct {
	Routes          []*Route        `json:"routes"`
	TotalRoutes     int             `json:"totalRoutes"`
	TotalDeliveries int             `json:"totalDeliveries"`
	GeocodingStats  *GeocodingStats `json:"geocodingStats,omitempty"`
}

// GeocodingStats aggregates the outcome of a full two-pass geocoding run.
type GeocodingStats struct {
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	CacheHits   int       `json:"cacheHits"`
	CacheMisses int       `json:"cacheMisses"`
	CacheSize   int       `json:"cacheSize"`
	Pass1       PassStats `json:"pass1"`
	Pass2       PassStats `json:"pass2"`
}

// PassStats counts the work done by a single geocoding pass.
type PassStats struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed,omitempty"`
}

// CountDeliveries recomputes the delivery total across all routes.
func (rs *RouteSet) CountDeliveries() int {
	n := 0
	for _, r := range rs.Routes {
		n += len(r.Deliveries)
	}
	return n
}
