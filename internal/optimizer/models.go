package optimizer

import "encoding/json"

// Request is a vehicle-routing problem submitted to the optimization
// service.
type Request struct {
	Locations   Locations `json:"locations"`
	Vehicles    []Vehicle `json:"vehicles"`
	Jobs        []Job     `json:"jobs"`
	Options     Options   `json:"options"`
	Description string    `json:"description,omitempty"`
}

// Locations is the deduplicated "lat,lng" index jobs and vehicles refer to.
type Locations struct {
	Location []string `json:"location"`
}

// Vehicle is one truck with a shift window anchored at the depot.
type Vehicle struct {
	ID            string         `json:"id"`
	Description   string         `json:"description,omitempty"`
	TimeWindow    [2]int64       `json:"time_window"`
	StartIndex    int            `json:"start_index"`
	EndIndex      int            `json:"end_index"`
	LayoverConfig *LayoverConfig `json:"layover_config,omitempty"`
}

// LayoverConfig caps continuous driving time with a mandatory rest.
type LayoverConfig struct {
	MaxContinuousTime  int  `json:"max_continuous_time"`
	LayoverDuration    int  `json:"layover_duration"`
	IncludeServiceTime bool `json:"include_service_time"`
}

// Job is one delivery stop to schedule.
type Job struct {
	ID            string     `json:"id"`
	Description   string     `json:"description,omitempty"`
	Service       int        `json:"service"`
	LocationIndex int        `json:"location_index"`
	TimeWindows   [][2]int64 `json:"time_windows,omitempty"`
	SequenceOrder int        `json:"sequence_order,omitempty"`
}

// Options selects routing mode and objective.
type Options struct {
	Routing   Routing   `json:"routing"`
	Objective Objective `json:"objective"`
}

// Routing configures the travel model.
type Routing struct {
	Mode             string `json:"mode"`
	TrafficTimestamp int64  `json:"traffic_timestamp,omitempty"`
}

// Objective sets what the solver minimizes.
type Objective struct {
	TravelCost string `json:"travel_cost"`
}

// submitResponse carries the request ID assigned by the service. Some
// deployments return it as "id", others as "requestId".
type submitResponse struct {
	ID        string `json:"id"`
	RequestID string `json:"requestId"`
}

// Result is a polled optimization outcome. The solution payload is kept
// opaque; only status, message and the unassigned count are interpreted.
type Result struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  *ResultPayload  `json:"result,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// ResultPayload is the subset of the solution the server inspects.
type ResultPayload struct {
	Status     string            `json:"status,omitempty"`
	Message    string            `json:"message,omitempty"`
	Summary    json.RawMessage   `json:"summary,omitempty"`
	Routes     json.RawMessage   `json:"routes,omitempty"`
	Unassigned []json.RawMessage `json:"unassigned,omitempty"`
}

// RouteResult combines the in-sequence and free-sequence runs for one
// route. The free-sequence solution is the primary result.
type RouteResult struct {
	RouteID    string `json:"routeId,omitempty"`
	RequestID  string `json:"requestId"`
	RequestIDs struct {
		InSequence string `json:"inSequence"`
		NoSequence string `json:"noSequence"`
	} `json:"requestIds"`
	Result    *Result `json:"result"`
	Summaries struct {
		InSequence json.RawMessage `json:"inSequence,omitempty"`
		NoSequence json.RawMessage `json:"noSequence,omitempty"`
	} `json:"summaries"`
	UnassignedCounts struct {
		InSequence int `json:"inSequence"`
		NoSequence int `json:"noSequence"`
	} `json:"unassignedCounts"`
}

// BulkResult is the outcome of optimizing every route in an upload.
type BulkResult struct {
	Routes []*RouteResult `json:"routes"`
}
