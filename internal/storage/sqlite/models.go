package sqlite

import "time"

// UploadRecord is one processed report upload: the parsed, geocoded route
// set serialized as JSON, plus identifying metadata.
type UploadRecord struct {
	ID              string    `json:"id"`
	FileName        string    `json:"fileName"`
	Format          string    `json:"format"`
	TotalRoutes     int       `json:"totalRoutes"`
	TotalDeliveries int       `json:"totalDeliveries"`
	CreatedAt       time.Time `json:"createdAt"`
	Payload         string    `json:"-"`
}

// UploadSummary is the listing view of an upload, without the payload.
type UploadSummary struct {
	ID              string    `json:"id"`
	FileName        string    `json:"fileName"`
	Format          string    `json:"format"`
	TotalRoutes     int       `json:"totalRoutes"`
	TotalDeliveries int       `json:"totalDeliveries"`
	CreatedAt       time.Time `json:"createdAt"`
}
