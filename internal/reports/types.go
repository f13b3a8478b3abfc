package reports

import "time"

// Status is the review lifecycle of an IPH report in the registry.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusReviewed  Status = "reviewed"
	StatusClosed    Status = "closed"
)

// Report is an IPH incident report as served by the upstream registry.
type Report struct {
	ID           string    `json:"id"`
	Folio        string    `json:"folio"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Status       Status    `json:"status"`
	IncidentType string    `json:"incidentType"`
	OfficerID    string    `json:"officerId"`
	Municipality string    `json:"municipality"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	OccurredAt   time.Time `json:"occurredAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Page is one page of a report listing.
type Page struct {
	Items    []Report `json:"items"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// ListParams filter and paginate a report listing.
type ListParams struct {
	Page         int
	PageSize     int
	Status       string
	IncidentType string
	Municipality string
	Query        string
}

// Stats are aggregate counts for the dashboard panels.
type Stats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByType         map[string]int `json:"byType"`
	ByMunicipality map[string]int `json:"byMunicipality"`
}

// GeoPoint is the map view's projection of a report.
type GeoPoint struct {
	ID           string  `json:"id"`
	Folio        string  `json:"folio"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	IncidentType string  `json:"incidentType"`
	Status       Status  `json:"status"`
}

// Bounds is the rectangular map region a geo query covers.
type Bounds struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// CreateRequest is the payload for creating a report.
type CreateRequest struct {
	Folio        string    `json:"folio"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	IncidentType string    `json:"incidentType"`
	OfficerID    string    `json:"officerId"`
	Municipality string    `json:"municipality"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// UpdateRequest is the payload for updating a report. Nil fields are left
// untouched by the registry.
type UpdateRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Status       *Status `json:"status,omitempty"`
	IncidentType *string `json:"incidentType,omitempty"`
	Municipality *string `json:"municipality,omitempty"`
}
