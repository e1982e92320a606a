package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Cache     string `json:"cache,omitempty"`
	Timestamp string `json:"timestamp"`
}
