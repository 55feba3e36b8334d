package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// ValidationErrorResponse is returned when a payload fails schema validation,
// carrying field-level detail
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// HealthCheckResponse returns the health check response struct, yes we are alive
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
