package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RequestsResponse wraps the list of known requests for GET /requests.
type RequestsResponse struct {
	Requests []RequestSnapshot `json:"requests"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Arbiter-wide VRAM accounting.
	VRAM VRAMStatus `json:"vram"`
	// Per-service lifecycle state.
	Service ServiceStatus `json:"service"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
