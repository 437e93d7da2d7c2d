package api

// UsernameRequest carries a username from a form or JSON body.
type UsernameRequest struct {
	Username string `json:"username" form:"username"`
}

// UserResponse is the API response for the caller's stored username.
type UserResponse struct {
	Username string `json:"username"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ModuleHealth is the health of one registered module.
type ModuleHealth struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Modules map[string]ModuleHealth `json:"modules"`
}
