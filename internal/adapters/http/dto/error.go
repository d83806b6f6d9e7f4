package dto

// ErrorResponse is the JSON error envelope used by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error" msgpack:"error"`
	Message string `json:"message,omitempty" msgpack:"message,omitempty"`
	Code    int    `json:"code,omitempty" msgpack:"code,omitempty"`
}

func NewErrorResponse(err string, message string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:   err,
		Message: message,
		Code:    code,
	}
}
