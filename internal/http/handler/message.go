package handler

const oopsErr = "unexpected error, please retry the query"

// Response is the envelope for error and status replies. Successful query
// results are written as plain payload objects, so clients can unmarshal them
// directly into their own shapes.
type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
