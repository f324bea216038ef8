package server

import "net/http"

// timestampLayout is ISO-8601 in UTC with millisecond precision. Both the
// health message and file listings use it.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type healthResponse struct {
	Message string `json:"message"`
}

// handleHealth reports liveness only. It makes no storage calls.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Message: "Healthcheck performed at: " + s.now().UTC().Format(timestampLayout),
	})
}
