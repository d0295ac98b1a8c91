package web

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with the given status code. Encoding
// errors after WriteHeader cannot be reported to the client and are dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes {"error": message} with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
