package mw

import (
	"encoding/json"
	"net/http"
)

// writeDetail answers with the same {"detail": ...} body the API handlers use.
func writeDetail(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": http.StatusText(status)})
}
