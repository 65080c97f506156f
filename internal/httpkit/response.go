package httpkit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes bounds request bodies; inline corpora can be large.
const maxBodyBytes = 8 << 20

// DecodeJSON decodes the request body into v and rejects unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// QueryInt reads a positive integer query parameter, returning def when it
// is absent, malformed or outside [1, max].
func QueryInt(r *http.Request, key string, def, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > max {
		return def
	}
	return v
}
