// Package cors applies the gateway's open CORS policy to API responses.
// API endpoints are served to third-party event pages, so all origins are
// allowed; credentials are never honored.
package cors

import "net/http"

const (
	allowOrigin  = "*"
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Accept, Accept-Language"
	maxAge       = "86400"
)

// Apply adds CORS headers to an API response.
func Apply(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowOrigin)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
}

// IsPreflight reports whether r is a CORS preflight request.
func IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}

// HandlePreflight answers a preflight locally with 204, without contacting
// the upstream.
func HandlePreflight(w http.ResponseWriter) {
	Apply(w)
	w.Header().Set("Access-Control-Max-Age", maxAge)
	w.WriteHeader(http.StatusNoContent)
}
