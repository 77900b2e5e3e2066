// Package respond writes the engagement API's wire shapes: plain JSON
// bodies, cached read views with ETag and Cache-Control headers, and the
// structured error envelope every endpoint returns.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorResponse is the error envelope for all API errors. Code is a stable
// machine-readable kind; Detail carries the wrapped cause when it is safe to
// show the caller.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	} `json:"error"`
}

// Cached writes raw JSON bytes with ETag and Cache-Control headers. hit marks
// whether the body was served from the in-memory cache.
func Cached(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, hit bool) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Vary", "Accept-Encoding")
	maxAge := int(ttl.Seconds())
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/2))
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// NotModified answers a matching If-None-Match with 304.
func NotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// JSON marshals v and writes it with the given status. Mutating endpoints and
// health checks use it; their responses are never cached.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	errorEnvelope(w, status, code, message, "")
}

// ErrorDetail writes the error envelope with a detail line for the caller.
func ErrorDetail(w http.ResponseWriter, status int, code, message, detail string) {
	errorEnvelope(w, status, code, message, detail)
}

func errorEnvelope(w http.ResponseWriter, status int, code, message, detail string) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Detail = detail
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
