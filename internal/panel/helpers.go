package panel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/easelkit/easel/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEaselError maps a tagged error to an HTTP status and writes it.
func writeEaselError(w http.ResponseWriter, err error) {
	var ee *schema.EaselError
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}
	if errors.As(err, &ee) {
		status = statusForCode(ee.Code)
		body["code"] = ee.Code
		if len(ee.Details) > 0 {
			body["details"] = ee.Details
		}
	}
	writeJSON(w, status, body)
}

// statusForCode maps error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeInvalidJSON, schema.ErrCodeInvalidGraph, schema.ErrCodeMissingNodes,
		schema.ErrCodeInvalidNode, schema.ErrCodeInvalidEdge:
		return http.StatusBadRequest
	case schema.ErrCodeValidation, schema.ErrCodeExpression:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeCanceled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
