package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "stakegate/internal/platform/errors"
)

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Err maps a project error to a status and writes a generic body.
// Internals never reach the client: no message, no stack, no secrets
func Err(w stdhttp.ResponseWriter, err error) {
	JSON(w, perr.HTTPStatus(err), map[string]string{"status": "error"})
}
