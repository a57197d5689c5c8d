package middleware

import (
	"net/http"
	"runtime/debug"

	perr "stakegate/internal/platform/errors"
	"stakegate/internal/platform/logger"
	phttp "stakegate/internal/platform/net/http"
)

// RecoverJSON catches handler panics, logs them with a stack, and writes
// a generic 500 JSON body. onPanic (optional) bumps the error counter
func RecoverJSON(onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.C(r.Context()).Error().
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Str("path", r.URL.Path).
						Msg("handler panic recovered")
					if onPanic != nil {
						onPanic()
					}
					phttp.Err(w, perr.PanicErrf("internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
