// Package middleware holds adapters and in house middlewares
package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// RequestID attaches or propagates X-Request-ID and stores it on context
func RequestID() func(http.Handler) http.Handler { return chimw.RequestID }

// RealIP sets RemoteAddr to the upstream IP based on X-Forwarded-For headers
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// CORSOptions is a narrow surface over go-chi/cors
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// CORS builds a cors middleware for browser clients of the health and
// metrics endpoints (the owner dashboard polls bot health)
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{http.MethodGet, http.MethodOptions}
	}
	if o.MaxAge == 0 {
		o.MaxAge = 300
	}
	return chicors.Handler(chicors.Options{
		AllowedOrigins: o.AllowedOrigins,
		AllowedMethods: o.AllowedMethods,
		AllowedHeaders: o.AllowedHeaders,
		MaxAge:         o.MaxAge,
	})
}
