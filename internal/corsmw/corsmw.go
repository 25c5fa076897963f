// Package corsmw sets CORS headers for browser clients of the HTTP API.
package corsmw

import (
	"net/http"
	"strings"

	"github.com/thoas/go-funk"
)

const anyOrigin = "*"

var (
	allowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders = []string{
		"Origin",
		"Content-Type",
		"Content-Encoding",
		"Accept-Encoding",
		"X-Request-ID",
	}
)

// New returns a middleware allowing the given origins. "*" allows every origin.
// Preflight requests are answered with 204 and never reach the wrapped handler.
func New(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := funk.ContainsString(allowedOrigins, anyOrigin)
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")

	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get("Origin")

			switch {
			case allowAll:
				response.Header().Set("Access-Control-Allow-Origin", anyOrigin)
			case origin != "" && funk.ContainsString(allowedOrigins, origin):
				response.Header().Set("Access-Control-Allow-Origin", origin)
				response.Header().Add("Vary", "Origin")
			}
			response.Header().Set("Access-Control-Allow-Methods", methods)
			response.Header().Set("Access-Control-Allow-Headers", headers)

			if request.Method == http.MethodOptions && request.Header.Get("Access-Control-Request-Method") != "" {
				response.WriteHeader(http.StatusNoContent)
				return
			}

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}
