package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access to the cart API.
type CORSConfig struct {
	// AllowOrigins lists permitted origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to the methods the cart API routes use.
	AllowMethods []string
	// AllowHeaders, when empty, echoes Access-Control-Request-Headers.
	AllowHeaders []string
	// ExposeHeaders defaults to Location and X-Request-ID.
	ExposeHeaders []string
	// AllowCredentials disables the "*" origin; the request origin is
	// echoed instead.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header, a negative value sends "0".
	MaxAge int
}

// CORS returns a middleware that handles preflight and actual cross-origin
// requests. Origins match case-insensitively and are echoed as configured.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(o)] = o
	}

	methods := cfg.AllowMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	expose := cfg.ExposeHeaders
	if len(expose) == 0 {
		expose = []string{"Location", RequestIDHeader}
	}

	var (
		allowMethods  = strings.Join(methods, ", ")
		allowHeaders  = strings.Join(cfg.AllowHeaders, ", ")
		exposeHeaders = strings.Join(expose, ", ")
		maxAge        string
	)
	switch {
	case cfg.MaxAge > 0:
		maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		maxAge = "0"
	}

	// With credentials the wildcard is not allowed by browsers.
	echoAny := allowAll && cfg.AllowCredentials
	if echoAny {
		allowAll = false
	}

	match := func(origin string) string {
		switch {
		case allowAll:
			return "*"
		case echoAny:
			return origin
		}
		return allowed[strings.ToLower(origin)]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if !allowAll {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowOrigin := match(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowOrigin != "" {
					h.Set("Access-Control-Allow-Origin", allowOrigin)
					h.Set("Access-Control-Allow-Methods", allowMethods)
					if allowHeaders != "" {
						h.Set("Access-Control-Allow-Headers", allowHeaders)
					} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
						h.Set("Access-Control-Allow-Headers", rh)
					}
					if cfg.AllowCredentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if maxAge != "" {
						h.Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowOrigin != "" {
				h.Set("Access-Control-Allow-Origin", allowOrigin)
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
