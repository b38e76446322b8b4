package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or a single "*", allows every origin.
	AllowOrigins []string
	// AllowMethods defaults to "GET, POST, OPTIONS" when empty.
	AllowMethods []string
	// AllowHeaders lists permitted request headers. When empty the
	// preflight's Access-Control-Request-Headers value is echoed back.
	AllowHeaders []string
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header.
	MaxAge int
}

// CORS handles cross-origin requests from the storefront. Checkout pages
// are typically embedded or redirected to from a different origin than the
// bridge itself, so the default posture is permissive.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}

	methods := strings.Join(cfg.AllowMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := "*"
			if !allowAll {
				w.Header().Add("Vary", "Origin")
				allowOrigin = allowed[strings.ToLower(origin)]
			}

			preflight := r.Method == http.MethodOptions &&
				r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				if allowOrigin != "" {
					w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")
			if allowOrigin == "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
				w.Header().Set("Access-Control-Allow-Headers", rh)
			}
			if cfg.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
