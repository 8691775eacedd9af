package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/go-chi/chi/v5/middleware"
)

// CORS allows the listed browser origins. Credentials are only allowed for
// explicitly listed origins, never for "*".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed, explicit := false, false
			for _, o := range allowedOrigins {
				if o == origin && origin != "" {
					allowed, explicit = true, true
					break
				}
				if o == "*" {
					allowed = true
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Report-URL")
				w.Header().Add("Vary", "Origin")
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// secureHeaders sets conservative browser security headers.
func secureHeaders(production bool) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{
		middleware.SetHeader("X-Content-Type-Options", "nosniff"),
		middleware.SetHeader("X-Frame-Options", "SAMEORIGIN"),
		middleware.SetHeader("Referrer-Policy", "no-referrer"),
		middleware.SetHeader("X-DNS-Prefetch-Control", "off"),
		middleware.SetHeader("Cross-Origin-Opener-Policy", "same-origin"),
	}
	if production {
		mws = append(mws, middleware.SetHeader("Strict-Transport-Security", "max-age=15552000; includeSubDomains"))
	}
	return mws
}

// RequestLogger logs one line per request.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type ctxKey string

const accountKey ctxKey = "account"

func withAccount(ctx context.Context, a *models.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFrom returns the account attached by an auth guard.
func AccountFrom(ctx context.Context) (*models.Account, bool) {
	a, ok := ctx.Value(accountKey).(*models.Account)
	return a, ok && a != nil
}
