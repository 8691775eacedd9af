package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes bounds request bodies. Uploaded documents arrive
// base64 encoded inside JSON.
const DefaultMaxBodyBytes int64 = 25 << 20

type Deps struct {
	Agents         Credentials
	Clients        Credentials
	Matching       Matcher
	MaxResults     int
	Production     bool
	AllowedOrigins []string
	MaxBodyBytes   int64
	Log            logging.Logger
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(CORS(d.AllowedOrigins))
	r.Use(secureHeaders(d.Production)...)
	r.Use(middleware.RequestSize(d.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Route("/api/v1", func(r chi.Router) {
		agents := &authHandler{creds: d.Agents, secureCookie: d.Production, apiKeys: true, log: d.Log}
		r.Route("/auth", agents.routes)

		if d.Clients != nil {
			clients := &authHandler{creds: d.Clients, secureCookie: d.Production, log: d.Log}
			r.Route("/clients/auth", clients.routes)
		}

		recs := &recommendationHandler{matcher: d.Matching, creds: d.Agents, maxResults: d.MaxResults, log: d.Log}
		r.Route("/recommendations", recs.routes)
	})

	return r
}
