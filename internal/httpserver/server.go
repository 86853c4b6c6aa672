// internal/httpserver/server.go
//
// HTTP server wiring for the Ocean Family Tree backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/catalog".
//   - Session creation: POST /session.
//   - Session endpoints (require a session token): /session/state,
//     /session/place, /session/reset, DELETE /session.
//   - Live updates: GET /session/stream (WebSocket).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The stream route sits outside the Timeout middleware; it is long-lived.
//   - Placement no-ops are not errors: they return 200 with accepted=false.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/oceantree/internal/catalog"
	"github.com/robalobadob/oceantree/internal/game"
	"github.com/robalobadob/oceantree/internal/store"
)

// Options configures a Server.
type Options struct {
	Store        store.Store
	Catalog      *catalog.Catalog
	NewMachine   func() *game.Machine // defaults to game.New(Catalog)
	Secret       string
	TokenTTL     time.Duration
	ClientOrigin string
	Logger       *zerolog.Logger // defaults to the global logger
}

// Server bundles router, session store and catalog.
type Server struct {
	r        *chi.Mux
	store    store.Store
	cat      *catalog.Catalog
	newGame  func() *game.Machine
	secret   []byte
	tokenTTL time.Duration
	origin   string
	log      zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(opts Options) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		store:    opts.Store,
		cat:      opts.Catalog,
		newGame:  opts.NewMachine,
		secret:   []byte(opts.Secret),
		tokenTTL: opts.TokenTTL,
		origin:   opts.ClientOrigin,
		log:      log.Logger,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if s.newGame == nil {
		s.newGame = func() *game.Machine { return game.New(s.cat, game.WithLogger(s.log)) }
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 12 * time.Hour
	}
	if s.origin == "" {
		s.origin = "http://localhost:5173"
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Live updates; no handler timeout.
	s.r.With(s.requireSession(true)).Get("/session/stream", s.handleStream)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"oceantree","endpoints":["/health","/catalog","POST /session","/session/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.store.Len()})
		})

		r.Get("/catalog", s.handleCatalog)
		s.mountSession(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError sends {"error": code} with the given status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// ------------------------------ CATALOG ------------------------------------

// catalogNode is a node without its answer set.
type catalogNode struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type catalogRes struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	EducationalContent string            `json:"educationalContent"`
	Scoring            catalog.Scoring   `json:"scoring"`
	Tree               *catalog.Tree     `json:"tree,omitempty"`
	Species            []catalog.Species `json:"species"`
	Nodes              []catalogNode     `json:"nodes"`
}

// handleCatalog returns the static board content for rendering.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	nodes := s.cat.Nodes()
	out := catalogRes{
		Title:              s.cat.Title(),
		Description:        s.cat.Description(),
		EducationalContent: s.cat.EducationalContent(),
		Scoring:            s.cat.Scoring(),
		Species:            s.cat.Species(),
		Nodes:              make([]catalogNode, len(nodes)),
	}
	if tree, ok := s.cat.Tree(); ok {
		out.Tree = &tree
	}
	for i, n := range nodes {
		out.Nodes[i] = catalogNode{ID: n.ID, Label: n.Label, X: n.X, Y: n.Y}
	}
	_ = json.NewEncoder(w).Encode(out)
}
