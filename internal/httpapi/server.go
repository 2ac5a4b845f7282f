// Package httpapi is the thin request layer: it validates primitive inputs,
// invokes the application operations, and maps business failures onto status
// codes. All game semantics live below it.
package httpapi

import (
	"net/http"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/crowdchess/crowdchess/internal/game"
	"github.com/crowdchess/crowdchess/internal/gateway"
)

// Server routes HTTP requests to the application layer.
type Server struct {
	app *game.App
	hub *gateway.Hub
}

// New creates the request layer.
func New(app *game.App, hub *gateway.Hub) *Server {
	return &Server{app: app, hub: hub}
}

// Handler builds the routed handler wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/join", s.handleJoin)
	mux.HandleFunc("POST /api/leave", s.handleLeave)
	mux.HandleFunc("POST /api/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/move", s.handleMove)
	mux.HandleFunc("POST /api/admin/reset", s.handleReset)
	mux.HandleFunc("POST /api/admin/clear", s.handleClearAll)
	mux.HandleFunc("POST /api/admin/kick", s.handleKick)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleSubscribe)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// NewHTTPServer wraps the handler in an h2c-capable http.Server.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}
