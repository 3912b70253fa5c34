package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/park285/triarii/internal/match"
	"github.com/park285/triarii/internal/msgcat"
	"github.com/park285/triarii/internal/render"
	"github.com/park285/triarii/internal/results"
)

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Games    *match.Manager
	Results  results.Repository
	Renderer render.Renderer
	Messages *msgcat.Catalog
	Health   Pinger
	// Origins lists allowed browser origins; empty allows any.
	Origins      []string
	ResultsLimit int
}

type Server struct {
	games    *match.Manager
	results  results.Repository
	renderer render.Renderer
	msgs     *msgcat.Catalog
	health   Pinger
	origins  []string
	limit    int
}

func NewServer(d Deps) *Server {
	s := &Server{
		games:    d.Games,
		results:  d.Results,
		renderer: d.Renderer,
		msgs:     d.Messages,
		health:   d.Health,
		origins:  d.Origins,
		limit:    d.ResultsLimit,
	}
	if s.renderer == nil {
		s.renderer = render.New()
	}
	if s.results == nil {
		s.results = results.NewMemoryRepository()
	}
	if s.limit <= 0 {
		s.limit = 20
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/games", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/join", s.handleJoin)
			r.Get("/history", s.handleHistory)
			r.Get("/board.png", s.handleBoard)
			r.Get("/ws", s.handleWatch)

			r.Group(func(r chi.Router) {
				r.Use(requireBearer)
				r.Put("/selection", s.handleSelect)
				r.Post("/moves", s.handleMove)
				r.Post("/end-turn", s.handleEndTurn)
				r.Post("/resign", s.handleResign)
			})
		})
	})

	r.Get("/results", s.handleResults)
	r.Get("/results/{id}", s.handleResult)
	return r
}

// HTTPServer wraps Routes with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
