// Package server exposes form sessions over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dlovans/formwork/internal/config"
	"github.com/dlovans/formwork/internal/store"
	"github.com/dlovans/formwork/pkg/formwork"
)

// Server wires the form registry, live sessions and persistence to HTTP routes.
type Server struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	forms    *Registry
	sessions *Manager
	store    *store.Store // nil disables submissions and drafts
	rules    *formwork.CustomRules
}

// New creates a server. st may be nil.
func New(cfg config.Config, forms *Registry, st *store.Store, logger *zap.SugaredLogger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		forms:    forms,
		sessions: NewManager(cfg.SessionMaxAge, cfg.SessionIdle),
		store:    st,
		rules:    formwork.NewCustomRules(),
	}
}

// CustomRules is the registry shared by every session the server mounts.
// Register predicates before serving.
func (s *Server) CustomRules() *formwork.CustomRules { return s.rules }

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/forms", func(r chi.Router) {
		r.Get("/", s.listForms)
		r.Get("/{form}", s.getForm)
		r.Get("/{form}/lint", s.lintForm)
		r.Post("/{form}/sessions", s.createSession)
		r.Get("/{form}/submissions", s.listSubmissions)
	})

	r.Get("/api/submissions/{submission}", s.getSubmission)

	r.Route("/api/sessions/{session}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Delete("/", s.deleteSession)
		r.Put("/values/{field}", s.setValue)
		r.Post("/blur/{field}", s.blur)
		r.Post("/entries/{array}", s.addEntry)
		r.Put("/entries/{array}/{key}/{child}", s.setEntryValue)
		r.Delete("/entries/{array}/{key}", s.removeEntry)
		r.Post("/entries/{array}/{key}/confirm", s.confirmRemove)
		r.Post("/entries/{array}/{key}/cancel", s.cancelRemove)
		r.Post("/errors", s.setErrors)
		r.Post("/reset", s.reset)
		r.Post("/submit", s.submit)
		r.Post("/draft", s.saveDraft)
		r.Get("/ws", s.serveWS)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Infow("listening", "addr", s.cfg.Addr, "forms", len(s.forms.IDs()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Infow("server stopped")
	return nil
}

// sweep drops idle and expired sessions once a minute.
func (s *Server) sweep(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Cleanup(); n > 0 {
				s.logger.Infow("sessions expired", "count", n, "live", s.sessions.Len())
			}
		}
	}
}

// mount creates a session for a registered form, optionally seeded with values.
func (s *Server) mount(form string, values map[string]any) (*liveSession, error) {
	doc, ok := s.forms.Get(form)
	if !ok {
		return nil, fmt.Errorf("form %q: %w", form, errUnknownForm)
	}

	var live *liveSession
	opts := []formwork.SessionOption{
		formwork.WithLogger(s.logger.With("form", form)),
		formwork.WithCustomRules(s.rules),
		formwork.WithValues(values),
	}
	if s.store != nil {
		opts = append(opts, formwork.WithSubmitHandler(func(ctx context.Context, payload map[string]any) error {
			sub, err := s.store.SaveSubmission(ctx, form, live.session.ID(), payload)
			if err != nil {
				return err
			}
			live.lastSubmission = sub.ID
			return nil
		}))
	}
	sess, err := formwork.New(doc, opts...)
	if err != nil {
		return nil, err
	}
	live = s.sessions.Add(form, sess)
	return live, nil
}

var errUnknownForm = errors.New("unknown form")
