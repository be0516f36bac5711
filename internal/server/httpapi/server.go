// Package httpapi exposes the session and object services over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const shutdownTimeout = 10 * time.Second

// Sessions is the part of services.SessionService the API needs.
type Sessions interface {
	Register(ctx context.Context, username, password string) (*services.Authenticated, error)
	Login(ctx context.Context, username, password string) (services.LoginResult, error)
	VerifySecondFactor(ctx context.Context, principalID, code string) (*services.Authenticated, error)
	Logout() services.Assertion
	EnableSecondFactor(ctx context.Context, principalID string) (*auth.Enrollment, error)
	DisableSecondFactor(ctx context.Context, principalID string) error
	HasSecondFactor(ctx context.Context, principalID string) (bool, error)
	VerifyAssertion(ctx context.Context, token string) (*services.VerifiedSession, error)
}

// Objects is the part of services.ObjectService the API needs.
type Objects interface {
	Put(ctx context.Context, req services.PutRequest) (*models.StoredObject, error)
	ListPublic(ctx context.Context) ([]*models.StoredObject, error)
	ListOwned(ctx context.Context, principalID string) ([]*models.StoredObject, error)
	ListDownloaded(ctx context.Context, principalID string) ([]*models.StoredObject, error)
	Get(ctx context.Context, objectID, requesterID string) (*models.StoredObject, []byte, error)
	Update(ctx context.Context, objectID, requesterID string, patch models.ObjectPatch) (*models.StoredObject, error)
	Delete(ctx context.Context, objectID, requesterID string) error
}

type Server struct {
	address       string
	sessions      Sessions
	objects       Objects
	logger        logging.Logger
	maxUploadSize int64
	corsOrigins   []string
}

func NewServer(c *config.Config, l logging.Logger, ss Sessions, objs Objects) *Server {
	return &Server{
		address:       c.HTTPAddr,
		sessions:      ss,
		objects:       objs,
		logger:        l.With("module", "http_server"),
		maxUploadSize: c.MaxUploadSize,
		corsOrigins:   c.CORSOrigins,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.With(s.requireAuth).Get("/verify", s.verify)
		})

		r.Route("/mfa", func(r chi.Router) {
			r.Post("/verify", s.verifySecondFactor)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/enable", s.enableSecondFactor)
				r.Post("/disable", s.disableSecondFactor)
				r.Get("/status", s.secondFactorStatus)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", s.listPublic)
			r.With(s.optionalAuth).Get("/{id}", s.download)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/upload", s.upload)
				r.Get("/uploaded", s.listOwned)
				r.Get("/downloaded", s.listDownloaded)
				r.Put("/{id}", s.update)
				r.Delete("/{id}", s.remove)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
