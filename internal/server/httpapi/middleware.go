package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const sessionKey ctxKey = "session"

const (
	tokenCookie  = common.AccessTokenCookieName
	bearerPrefix = common.BearerPrefix
)

func sessionFromContext(ctx context.Context) *services.VerifiedSession {
	v, _ := ctx.Value(sessionKey).(*services.VerifiedSession)
	return v
}

// principalID returns the authenticated principal or "" for anonymous
// requests.
func principalID(r *http.Request) string {
	if v := sessionFromContext(r.Context()); v != nil {
		return v.PrincipalID
	}
	return ""
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, token string) (*http.Request, error) {
	v, err := s.sessions.VerifyAssertion(r.Context(), token)
	if err != nil {
		return nil, err
	}

	if v.Renewed != nil {
		w.Header().Set(common.AuthorizationHeaderName, bearerPrefix+v.Renewed.Token)
		setTokenCookie(w, *v.Renewed)
	}

	return r.WithContext(context.WithValue(r.Context(), sessionKey, v)), nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed, err := s.authenticate(w, r, tokenFromRequest(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

// optionalAuth lets anonymous requests through but rejects a token that is
// present and invalid.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		authed, err := s.authenticate(w, r, token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, authed)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func setTokenCookie(w http.ResponseWriter, a services.Assertion) {
	c := &http.Cookie{
		Name:     tokenCookie,
		Value:    a.Token,
		Path:     "/",
		Expires:  a.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if a.Token == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}
