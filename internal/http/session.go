package http

import (
	"context"
	"net/http"
	"time"

	"financify/internal/log"
	"financify/internal/session"
)

// SessionCookie is the name of the cookie carrying the signed session token.
const SessionCookie = "financify_session"

type sessionCtxKey struct{}

// sessionFrom returns the session attached by requireSession.
func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*session.Session)
	return s
}

// lookupSession resolves the cookie of r to a live session.
func (s *Server) lookupSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	id, err := s.deps.Tokens.Parse(c.Value)
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected session token", log.FieldError, err)
		return nil, false
	}
	return s.deps.Sessions.Get(id)
}

// requireSession sends visitors without a live session to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookupSession(r)
		if !ok {
			clearSessionCookie(w, s.deps.SecureCookies)
			s.redirect(w, r, "/login")
			return
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, sess)
		logger := log.FromContext(ctx).With(log.FieldSessionID, sess.ID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// onboarded sends sessions that have not completed the profile form to
// /onboarding.
func (s *Server) onboarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil || !sess.Snapshot().Onboarded {
			s.redirect(w, r, "/onboarding")
			return
		}
		next(w, r)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) error {
	token, exp, err := s.deps.Tokens.Issue(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(time.Until(exp).Seconds()),
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirect sends the browser to target. htmx requests get HX-Redirect so the
// whole page is replaced instead of the swap target.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(target).Write(w)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
