package http

import (
	"net/http"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/session"
)

type loginView struct {
	Login string
}

type onboardingView struct {
	Profile core.Profile
	MinAge  int
	MaxAge  int
}

type profileView struct {
	Profile  core.Profile
	Login    string
	Expenses int
	APIKey   apiKeyView
}

type apiKeyView struct {
	HasKey  bool
	UserKey bool
	Notice  *Notice
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookupSession(r); ok {
		s.redirect(w, r, "/")
		return
	}
	s.renderPage(w, r, http.StatusOK, "login.html", pageData{Title: "Welcome to Financify", Page: loginView{}})
}

// handleLogin is a placeholder: any non-empty login and password start a
// fresh session. Nothing is verified and the password is discarded.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	login := p.Get("login")
	if login == "" || p.Get("password") == "" {
		s.renderPage(w, r, http.StatusUnprocessableEntity, "login.html", pageData{
			Title:  "Welcome to Financify",
			Notice: failure("Please enter both email/phone and password."),
			Page:   loginView{Login: login},
		})
		return
	}

	if old, ok := s.lookupSession(r); ok {
		s.deps.Sessions.Delete(old.ID)
	}
	sess := s.deps.Sessions.Create()
	_ = sess.Update(func(st *session.State) error {
		st.Login = login
		return nil
	})
	if err := s.setSessionCookie(w, sess.ID); err != nil {
		s.deps.Sessions.Delete(sess.ID)
		s.structLog.LogError(ctx, "Failed to issue session token", err, log.ComponentSession, log.OpLogin, log.NewFields())
		InternalServerError("Could not start a session. Please try again.").Write(w)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Session started", log.FieldSessionID, sess.ID, log.FieldOperation, log.OpLogin)
	s.deps.Activity.Record(ctx, sess.ID, amqp.KindSessionStarted, 0, 0)
	s.redirect(w, r, "/onboarding")
}

// handleLogout drops the session and everything it holds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.lookupSession(r); ok {
		s.deps.Sessions.Delete(sess.ID)
		log.FromContext(r.Context()).InfoContext(r.Context(), "Session ended", log.FieldSessionID, sess.ID, log.FieldOperation, log.OpLogout)
	}
	clearSessionCookie(w, s.deps.SecureCookies)
	s.redirect(w, r, "/login")
}

func (s *Server) handleOnboardingPage(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context()).Snapshot()
	if st.Onboarded {
		s.redirect(w, r, "/")
		return
	}
	data := s.page(r.Context(), "Create Your Profile", "", st)
	data.Page = onboardingView{Profile: st.Profile, MinAge: core.MinAge, MaxAge: core.MaxAge}
	s.renderPage(w, r, http.StatusOK, "onboarding.html", data)
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	prof, err := ParseProfileForm(p)
	if err == nil {
		err = prof.Validate()
	}
	if err != nil {
		log.FromContext(ctx).InfoContext(ctx, "Onboarding rejected", log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, err)
		data := s.page(ctx, "Create Your Profile", "", sess.Snapshot())
		data.Notice = failure(userMessage(err))
		data.Page = onboardingView{Profile: prof, MinAge: core.MinAge, MaxAge: core.MaxAge}
		s.renderPage(w, r, http.StatusUnprocessableEntity, "onboarding.html", data)
		return
	}

	_ = sess.Update(func(st *session.State) error {
		if !st.Onboarded {
			st.Transcript = core.NewTranscript(prof.DisplayName())
		}
		st.Profile = prof
		st.Onboarded = true
		return nil
	})
	log.FromContext(ctx).InfoContext(ctx, "Profile created", "sector", prof.Sector)
	s.redirect(w, r, "/")
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context()).Snapshot()
	data := s.page(r.Context(), "My Profile", "profile", st)
	data.Page = profileView{
		Profile:  st.Profile,
		Login:    st.Login,
		Expenses: len(st.Ledger.Expenses),
		APIKey:   apiKeyView{HasKey: data.HasKey, UserKey: st.APIKey != ""},
	}
	s.renderPage(w, r, http.StatusOK, "profile.html", data)
}

// handleSetAPIKey stores an oracle key for this session only. A blank value
// clears it, falling back to the server's key if one is configured.
func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	key := p.Get("api_key")
	_ = sess.Update(func(st *session.State) error {
		st.APIKey = key
		return nil
	})
	st := sess.Snapshot()
	log.FromContext(ctx).InfoContext(ctx, "Session API key updated", "set", key != "")

	if !isHTMX(r) {
		s.redirect(w, r, "/profile")
		return
	}
	notice := success("API key saved for this session.")
	if key == "" {
		notice = info("Session API key cleared.")
	}
	view := apiKeyView{HasKey: s.hasKey(ctx, st), UserKey: st.APIKey != "", Notice: notice}
	s.writeFragment(w, r, NewHTMXResponse(), "apikey_form", view)
}
