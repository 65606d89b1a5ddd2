package http

import (
	"bytes"
	"context"
	"net/http"

	"financify/internal/log"
	"financify/internal/oracle"
	"financify/internal/session"
)

const msgNoKey = "No AI key is configured. Enter one on your profile to use document analysis, the advisor and tips."

// Notice is a one-off message rendered above a form or card.
type Notice struct {
	Kind NotificationType
	Text string
}

func success(text string) *Notice { return &Notice{Kind: NotificationSuccess, Text: text} }
func failure(text string) *Notice { return &Notice{Kind: NotificationError, Text: text} }
func warning(text string) *Notice { return &Notice{Kind: NotificationWarning, Text: text} }
func info(text string) *Notice    { return &Notice{Kind: NotificationInfo, Text: text} }

// pageData is the value every full page template is executed with.
type pageData struct {
	Title    string
	Nav      string
	Name     string
	Greeting string
	LoggedIn bool
	HasKey   bool
	Notice   *Notice
	Page     any
}

// page fills the layout fields. Pages behind the nav warn when no oracle
// key is available; handlers may replace the notice.
func (s *Server) page(ctx context.Context, title, nav string, st session.State) pageData {
	data := pageData{
		Title:    title,
		Nav:      nav,
		Name:     st.Profile.DisplayName(),
		Greeting: greetingFor(s.now()),
		LoggedIn: true,
		HasKey:   s.hasKey(ctx, st),
	}
	if nav != "" && !data.HasKey {
		data.Notice = warning(msgNoKey)
	}
	return data
}

// oracleCtx attaches the key the user entered, if any, for oracle calls.
func oracleCtx(ctx context.Context, st session.State) context.Context {
	return oracle.WithAPIKey(ctx, st.APIKey)
}

func (s *Server) hasKey(ctx context.Context, st session.State) bool {
	return oracle.HasKey(oracleCtx(ctx, st), s.deps.Credentials)
}

// renderPage executes the layout of page name with status.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.pages[name]
	if !ok {
		s.renderFailed(w, r, name, s.templErr)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(buf.String()).Write(w)
}

// writeFragment renders the partial template name into b and writes it.
func (s *Server) writeFragment(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.partials == nil {
		s.renderFailed(w, r, name, s.templErr)
		return
	}
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	fields := log.LogFields{"template": name}.WithErrorType(log.ErrorTypeInternal)
	s.structLog.LogError(r.Context(), "Template render failed", err, log.ComponentTemplate, log.OpRender, fields)
	InternalServerError("Something went wrong while rendering the page.").Write(w)
}

// fail logs err and answers with the notice partial at the status that
// matches the error. htmx swaps it into the page notice area.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, text string) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldErrorType, errorType(err), log.FieldError, err)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldErrorType, errorType(err), log.FieldError, err)
	}
	b := NewHTMXResponse().Status(status).
		Header("HX-Retarget", "#notice").
		Header("HX-Reswap", "innerHTML")
	s.writeFragment(w, r, b, "notice", failure(text))
}
