package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"financify/internal/catalog"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware/ratelimit"
	"financify/internal/middleware/security"
	"financify/internal/middleware/trace"
	"financify/internal/oracle"
	"financify/internal/services"
	"financify/internal/session"
	appweb "financify/web"

	"github.com/gorilla/mux"
)

// EventsHealth reports the state of the activity event publisher. It is
// satisfied by *amqp.Client.
type EventsHealth interface {
	State() int32
}

// Deps are the collaborators of the web server.
type Deps struct {
	Sessions    *session.Store
	Tokens      *session.Tokens
	Catalog     catalog.LessonReader
	Extraction  *services.ExtractionService
	Advisor     *services.AdvisorService
	Insights    *services.InsightsService
	Activity    *services.ActivityService
	Credentials oracle.CredentialProvider
	Events      EventsHealth
	Logger      *log.Logger

	RateLimitPerMinute int
	MaxUploadBytes     int64
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

type Server struct {
	http.Server

	deps      Deps
	pages     map[string]*template.Template
	partials  *template.Template
	templErr  error
	logger    *log.Logger
	structLog *log.StructuredLogger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	now          func() time.Time
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime           time.Time
	ledgerCommits    int64
	extractions      int64
	extractionErrors int64
	advisorQuestions int64
	quizzesCompleted int64
}

var pageNames = []string{
	"login.html", "onboarding.html", "home.html", "add.html",
	"advisor.html", "insights.html", "finbites.html", "profile.html",
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewFromLevel(slog.LevelInfo, log.ComponentHTTP)
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}

	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}
	detector := security.NewDetector()

	s := &Server{
		deps:             deps,
		logger:           logger,
		structLog:        log.NewStructuredLogger(logger),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
		now:              time.Now,
	}

	s.pages, s.partials, s.templErr = parseTemplates()
	if s.templErr != nil {
		logger.Error("Failed parsing templates", log.FieldError, s.templErr)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("Page not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError("GET, POST").Write(w)
	})

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	app := r.NewRoute().Subrouter()
	app.Use(s.requireSession)

	app.HandleFunc("/onboarding", s.handleOnboardingPage).Methods(http.MethodGet)
	app.HandleFunc("/onboarding", s.handleOnboarding).Methods(http.MethodPost)
	app.HandleFunc("/settings/apikey", s.handleSetAPIKey).Methods(http.MethodPost)

	app.HandleFunc("/", s.onboarded(s.handleHome)).Methods(http.MethodGet)
	app.HandleFunc("/profile", s.onboarded(s.handleProfile)).Methods(http.MethodGet)

	app.HandleFunc("/add", s.onboarded(s.handleAddPage)).Methods(http.MethodGet)
	app.HandleFunc("/add/rows", s.onboarded(s.handleAddRow)).Methods(http.MethodPost)
	app.HandleFunc("/add/rows/{index:[0-9]+}/delete", s.onboarded(s.handleDeleteRow)).Methods(http.MethodPost)
	app.HandleFunc("/add/save", s.onboarded(s.handleSaveDraft)).Methods(http.MethodPost)
	app.HandleFunc("/add/upload", s.onboarded(s.handleUpload)).Methods(http.MethodPost)

	app.HandleFunc("/advisor", s.onboarded(s.handleAdvisorPage)).Methods(http.MethodGet)
	app.HandleFunc("/advisor/ask", s.onboarded(s.handleAsk)).Methods(http.MethodPost)

	app.HandleFunc("/insights", s.onboarded(s.handleInsightsPage)).Methods(http.MethodGet)
	app.HandleFunc("/insights/tips", s.onboarded(s.handleInsightsTips)).Methods(http.MethodGet)

	app.HandleFunc("/finbites", s.onboarded(s.handleFinBites)).Methods(http.MethodGet)
	app.HandleFunc("/finbites/quiz/open", s.onboarded(s.handleQuizOpen)).Methods(http.MethodPost)
	app.HandleFunc("/finbites/quiz/answer", s.onboarded(s.handleQuizAnswer)).Methods(http.MethodPost)
	app.HandleFunc("/finbites/quiz/next", s.onboarded(s.handleQuizNext)).Methods(http.MethodPost)
	app.HandleFunc("/finbites/quiz/previous", s.onboarded(s.handleQuizPrevious)).Methods(http.MethodPost)
	app.HandleFunc("/finbites/quiz/close", s.onboarded(s.handleQuizClose)).Methods(http.MethodPost)
	app.HandleFunc("/finbites/{lesson}/select", s.onboarded(s.handleSelectLesson)).Methods(http.MethodPost)

	return r
}

// middleware wraps h with tracing, logging, security headers, suspicious
// request detection and rate limiting, outermost first.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60").
		TriggerErrorNotification("You are going too fast. Please wait a minute.").
		Write(w)
}

// Shutdown stops the rate limiter cleanup and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

var templateFuncs = template.FuncMap{
	"rupees":   formatRupees,
	"pct":      formatPct,
	"bar":      barWidth,
	"inc":      func(i int) int { return i + 1 },
	"sectors":  func() []core.Sector { return core.Sectors },
	"goalPct":  func() int { return core.RecommendedSavingsPct },
	"isUser":   func(t core.Turn) bool { return t.Role == core.RoleUser },
	"hasParts": func(s []chartSlice) bool { return len(s) > 0 },
}

// parseTemplates builds one template set per page on top of the shared
// layout and partials.
func parseTemplates() (map[string]*template.Template, *template.Template, error) {
	base, err := template.New("base").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS,
		"templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(appweb.TemplatesFS, path.Join("templates", name)); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, base, nil
}

func (s *Server) countCommit() { atomic.AddInt64(&s.appMetrics.ledgerCommits, 1) }
func (s *Server) countQuestion() { atomic.AddInt64(&s.appMetrics.advisorQuestions, 1) }
func (s *Server) countQuizDone() { atomic.AddInt64(&s.appMetrics.quizzesCompleted, 1) }
func (s *Server) countExtraction(err error) {
	if err != nil {
		atomic.AddInt64(&s.appMetrics.extractionErrors, 1)
		return
	}
	atomic.AddInt64(&s.appMetrics.extractions, 1)
}
