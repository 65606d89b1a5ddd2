package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"financify/internal/amqp"
	"financify/internal/oracle"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Basic health check - service is alive
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	notReady := func(name string, detail interface{}) {
		checks[name] = detail
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	// Check templates
	if s.templErr != nil || s.partials == nil {
		notReady("templates", fmt.Sprintf("failed: %v", s.templErr))
	} else {
		checks["templates"] = "ok"
	}

	// Check lesson catalog
	if s.deps.Catalog == nil {
		notReady("catalog", "not_configured")
	} else if lessons, err := s.deps.Catalog.List(ctx); err != nil {
		notReady("catalog", fmt.Sprintf("failed: %v", err))
	} else {
		checks["catalog"] = map[string]interface{}{"lessons": len(lessons), "status": "ok"}
	}

	// The oracle key may be entered per session, so a missing server key
	// is reported but does not fail readiness.
	if oracle.HasKey(ctx, s.deps.Credentials) {
		checks["oracle_credentials"] = "ok"
	} else {
		checks["oracle_credentials"] = "session_only"
	}

	// Activity events are optional; an open circuit degrades but does not
	// fail readiness.
	switch {
	case s.deps.Events == nil:
		checks["events"] = "disabled"
	case s.deps.Events.State() == amqp.StateOpen:
		checks["events"] = "circuit_open"
	default:
		checks["events"] = "ok"
	}

	checks["sessions"] = map[string]interface{}{
		"active": s.deps.Sessions.Len(),
		"status": "ok",
	}

	// Check rate limiter
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	// Security metrics
	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	// Application metrics
	ledgerCommits := atomic.LoadInt64(&s.appMetrics.ledgerCommits)
	extractions := atomic.LoadInt64(&s.appMetrics.extractions)
	extractionErrors := atomic.LoadInt64(&s.appMetrics.extractionErrors)
	advisorQuestions := atomic.LoadInt64(&s.appMetrics.advisorQuestions)
	quizzes := atomic.LoadInt64(&s.appMetrics.quizzesCompleted)
	uptime := time.Since(s.appMetrics.uptime)

	insightsEntries := 0
	if s.deps.Insights != nil {
		insightsEntries = s.deps.Insights.Cache().Size()
	}

	w.WriteHeader(http.StatusOK)

	// Write metrics in Prometheus-like format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_errors_total Total number of HTTP 5xx responses\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total %d\n\n", traceMetrics.TotalErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP sessions_active Live user sessions\n")
	fmt.Fprintf(w, "# TYPE sessions_active gauge\n")
	fmt.Fprintf(w, "sessions_active %d\n\n", s.deps.Sessions.Len())

	fmt.Fprintf(w, "# HELP activity_events_dropped_total Activity events dropped because the queue was full\n")
	fmt.Fprintf(w, "# TYPE activity_events_dropped_total counter\n")
	fmt.Fprintf(w, "activity_events_dropped_total %d\n\n", s.deps.Activity.Dropped())

	fmt.Fprintf(w, "# HELP ledger_commits_total Total number of saved drafts\n")
	fmt.Fprintf(w, "# TYPE ledger_commits_total counter\n")
	fmt.Fprintf(w, "ledger_commits_total %d\n\n", ledgerCommits)

	fmt.Fprintf(w, "# HELP document_extractions_total Document extractions by outcome\n")
	fmt.Fprintf(w, "# TYPE document_extractions_total counter\n")
	fmt.Fprintf(w, "document_extractions_total{outcome=\"ok\"} %d\n", extractions)
	fmt.Fprintf(w, "document_extractions_total{outcome=\"error\"} %d\n\n", extractionErrors)

	fmt.Fprintf(w, "# HELP advisor_questions_total Total advisor questions answered\n")
	fmt.Fprintf(w, "# TYPE advisor_questions_total counter\n")
	fmt.Fprintf(w, "advisor_questions_total %d\n\n", advisorQuestions)

	fmt.Fprintf(w, "# HELP quizzes_completed_total Total completed quiz attempts\n")
	fmt.Fprintf(w, "# TYPE quizzes_completed_total counter\n")
	fmt.Fprintf(w, "quizzes_completed_total %d\n\n", quizzes)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"insights\"} %d\n\n", insightsEntries)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}
