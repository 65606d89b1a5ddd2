package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/services"
	"financify/internal/session"
)

const (
	msgAdvisorNeedsData = "Please add your financial details on the 'Add' page first to use the AI advisor."
	msgAdvisorBusy      = "Please wait for the current answer before asking another question."
	msgInsightsErrorFmt = "An error occurred while fetching insights: %s"
)

var errNoIncome = errors.New("an income is required")

// chartColors are assigned to breakdown slices in order, cycling.
var chartColors = []string{"#6a6aff", "#FF6347", "#32CD32", "#FFD700", "#4682B4", "#9370DB"}

type advisorView struct {
	HasIncome bool
	Turns     []core.Turn
	Busy      bool
}

type transcriptView struct {
	Turns []core.Turn
}

type insightsView struct {
	Ready   bool
	Metrics core.DerivedMetrics
	Slices  []chartSlice
	Donut   template.CSS
}

type chartSlice struct {
	core.CategoryShare
	Color template.CSS
}

type tipsView struct {
	Tips  string
	Error string
}

func (s *Server) handleAdvisorPage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	st := sess.Snapshot()
	data := s.page(r.Context(), "AI Financial Advisor", "advisor", st)
	data.Page = advisorView{
		HasIncome: st.Ledger.HasIncome(),
		Turns:     st.Transcript.Turns(),
		Busy:      sess.InFlight(),
	}
	if !st.Ledger.HasIncome() {
		data.Notice = info(msgAdvisorNeedsData)
	}
	s.renderPage(w, r, http.StatusOK, "advisor.html", data)
}

// handleAsk forwards a question to the advisor. Only one question per
// session is answered at a time.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	question := p.Get("question")

	if !sess.Snapshot().Ledger.HasIncome() {
		s.fail(w, r, log.OpAsk, core.Invalid("income", errNoIncome), msgAdvisorNeedsData)
		return
	}
	if err := sess.BeginRequest(); err != nil {
		s.fail(w, r, log.OpAsk, err, msgAdvisorBusy)
		return
	}
	defer sess.EndRequest()

	st := sess.Snapshot()
	tr, turn, err := s.deps.Advisor.Ask(oracleCtx(ctx, st), st.Transcript, st.Ledger, question)
	if err != nil {
		s.fail(w, r, log.OpAsk, err, userMessage(err))
		return
	}
	_ = sess.Update(func(st *session.State) error {
		st.Transcript = tr
		return nil
	})
	s.countQuestion()
	if !turn.Error {
		s.deps.Activity.Record(ctx, sess.ID, amqp.KindAdvisorAnswered, tr.Len(), 0)
	}

	if !isHTMX(r) {
		s.redirect(w, r, "/advisor")
		return
	}
	s.writeFragment(w, r, NewHTMXResponse().TriggerFormReset(), "transcript", transcriptView{Turns: tr.Turns()})
}

func (s *Server) handleInsightsPage(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context()).Snapshot()
	data := s.page(r.Context(), "Financial Insights", "insights", st)

	view := insightsView{Ready: st.Ledger.HasIncome() && len(st.Ledger.Expenses) > 0}
	if view.Ready {
		view.Metrics = core.ComputeMetrics(st.Ledger)
		view.Slices, view.Donut = chart(view.Metrics.Breakdown)
	} else {
		data.Notice = info("Please add your income and expenses on the 'Add' page to unlock your financial insights.")
	}
	data.Page = view
	s.renderPage(w, r, http.StatusOK, "insights.html", data)
}

// handleInsightsTips renders the AI tips card. The page loads it after the
// metrics so a slow oracle does not hold the page back.
func (s *Server) handleInsightsTips(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := sessionFrom(ctx).Snapshot()

	tips, err := s.deps.Insights.Tips(oracleCtx(ctx, st))
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Insights unavailable",
			log.FieldOperation, log.OpInsights,
			log.FieldErrorType, errorType(err),
			log.FieldError, err)
		view := tipsView{Error: fmt.Sprintf(msgInsightsErrorFmt, services.OracleMessage(err))}
		s.writeFragment(w, r, NewHTMXResponse(), "tips", view)
		return
	}
	s.writeFragment(w, r, NewHTMXResponse(), "tips", tipsView{Tips: tips})
}

// chart assigns colors to the breakdown and builds the conic-gradient of
// the donut chart.
func chart(shares []core.CategoryShare) ([]chartSlice, template.CSS) {
	slices := make([]chartSlice, len(shares))
	stops := make([]string, 0, len(shares))
	start := 0.0
	for i, sh := range shares {
		color := chartColors[i%len(chartColors)]
		slices[i] = chartSlice{CategoryShare: sh, Color: template.CSS(color)}
		end := start + sh.SharePct
		if i == len(shares)-1 {
			end = 100
		}
		stops = append(stops, fmt.Sprintf("%s %.2f%% %.2f%%", color, start, end))
		start = end
	}
	if len(stops) == 0 {
		return slices, template.CSS("conic-gradient(#444 0% 100%)")
	}
	return slices, template.CSS("conic-gradient(" + strings.Join(stops, ", ") + ")")
}
