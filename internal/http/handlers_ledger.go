package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"financify/internal/amqp"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/services"
	"financify/internal/session"

	"github.com/gorilla/mux"
)

const (
	msgNoValidExpenses  = "Please add at least one valid expense."
	msgLedgerSaved      = "Financial data updated successfully!"
	msgAnalysisDone     = "Analysis complete! Your financial data has been populated in the form below. Please review and save."
	msgAnalysisInvalid  = "AI analysis failed. The model did not return valid data. Please try a clearer document."
	msgAnalysisErrorFmt = "An error occurred during document analysis: %s"
)

type homeView struct {
	HasData bool
	Metrics core.DerivedMetrics
}

type draftView struct {
	Draft  core.Draft
	Notice *Notice
}

type addView struct {
	Form        draftView
	MaxUploadMB int64
	Formats     []string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context()).Snapshot()
	data := s.page(r.Context(), "Home", "home", st)
	data.Page = homeView{
		HasData: st.Ledger.HasIncome(),
		Metrics: core.ComputeMetrics(st.Ledger),
	}
	s.renderPage(w, r, http.StatusOK, "home.html", data)
}

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context()).Snapshot()
	s.renderAdd(w, r, http.StatusOK, st, nil)
}

func (s *Server) renderAdd(w http.ResponseWriter, r *http.Request, status int, st session.State, notice *Notice) {
	data := s.page(r.Context(), "Add Transactions", "add", st)
	data.Page = addView{
		Form:        draftView{Draft: st.Draft, Notice: notice},
		MaxUploadMB: s.deps.MaxUploadBytes >> 20,
		Formats:     services.SupportedImageTypes,
	}
	s.renderPage(w, r, status, "add.html", data)
}

// respondDraft answers a draft form action: the form fragment for htmx,
// the whole page otherwise.
func (s *Server) respondDraft(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, status int, st session.State, notice *Notice) {
	if !isHTMX(r) {
		s.renderAdd(w, r, status, st, notice)
		return
	}
	s.writeFragment(w, r, b.Status(status), "draft_form", draftView{Draft: st.Draft, Notice: notice})
}

// draftFromRequest reads the submitted draft form. On failure the stored
// draft is answered with the reasons.
func (s *Server) draftFromRequest(w http.ResponseWriter, r *http.Request, sess *session.Session) (core.Draft, bool) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return core.Draft{}, false
	}
	d, err := ParseDraftForm(r.PostForm)
	if err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Draft form rejected", log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, err)
		s.respondDraft(w, r, NewHTMXResponse(), http.StatusUnprocessableEntity, sess.Snapshot(), failure(userMessage(err)))
		return core.Draft{}, false
	}
	return d, true
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	d, ok := s.draftFromRequest(w, r, sess)
	if !ok {
		return
	}
	d = d.AddRow()
	_ = sess.Update(func(st *session.State) error {
		st.Draft = d
		return nil
	})
	s.respondDraft(w, r, NewHTMXResponse().TriggerDraftChanged(len(d.Rows)), http.StatusOK, sess.Snapshot(), nil)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		BadRequestError("Invalid row").Write(w)
		return
	}
	d, ok := s.draftFromRequest(w, r, sess)
	if !ok {
		return
	}
	d, err = d.RemoveRow(index)
	if err != nil {
		s.respondDraft(w, r, NewHTMXResponse(), statusFor(err), sess.Snapshot(), failure(userMessage(err)))
		return
	}
	_ = sess.Update(func(st *session.State) error {
		st.Draft = d
		return nil
	})
	s.respondDraft(w, r, NewHTMXResponse().TriggerDraftChanged(len(d.Rows)), http.StatusOK, sess.Snapshot(), nil)
}

// handleSaveDraft commits the draft. The submitted draft is kept either way;
// the ledger only changes when the commit succeeds.
func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	d, ok := s.draftFromRequest(w, r, sess)
	if !ok {
		return
	}

	var commitErr error
	_ = sess.Update(func(st *session.State) error {
		st.Draft = d
		next, err := d.Commit(st.Ledger)
		if err != nil {
			commitErr = err
			return nil
		}
		st.Ledger = next
		return nil
	})
	st := sess.Snapshot()

	if commitErr != nil {
		log.FromContext(ctx).InfoContext(ctx, "Draft commit rejected", log.FieldOperation, log.OpCommit, log.FieldError, commitErr)
		s.respondDraft(w, r, NewHTMXResponse(), statusFor(commitErr), st, failure(msgNoValidExpenses))
		return
	}

	s.countCommit()
	s.structLog.LogLedgerCommitted(ctx, sess.ID, len(st.Ledger.Expenses), st.Ledger.HasIncome())
	s.deps.Activity.Record(ctx, sess.ID, amqp.KindLedgerCommitted, len(st.Ledger.Expenses), len(d.Rows))

	b := NewHTMXResponse().TriggerLedgerUpdated(len(st.Ledger.Expenses))
	s.respondDraft(w, r, b, http.StatusOK, st, success(msgLedgerSaved))
}

// handleUpload runs document extraction and replaces the draft with the
// result for review. A failed extraction leaves the draft untouched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg := fmt.Sprintf("The file is too large. The limit is %d MB.", s.deps.MaxUploadBytes>>20)
			s.respondDraft(w, r, NewHTMXResponse(), http.StatusRequestEntityTooLarge, sess.Snapshot(), failure(msg))
			return
		}
		BadRequestError("Invalid upload").Write(w)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondDraft(w, r, NewHTMXResponse(), http.StatusUnprocessableEntity, sess.Snapshot(), failure("Please choose an image of your statement to upload."))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		BadRequestError("Could not read the uploaded file").Write(w)
		return
	}

	st := sess.Snapshot()
	ext, err := s.deps.Extraction.Extract(oracleCtx(ctx, st), image, header.Header.Get("Content-Type"))
	s.countExtraction(err)
	if err != nil {
		s.deps.Activity.Record(ctx, sess.ID, amqp.KindExtractionFailed, 0, 0)
		log.FromContext(ctx).WarnContext(ctx, "Document extraction failed",
			log.FieldOperation, log.OpExtract,
			log.FieldErrorType, errorType(err),
			log.FieldError, err,
			"size", len(image))
		s.respondDraft(w, r, NewHTMXResponse(), statusFor(err), st, failure(extractionMessage(err)))
		return
	}

	d := ext.Draft()
	_ = sess.Update(func(st *session.State) error {
		st.Draft = d
		return nil
	})
	s.deps.Activity.Record(ctx, sess.ID, amqp.KindExtractionCompleted, len(ext.Expenses), 0)

	b := NewHTMXResponse().TriggerDraftChanged(len(d.Rows))
	s.respondDraft(w, r, b, http.StatusOK, sess.Snapshot(), success(msgAnalysisDone))
}

func extractionMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return userMessage(err)
	case errors.Is(err, core.ErrExtractionFailed):
		return msgAnalysisInvalid
	}
	return fmt.Sprintf(msgAnalysisErrorFmt, services.OracleMessage(err))
}
