package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/listingwizard/internal/submit"
	"github.com/vbonduro/listingwizard/internal/wizard"
)

type navigationView struct {
	Moved bool      `json:"moved"`
	Draft draftView `json:"draft"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, sess *Session) {
	moved := sess.Wizard.Next()
	writeJSON(w, http.StatusOK, navigationView{Moved: moved, Draft: s.buildView(sess)})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request, sess *Session) {
	moved := sess.Wizard.Previous()
	writeJSON(w, http.StatusOK, navigationView{Moved: moved, Draft: s.buildView(sess)})
}

func (s *Server) writeWizardError(w http.ResponseWriter, err error) {
	var subErr *submit.Error
	switch {
	case errors.As(err, &subErr):
		writeJSON(w, http.StatusBadGateway, submit.Response{Success: false, Message: subErr.Message})
	case errors.Is(err, wizard.ErrNotLastStage), errors.Is(err, wizard.ErrStageBlocked),
		errors.Is(err, wizard.ErrNotInRecap), errors.Is(err, wizard.ErrSubmissionInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "submission could not be delivered")
		s.logger.Error("submission failed", "error", err)
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request, sess *Session) {
	summary, err := sess.Wizard.Confirm()
	if err != nil {
		s.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request, sess *Session) {
	summary, err := sess.Wizard.Recap()
	if err != nil {
		s.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSubmit sends the confirmed draft. The request context bounds the
// outgoing call, so a client that goes away aborts the transport.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, sess *Session) {
	resp, err := sess.Wizard.Submit(r.Context())
	if err != nil {
		s.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
