package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vbonduro/listingwizard/internal/collection"
	"github.com/vbonduro/listingwizard/internal/quota"
	"github.com/vbonduro/listingwizard/internal/stage"
)

const maxValueBody = 64 * 1024

type valueRequest struct {
	Value string `json:"value"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// decodeBody reads a small JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxValueBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseIndex(r *http.Request, name string) (int, error) {
	return strconv.Atoi(r.PathValue(name))
}

// writeEditError maps an edit failure to a status code.
func (s *Server) writeEditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stage.ErrUnknownField), errors.Is(err, stage.ErrUnknownCollection),
		errors.Is(err, collection.ErrIndexOutOfRange), errors.Is(err, quota.ErrNoSuchRoom):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, stage.ErrRoomLimit):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to update draft")
		s.logger.Error("draft edit failed", "error", err)
	}
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request, sess *Session) {
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req valueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.Wizard.SetField(r.PathValue("field"), req.Value); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleAppendEntry(w http.ResponseWriter, r *http.Request, sess *Session) {
	if _, err := sess.Wizard.AppendEntry(r.PathValue("collection")); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.buildView(sess))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request, sess *Session) {
	index, err := parseIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry index")
		return
	}
	var req valueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.Wizard.UpdateEntry(r.PathValue("collection"), index, r.PathValue("field"), req.Value); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request, sess *Session) {
	index, err := parseIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry index")
		return
	}
	if err := sess.Wizard.RemoveEntry(r.PathValue("collection"), index); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleAddRoom(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := sess.Wizard.AddRoom(req.Name); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.buildView(sess))
}

func (s *Server) handleRenameRoom(w http.ResponseWriter, r *http.Request, sess *Session) {
	room, err := parseIndex(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room index")
		return
	}
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.Wizard.RenameRoom(room, req.Name); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}

func (s *Server) handleRemoveRoom(w http.ResponseWriter, r *http.Request, sess *Session) {
	room, err := parseIndex(r, "room")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room index")
		return
	}
	if err := sess.Wizard.RemoveRoom(room); err != nil {
		s.writeEditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.buildView(sess))
}
