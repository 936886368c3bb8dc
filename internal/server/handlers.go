package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/dlovans/formwork/internal/store"
	"github.com/dlovans/formwork/pkg/formwork"
	"github.com/dlovans/formwork/pkg/lint"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorData{Code: code, Message: message})
}

// statusFor maps runtime errors to HTTP status codes and wire error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errUnknownForm), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, formwork.ErrUnknownField), errors.Is(err, formwork.ErrUnknownArray), errors.Is(err, formwork.ErrUnknownEntry):
		return http.StatusNotFound, "unknown_target"
	case errors.Is(err, formwork.ErrCardinality):
		return http.StatusConflict, "cardinality"
	case errors.Is(err, formwork.ErrNoSections):
		return http.StatusUnprocessableEntity, "invalid_schema"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Errorw("request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return err
	}
	return json.Unmarshal(data, v)
}

// withSession runs fn while holding the session lock and answers with the
// resulting snapshot unless fn already wrote a response.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(l *liveSession) (handled bool, err error)) {
	l := s.sessions.Get(chi.URLParam(r, "session"))
	if l == nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.touch()

	handled, err := fn(l)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !handled {
		writeJSON(w, http.StatusOK, l.session.Snapshot())
	}
}

func (s *Server) listForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"forms": s.forms.IDs()})
}

func (s *Server) getForm(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.forms.Get(chi.URLParam(r, "form"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "form not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) lintForm(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.forms.Get(chi.URLParam(r, "form"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "form not found")
		return
	}
	res, err := lint.Document(doc)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createRequest struct {
	Values map[string]any `json:"values,omitempty"`
	Draft  string         `json:"draft,omitempty"` // session id whose saved draft seeds the new session
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	form := chi.URLParam(r, "form")
	var req createRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	values := req.Values
	if req.Draft != "" {
		if s.store == nil {
			writeError(w, http.StatusNotImplemented, "no_store", "drafts are disabled")
			return
		}
		d, err := s.store.LoadDraft(r.Context(), req.Draft)
		if err != nil {
			s.fail(w, err)
			return
		}
		if d.Form != form {
			writeError(w, http.StatusConflict, "form_mismatch", "draft belongs to form "+d.Form)
			return
		}
		values = d.Values
	}

	l, err := s.mount(form, values)
	if err != nil {
		s.fail(w, err)
		return
	}
	l.mu.Lock()
	snap := l.session.Snapshot()
	l.mu.Unlock()
	s.logger.Infow("session created", "session", snap.Session, "form", form)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "no_store", "submissions are not persisted")
		return
	}
	subs, err := s.store.ListSubmissions(r.Context(), chi.URLParam(r, "form"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "no_store", "submissions are not persisted")
		return
	}
	sub, err := s.store.GetSubmission(r.Context(), chi.URLParam(r, "submission"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(*liveSession) (bool, error) { return false, nil })
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session")
	if s.sessions.Get(id) == nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	s.sessions.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, l.session.SetValue(chi.URLParam(r, "field"), body.Value)
	})
}

func (s *Server) blur(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, l.session.Blur(chi.URLParam(r, "field"))
	})
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	body := struct {
		At int `json:"at"`
	}{At: -1}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	array := chi.URLParam(r, "array")
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		key, err := l.session.AddEntry(array, body.At)
		if err != nil {
			return false, err
		}
		writeJSON(w, http.StatusCreated, EntryCreated{Array: array, Key: key})
		return true, nil
	})
}

func (s *Server) setEntryValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, l.session.SetEntryValue(chi.URLParam(r, "array"), chi.URLParam(r, "key"), chi.URLParam(r, "child"), body.Value)
	})
}

func (s *Server) removeEntry(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		err := l.session.RemoveEntry(chi.URLParam(r, "array"), chi.URLParam(r, "key"))
		if errors.Is(err, formwork.ErrConfirmationPending) {
			writeJSON(w, http.StatusAccepted, l.session.Snapshot())
			return true, nil
		}
		return false, err
	})
}

func (s *Server) confirmRemove(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, l.session.ConfirmRemoveEntry(chi.URLParam(r, "array"), chi.URLParam(r, "key"))
	})
}

func (s *Server) cancelRemove(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, l.session.CancelRemoveEntry(chi.URLParam(r, "array"), chi.URLParam(r, "key"))
	})
}

func (s *Server) setErrors(w http.ResponseWriter, r *http.Request) {
	var errs map[string]string
	if err := decode(r, &errs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		l.session.SetErrors(errs)
		return false, nil
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	var body ResetData
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		l.session.Reset(body.IgnoreDefaults)
		return false, nil
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		data, err := s.submitLocked(r, l)
		if err != nil {
			return false, err
		}
		status := http.StatusOK
		if !data.OK {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, data)
		return true, nil
	})
}

// submitLocked submits a session whose lock the caller holds.
func (s *Server) submitLocked(r *http.Request, l *liveSession) (SubmitData, error) {
	l.lastSubmission = ""
	res, err := l.session.Submit(r.Context())
	if err != nil {
		return SubmitData{}, err
	}
	if res.OK && s.store != nil {
		if err := s.store.DeleteDraft(r.Context(), l.session.ID()); err != nil {
			s.logger.Warnw("draft cleanup failed", "session", l.session.ID(), "error", err)
		}
	}
	return SubmitData{OK: res.OK, Values: res.Values, Errors: res.Errors, SubmissionID: l.lastSubmission}, nil
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "no_store", "drafts are disabled")
		return
	}
	s.withSession(w, r, func(l *liveSession) (bool, error) {
		return false, s.store.SaveDraft(r.Context(), l.session.ID(), l.form, l.session.GetValues())
	})
}
