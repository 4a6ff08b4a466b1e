package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

const (
	// multipartOverhead is allowed on top of the file size for boundaries
	// and part headers.
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

type validationSummary struct {
	NewCount       int              `json:"newCount"`
	UpdateCount    int              `json:"updateCount"`
	ErrorCount     int              `json:"errorCount"`
	TotalCount     int              `json:"totalCount"`
	ErrorRows      []core.ErrorRow  `json:"errorRows"`
	Duplicates     []core.Duplicate `json:"duplicates,omitempty"`
	MissingColumns []string         `json:"missingColumns,omitempty"`
}

// importResponse is the public view of a session. Valid rows stay on the
// server.
type importResponse struct {
	ID         string             `json:"id"`
	Entity     string             `json:"entity"`
	FileName   string             `json:"fileName"`
	Encoding   core.Encoding      `json:"encoding"`
	State      core.SessionState  `json:"state"`
	Validation validationSummary  `json:"validation"`
	Progress   *core.Progress     `json:"progress,omitempty"`
	Percent    *int               `json:"percent,omitempty"`
	Result     *core.ImportResult `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	StartedAt  time.Time          `json:"startedAt,omitzero"`
	FinishedAt time.Time          `json:"finishedAt,omitzero"`
}

func toImportResponse(sess *core.Session) importResponse {
	resp := importResponse{
		ID:         sess.ID,
		Entity:     sess.Entity,
		FileName:   sess.FileName,
		Encoding:   sess.Encoding,
		State:      sess.State,
		Result:     sess.Result,
		Error:      sess.Error,
		CreatedAt:  sess.CreatedAt,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt,
	}
	if v := sess.Validation; v != nil {
		resp.Validation = validationSummary{
			NewCount:       v.NewCount,
			UpdateCount:    v.UpdateCount,
			ErrorCount:     v.ErrorCount,
			TotalCount:     v.TotalCount,
			ErrorRows:      v.ErrorRows,
			Duplicates:     v.Duplicates,
			MissingColumns: v.MissingColumns,
		}
	}
	if resp.Validation.ErrorRows == nil {
		resp.Validation.ErrorRows = []core.ErrorRow{}
	}
	if sess.State != core.StateValidated {
		p := sess.Progress
		pct := p.Percent()
		resp.Progress, resp.Percent = &p, &pct
	}
	return resp
}

// handleCreateImport reads the uploaded file and runs the validate phase.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, core.ErrFileTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}

	sess, err := s.service.Validate(r.Context(), actor, chi.URLParam(r, "entity"), header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, toImportResponse(sess))
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	sess, err := s.service.Get(actor, chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, toImportResponse(sess))
}

// handleStartImport begins the write phase and returns immediately.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "importID")
	if err := s.service.Start(r.Context(), actor, id); err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.service.Get(actor, id)
	if err != nil {
		// Finished and already dropped.
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id})
		return
	}
	writeJSONStatus(w, http.StatusAccepted, toImportResponse(sess))
}

// handleImportProgress streams progress via Server-Sent Events.
// The event ID is the progress percentage, so a client reconnecting with
// lastEventId (or Last-Event-ID) skips updates it has already seen.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "importID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(actor, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data := []byte("{}")
				if sess, err := s.service.Get(actor, id); err == nil {
					data, _ = json.Marshal(toImportResponse(sess))
				}
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}

			// Total is zero only before the write phase has begun.
			if progress.Total == 0 {
				continue
			}
			percent := progress.Percent()
			if percent <= lastEventID {
				continue
			}
			lastEventID = percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult waits for the write phase and returns its result.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	res, err := s.service.Result(r.Context(), actor, chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := s.service.Cancel(actor, chi.URLParam(r, "importID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "cancelled"})
}

func (s *Server) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := s.service.Discard(actor, chi.URLParam(r, "importID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportErrors serves validation errors and write failures as CSV.
func (s *Server) handleImportErrors(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "importID")
	data, err := s.service.ErrorReport(actor, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeCSV(w, fmt.Sprintf("import_%s_errors.csv", id), data)
}
