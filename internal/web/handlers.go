package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

var errNoActor = errors.New("invalid api key: no actor in request")

// actorFrom returns the actor set by the auth middleware.
func actorFrom(w http.ResponseWriter, r *http.Request) (core.Actor, bool) {
	actor, ok := core.ActorFromContext(r.Context())
	if !ok {
		writeJSONStatus(w, http.StatusUnauthorized, ErrorResponse{Error: core.MapError(errNoActor).Message, Code: "AUTH002"})
		return nil, false
	}
	return actor, true
}

type healthResponse struct {
	Status  string             `json:"status"`
	Imports core.LimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Imports: s.service.Limiter().Status()})
}

type entityResponse struct {
	core.ImportConfig
	Columns []string `json:"columns"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	configs := s.service.Entities()
	out := make([]entityResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, entityResponse{ImportConfig: cfg, Columns: cfg.Columns()})
	}
	writeJSON(w, out)
}

// handleTemplate serves the header-plus-sample CSV for an entity.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	data, err := s.service.Template(entity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeCSV(w, entity+"_template.csv", data)
}

// handleExport serves the company's stored records in import format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	entity := chi.URLParam(r, "entity")
	data, err := s.service.Export(r.Context(), actor, entity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	filename := fmt.Sprintf("%s_%s.csv", entity, time.Now().Format("20060102_150405"))
	writeCSV(w, filename, data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	history, err := s.service.History(r.Context(), actor, chi.URLParam(r, "entity"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if history == nil {
		history = []core.HistoryEntry{}
	}
	writeJSON(w, history)
}
