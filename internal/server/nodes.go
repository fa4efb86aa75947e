package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hragd/hragd/internal/graphstore"
)

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("type")
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entities, err := s.graph.List(r.Context(), entityType, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entities == nil {
		entities = []graphstore.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entities, err := s.graph.SearchByName(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entities == nil {
		entities = []graphstore.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

type nodeView struct {
	Entity    graphstore.Entity     `json:"entity"`
	Neighbors []graphstore.Neighbor `json:"neighbors"`
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entity, err := s.graph.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entity == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	neighbors, err := s.graph.Neighborhood(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if neighbors == nil {
		neighbors = []graphstore.Neighbor{}
	}
	writeJSON(w, http.StatusOK, nodeView{Entity: *entity, Neighbors: neighbors})
}

type updateNodeRequest struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entity, err := s.graph.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entity == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	if req.Name != "" {
		entity.Name = req.Name
	}
	if req.Type != "" {
		entity.Type = req.Type
	}
	if req.Properties != nil {
		entity.Properties = req.Properties
	}

	if err := s.graph.Update(r.Context(), entity); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entity)
}
