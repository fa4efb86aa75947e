package server

import (
	"encoding/json"
	"net/http"

	"github.com/hragd/hragd/internal/gardener"
)

func (s *Server) handleGardenerTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.queue.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []gardener.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type gardenerActionRequest struct {
	TaskID         string                    `json:"task_id"`
	Action         string                    `json:"action"`
	Actor          string                    `json:"actor,omitempty"`
	ModifiedEntity *gardener.EntityCandidate `json:"modified_entity,omitempty"`
}

func (s *Server) handleGardenerAction(w http.ResponseWriter, r *http.Request) {
	var req gardenerActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	if req.Actor == "" {
		req.Actor = "operator"
	}

	var (
		task *gardener.Task
		err  error
	)
	switch req.Action {
	case "approve":
		task, err = s.queue.Approve(r.Context(), req.TaskID, req.ModifiedEntity, req.Actor)
	case "merge":
		task, err = s.queue.Merge(r.Context(), req.TaskID, req.ModifiedEntity, req.Actor)
	case "reject":
		task, err = s.queue.Reject(r.Context(), req.TaskID, req.Actor)
	default:
		writeError(w, http.StatusBadRequest, "action must be approve, merge or reject")
		return
	}
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}
