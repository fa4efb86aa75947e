package server

import (
	"fmt"
	"net/http"
)

type statsResponse struct {
	IndexedDocuments int `json:"indexed_documents"`
	KnowledgeNodes   int `json:"knowledge_nodes"`
	PendingTasks     int `json:"pending_tasks"`
	ActiveThreads    int `json:"active_threads"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse

	if s.vector != nil {
		resp.IndexedDocuments = s.vector.Count()
	}
	if s.graph != nil {
		counts, err := s.graph.Counts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.KnowledgeNodes = counts.Entities
	}
	if s.queue != nil {
		pending, err := s.queue.PendingCount(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.PendingTasks = pending
	}
	if s.engine != nil {
		resp.ActiveThreads = s.engine.Threads().ActiveCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

type backendHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status   string                   `json:"status"`
	Backends map[string]backendHealth `json:"backends"`
}

// handleHealth reports per-backend health. A degraded backend does not
// fail the endpoint; operators read the body, load balancers read
// /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backends: map[string]backendHealth{}}

	if s.db != nil {
		h := backendHealth{Status: "ok"}
		if err := s.db.PingContext(r.Context()); err != nil {
			h = backendHealth{Status: "down", Detail: err.Error()}
			resp.Status = "degraded"
		}
		resp.Backends["database"] = h
	}
	if s.graph != nil {
		h := backendHealth{Status: "ok"}
		if _, err := s.graph.Counts(r.Context()); err != nil {
			h = backendHealth{Status: "down", Detail: err.Error()}
			resp.Status = "degraded"
		}
		resp.Backends["graph"] = h
	}
	if s.vector != nil {
		resp.Backends["vector"] = backendHealth{Status: "ok", Detail: fmt.Sprintf("%d documents", s.vector.Count())}
	}
	if s.llm != nil {
		resp.Backends["llm"] = backendHealth{Status: "ok", Detail: s.llm.Name()}
	}
	if s.live != nil {
		h := backendHealth{Status: "ok", Detail: s.live.Name()}
		switch {
		case s.live.Name() == "none":
			h.Status = "disabled"
		case !s.live.Healthy(r.Context()):
			h.Status = "down"
			resp.Status = "degraded"
		}
		resp.Backends["live"] = h
	}

	writeJSON(w, http.StatusOK, resp)
}
