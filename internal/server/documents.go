package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hragd/hragd/internal/vectordb"
)

// documentView is the JSON shape of an indexed chunk.
type documentView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Domain      string    `json:"domain"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	ChunkIndex  int       `json:"chunk_index"`
	LastUpdated time.Time `json:"last_updated"`
	Similarity  float32   `json:"similarity,omitempty"`
}

func toDocumentView(d vectordb.Document) documentView {
	return documentView{
		ID:          d.ID,
		Title:       d.Metadata.Title,
		Content:     d.Content,
		Domain:      d.Metadata.Domain,
		Type:        string(d.Metadata.Type),
		Source:      d.Metadata.Source,
		ChunkIndex:  d.Metadata.ChunkIndex,
		LastUpdated: d.Metadata.LastUpdated,
	}
}

// handleListDocuments lists the chunks of one source document. The vector
// index has no cheap full scan, so listing is always source-scoped.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "source parameter is required")
		return
	}

	docs, err := s.vector.GetBySource(r.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]documentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, toDocumentView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filter *vectordb.SearchFilter
	if domainName, docType := r.URL.Query().Get("domain"), r.URL.Query().Get("type"); domainName != "" || docType != "" {
		filter = &vectordb.SearchFilter{}
		if domainName != "" {
			filter.Domain = &domainName
		}
		if docType != "" {
			dt := vectordb.DocumentType(docType)
			filter.Type = &dt
		}
	}

	results, err := s.vector.Search(r.Context(), query, limit, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]documentView, 0, len(results))
	for _, res := range results {
		v := toDocumentView(res.Document)
		v.Similarity = res.Similarity
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.vector.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDocumentView(*doc))
}

type updateDocumentRequest struct {
	Content string `json:"content"`
}

// handleUpdateDocument replaces a chunk's content. The store re-embeds,
// so corrected knowledge is immediately retrievable under its new
// wording.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	if err := s.vector.Update(r.Context(), id, req.Content); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc, err := s.vector.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDocumentView(*doc))
}
