package server

import (
	"io"
	"net/http"
)

const maxUploadSize = 10 << 20

// handleIngest accepts one document as a multipart upload and runs it
// through the ingestion pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	domainName := r.FormValue("domain")
	if domainName == "" {
		domainName = s.domainName
	}

	result, err := s.pipeline.IngestBytes(r.Context(), header.Filename, data, domainName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
