package girderhttp

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// getFile отдаёт метаданные файла.
func (a *Server) getFile(w http.ResponseWriter, r *http.Request) {
	file, err := a.loadFile(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, file.document())
}

// downloadFile обслуживает GET-запросы, возвращая содержимое файла.
func (a *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	file, err := a.loadFile(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	f, err := os.Open(filepath.Join(a.fileDir(file.ID), dataFileName))
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	defer f.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	http.ServeContent(w, r, file.Name, file.Created, f)
}
