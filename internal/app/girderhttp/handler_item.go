package girderhttp

import (
	"net/http"
	"os"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// deleteItem удаляет item, его файлы и незавершённые загрузки в него.
// Блокировки берутся в том же порядке, что и в uploadChunk: загрузки, затем itemsMu.
func (a *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.loadItem(id); err != nil {
		httperrors.Write(w, err)
		return
	}

	var uploads []string
	err := a.eachUpload(func(up *uploadMeta, _ string) error {
		if up.ItemID == id {
			uploads = append(uploads, up.ID)
		}
		return nil
	})
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	sort.Strings(uploads)
	for _, uploadID := range uploads {
		unlock := a.lockUpload(uploadID)
		defer unlock()
	}

	a.itemsMu.Lock()
	defer a.itemsMu.Unlock()

	item, err := a.loadItem(id)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	for _, fileID := range item.Files {
		if err = os.RemoveAll(a.fileDir(fileID)); err != nil {
			httperrors.Write(w, err)
			return
		}
	}

	for _, uploadID := range uploads {
		if err = os.RemoveAll(a.uploadDir(uploadID)); err != nil {
			httperrors.Write(w, err)
			return
		}
		a.forgetUpload(uploadID)
	}

	if err = os.RemoveAll(a.itemDir(item.ID)); err != nil {
		httperrors.Write(w, err)
		return
	}

	a.log.Info().Str("item_id", item.ID).Int("files", len(item.Files)).Int("uploads", len(uploads)).Msg("item deleted")
	w.WriteHeader(http.StatusOK)
}
