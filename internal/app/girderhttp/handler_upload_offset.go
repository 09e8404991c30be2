package girderhttp

import (
	"errors"
	"net/http"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// uploadOffset отвечает, сколько байт загрузки уже принято. Для собранной загрузки
// offset равен размеру и в ответе есть fileId.
func (a *Server) uploadOffset(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get(girderproto.QueryUploadID)

	if !validID(uploadID) {
		httperrors.Write(w, models.ErrUploadNotFound)
		return
	}

	unlock := a.lockUpload(uploadID)
	up, err := a.loadUpload(uploadID)
	if errors.Is(err, models.ErrUploadNotFound) {
		a.forgetUpload(uploadID)
	}
	unlock()
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, girderproto.OffsetResponse{Offset: up.Received, FileID: up.FileID})
}
