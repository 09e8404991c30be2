package httperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

// Write отдаёт ошибку в формате {"message","type"} с подходящим статусом.
func Write(w http.ResponseWriter, err error) {
	resp := girderproto.ErrorResponse{Message: err.Error()}
	status := http.StatusInternalServerError

	var rejected *models.ChunkRejectedError
	switch {
	case errors.As(err, &rejected):
		status = http.StatusBadRequest
		received := rejected.Expected
		resp.Type = girderproto.ErrorTypeValidation
		resp.Field = girderproto.QueryOffset
		resp.Received = &received
		resp.Message = fmt.Sprintf("Server has received %d bytes, but client sent offset %d.", rejected.Expected, rejected.Offset)
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
		resp.Type = girderproto.ErrorTypeValidation
	case errors.Is(err, models.ErrUploadNotFound), errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		resp.Type = girderproto.ErrorTypeNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
		resp.Type = girderproto.ErrorTypeAccess
	default:
		resp.Type = girderproto.ErrorTypeInternal
	}

	WriteJSON(w, status, resp)
}

// WriteJSON пишет тело как JSON с указанным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
