package girderhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// initUpload создаёт слот загрузки и item, в который ляжет файл.
func (a *Server) initUpload(w http.ResponseWriter, r *http.Request) {
	var req girderproto.InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.Write(w, models.Validationf("invalid JSON body: %v", err))
		return
	}

	parentType, err := models.ParseParentType(req.ParentType)
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		httperrors.Write(w, models.Validationf("name is required"))
		return
	case strings.TrimSpace(req.ParentID) == "":
		httperrors.Write(w, models.Validationf("parentId is required"))
		return
	case req.Size < 0:
		httperrors.Write(w, models.Validationf("size must be non-negative"))
		return
	case a.maxFileSize > 0 && req.Size > a.maxFileSize:
		httperrors.Write(w, models.Validationf("file size %d exceeds quota of %d bytes", req.Size, a.maxFileSize))
		return
	}

	u, _ := userFrom(r.Context())
	itemID, err := a.resolveItem(parentType, req.ParentID, req.Name)
	if err != nil {
		httperrors.Write(w, err)
		return
	}

	up := &uploadMeta{
		ID:         uuid.NewString(),
		ParentID:   req.ParentID,
		ParentType: string(parentType),
		Name:       req.Name,
		Size:       req.Size,
		MimeType:   req.MimeType,
		ItemID:     itemID,
		UserID:     u.ID,
		Created:    a.now(),
	}

	if req.Size == 0 && a.finalizeEmpty {
		if err = os.MkdirAll(a.uploadDir(up.ID), 0o755); err == nil {
			err = os.WriteFile(filepath.Join(a.uploadDir(up.ID), dataFileName), nil, 0o644)
		}
		if err != nil {
			httperrors.Write(w, err)
			return
		}
		file, ferr := a.finalize(up)
		if ferr != nil {
			httperrors.Write(w, ferr)
			return
		}
		httperrors.WriteJSON(w, http.StatusOK, file.document())
		return
	}

	if err = writeMeta(a.uploadDir(up.ID), up); err != nil {
		httperrors.Write(w, err)
		return
	}
	a.metrics.uploadsStarted.Inc()

	httperrors.WriteJSON(w, http.StatusOK, up.document())
}

// resolveItem возвращает item для загрузки: для folder создаёт новый, для item проверяет, что он есть.
func (a *Server) resolveItem(parentType models.ParentType, parentID, name string) (string, error) {
	a.itemsMu.Lock()
	defer a.itemsMu.Unlock()

	if parentType == models.ParentItem {
		if _, err := a.loadItem(parentID); err != nil {
			return "", fmt.Errorf("%w: invalid item id %q", models.ErrValidation, parentID)
		}
		return parentID, nil
	}

	item := &itemMeta{
		ID:       uuid.NewString(),
		Name:     name,
		FolderID: parentID,
		Files:    []string{},
		Created:  a.now(),
	}
	if err := writeMeta(a.itemDir(item.ID), item); err != nil {
		return "", err
	}
	return item.ID, nil
}
