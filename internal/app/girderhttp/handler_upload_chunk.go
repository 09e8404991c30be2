package girderhttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// uploadChunk дописывает кусок в данные загрузки. Кусок принимается целиком или не принимается вовсе.
func (a *Server) uploadChunk(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get(girderproto.QueryUploadID)
	offset, err := strconv.ParseInt(r.URL.Query().Get(girderproto.QueryOffset), 10, 64)
	if err != nil || offset < 0 {
		httperrors.Write(w, models.Validationf("invalid offset"))
		return
	}

	if !validID(uploadID) {
		httperrors.Write(w, models.ErrUploadNotFound)
		return
	}
	unlock := a.lockUpload(uploadID)
	defer unlock()

	up, err := a.loadUpload(uploadID)
	if err != nil {
		if errors.Is(err, models.ErrUploadNotFound) {
			a.forgetUpload(uploadID)
		}
		httperrors.Write(w, err)
		return
	}

	if up.finalized() {
		a.replayFinalized(w, up, offset, r.Body)
		return
	}

	if offset != up.Received {
		a.metrics.offsetMismatches.Inc()
		httperrors.Write(w, &models.ChunkRejectedError{UploadID: up.ID, Expected: up.Received, Offset: offset})
		return
	}

	n, err := a.appendChunk(up, r.Body)
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	up.Received += n
	a.metrics.chunkBytes.Add(float64(n))

	if up.Received < up.Size {
		if err = writeMeta(a.uploadDir(up.ID), up); err != nil {
			httperrors.Write(w, err)
			return
		}
		httperrors.WriteJSON(w, http.StatusOK, up.document())
		return
	}

	file, err := a.finalize(up)
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, file.document())
}

// replayFinalized отвечает на повтор последнего куска уже собранного файла: пустой кусок
// на offset == size получает документ файла, всё остальное отклоняется.
func (a *Server) replayFinalized(w http.ResponseWriter, up *uploadMeta, offset int64, body io.Reader) {
	if offset != up.Size {
		a.metrics.offsetMismatches.Inc()
		httperrors.Write(w, &models.ChunkRejectedError{UploadID: up.ID, Expected: up.Size, Offset: offset})
		return
	}
	if n, _ := io.CopyN(io.Discard, body, 1); n > 0 {
		httperrors.Write(w, models.Validationf("upload %s is already complete", up.ID))
		return
	}

	file, err := a.loadFile(up.FileID)
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, file.document())
}

// appendChunk пишет тело в data.bin с позиции up.Received. При любой ошибке файл обрезается обратно.
func (a *Server) appendChunk(up *uploadMeta, body io.Reader) (int64, error) {
	path := filepath.Join(a.uploadDir(up.ID), dataFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err = f.Truncate(up.Received); err != nil {
		return 0, err
	}
	if _, err = f.Seek(up.Received, io.SeekStart); err != nil {
		return 0, err
	}

	remaining := up.Size - up.Received
	n, err := io.Copy(f, io.LimitReader(body, remaining+1))
	if err == nil && n > remaining {
		err = models.Validationf("chunk overshoots declared size %d by %d bytes", up.Size, n-remaining)
	}
	if err != nil {
		_ = f.Truncate(up.Received)
		return 0, err
	}

	return n, f.Sync()
}

// finalize превращает завершённую загрузку в файл внутри item'а.
func (a *Server) finalize(up *uploadMeta) (*fileMeta, error) {
	file := &fileMeta{
		ID:       uuid.NewString(),
		ItemID:   up.ItemID,
		Name:     up.Name,
		Size:     up.Size,
		MimeType: up.MimeType,
		Created:  a.now(),
	}

	a.itemsMu.Lock()
	defer a.itemsMu.Unlock()

	item, err := a.loadItem(up.ItemID)
	if err != nil {
		return nil, fmt.Errorf("item %s for upload %s: %w", up.ItemID, up.ID, err)
	}

	dir := a.fileDir(file.ID)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err = os.Rename(filepath.Join(a.uploadDir(up.ID), dataFileName), filepath.Join(dir, dataFileName)); err != nil {
		return nil, err
	}
	if err = writeMeta(dir, file); err != nil {
		return nil, err
	}

	if !slices.Contains(item.Files, file.ID) {
		item.Files = append(item.Files, file.ID)
	}
	if err = writeMeta(a.itemDir(item.ID), item); err != nil {
		return nil, err
	}

	up.Received = up.Size
	up.FileID = file.ID
	if err = writeMeta(a.uploadDir(up.ID), up); err != nil {
		return nil, err
	}
	a.forgetUpload(up.ID)
	a.metrics.uploadsCompleted.Inc()

	return file, nil
}
