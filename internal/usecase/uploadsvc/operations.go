package uploadsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// Initiate проверяет параметры и создаёт слот загрузки на сервере.
func (c *Coordinator) Initiate(ctx context.Context, req models.InitRequest) (models.UploadState, error) {
	req, err := normalizeInit(req)
	if err != nil {
		return models.UploadState{}, err
	}

	st, err := c.Client.InitUpload(ctx, req)
	if err != nil {
		return models.UploadState{}, fmt.Errorf("%w: %w", models.ErrUploadInit, err)
	}

	if st.Kind == models.StatePending {
		st.Session = withIdentity(st.Session, req)
		if st.Session.ReceivedOffset != 0 {
			return models.UploadState{}, fmt.Errorf("%w: new upload %s starts at offset %d", models.ErrUploadInit, st.Session.UploadID, st.Session.ReceivedOffset)
		}
	}

	c.Log.Debug().
		Str("name", req.Name).
		Str("parent_id", req.ParentID).
		Int64("size", req.Size).
		Stringer("state", st.Kind).
		Str("upload_id", st.Session.UploadID).
		Msg("upload initiated")

	return st, nil
}

// UploadChunk отправляет один кусок. offset обязан совпадать с подтверждённым offset сессии.
func (c *Coordinator) UploadChunk(ctx context.Context, sess models.UploadSession, offset int64, chunk []byte) (models.UploadState, error) {
	if offset != sess.ReceivedOffset {
		c.Metrics.chunk(chunkRejected, 0)
		return models.UploadState{}, &models.ChunkRejectedError{
			UploadID: sess.UploadID,
			Expected: sess.ReceivedOffset,
			Offset:   offset,
		}
	}
	if err := checkChunkBounds(sess, offset, int64(len(chunk))); err != nil {
		return models.UploadState{}, err
	}

	st, err := c.Client.UploadChunk(ctx, sess.UploadID, offset, chunk)
	if err != nil {
		switch {
		case models.IsTransport(err):
			c.Metrics.chunk(chunkTransport, 0)
		default:
			c.Metrics.chunk(chunkRejected, 0)
		}
		return models.UploadState{}, err
	}
	c.Metrics.chunk(chunkAccepted, int64(len(chunk)))

	if st.Kind == models.StatePending {
		next := withIdentity(st.Session, models.InitRequest{
			ParentID:   sess.ParentID,
			ParentType: sess.ParentType,
			Name:       sess.Name,
			Size:       sess.DeclaredSize,
			MimeType:   sess.MimeType,
		})
		if next.ItemID == "" {
			next.ItemID = sess.ItemID
		}
		if next.UserID == "" {
			next.UserID = sess.UserID
		}
		if next.Created.IsZero() {
			next.Created = sess.Created
		}
		if next.ReceivedOffset < 0 || next.ReceivedOffset > next.DeclaredSize {
			return models.UploadState{}, fmt.Errorf("server reported offset %d outside [0, %d] for upload %s", next.ReceivedOffset, next.DeclaredSize, sess.UploadID)
		}
		st.Session = next
	}

	return st, nil
}

// GetOffset возвращает offset, подтверждённый сервером. Состояние сервера не меняет.
func (c *Coordinator) GetOffset(ctx context.Context, uploadID string) (int64, error) {
	if strings.TrimSpace(uploadID) == "" {
		return 0, models.Validationf("upload id is empty")
	}
	return c.Client.GetOffset(ctx, uploadID)
}

// GetFileDetails возвращает метаданные сохранённого файла.
func (c *Coordinator) GetFileDetails(ctx context.Context, fileID string) (models.FileDescriptor, error) {
	if strings.TrimSpace(fileID) == "" {
		return models.FileDescriptor{}, models.Validationf("file id is empty")
	}
	return c.Client.GetFile(ctx, fileID)
}

// Abort удаляет частично или полностью загруженный item.
func (c *Coordinator) Abort(ctx context.Context, itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return models.Validationf("item id is empty")
	}
	if err := c.Client.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	c.Log.Info().Str("item_id", itemID).Msg("item deleted")
	return nil
}

func normalizeInit(req models.InitRequest) (models.InitRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ParentID = strings.TrimSpace(req.ParentID)
	req.MimeType = strings.TrimSpace(req.MimeType)

	pt, err := models.ParseParentType(string(req.ParentType))
	if err != nil {
		return req, err
	}
	req.ParentType = pt

	if err = validate.Struct(req); err != nil {
		return req, models.Validationf("%v", err)
	}
	return req, nil
}

func checkChunkBounds(sess models.UploadSession, offset, n int64) error {
	if sess.DeclaredSize == 0 && n > 0 {
		return models.Validationf("upload %s declared size 0, got %d bytes", sess.UploadID, n)
	}
	if offset < 0 || offset+n > sess.DeclaredSize {
		return models.Validationf("chunk [%d, %d) overshoots declared size %d", offset, offset+n, sess.DeclaredSize)
	}
	return nil
}

// withIdentity дополняет сессию из ответа сервера полями, которые сервер мог не вернуть.
func withIdentity(s models.UploadSession, req models.InitRequest) models.UploadSession {
	if s.ParentID == "" {
		s.ParentID = req.ParentID
	}
	if s.ParentType == "" {
		s.ParentType = req.ParentType
	}
	if s.Name == "" {
		s.Name = req.Name
	}
	if s.DeclaredSize == 0 {
		s.DeclaredSize = req.Size
	}
	if s.MimeType == "" {
		s.MimeType = req.MimeType
	}
	return s
}
