package uploadsvc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cenkalti/backoff/v4"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// TransferRequest — всё, что нужно для загрузки одного файла от начала до конца.
type TransferRequest struct {
	Init   models.InitRequest
	Source Source
	// ChunkSize переопределяет размер куска из Deps.
	ChunkSize int64
	// JournalKey переопределяет ключ журнала; по умолчанию JournalKey(Init).
	JournalKey string
	// OnProgress вызывается после каждого подтверждённого сервером offset'а.
	OnProgress func(models.UploadSession)
}

// Transfer загружает файл кусками строго последовательно. После сетевого сбоя offset
// всегда уточняется у сервера до следующей отправки.
func (c *Coordinator) Transfer(ctx context.Context, req TransferRequest) (models.FileDescriptor, error) {
	init, err := normalizeInit(req.Init)
	if err != nil {
		return models.FileDescriptor{}, err
	}
	if req.Source == nil {
		return models.FileDescriptor{}, models.Validationf("source is nil")
	}
	if got := req.Source.Size(); got != init.Size {
		return models.FileDescriptor{}, models.Validationf("source has %d bytes, declared size %d", got, init.Size)
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = c.ChunkSize
	}
	key := req.JournalKey
	if key == "" {
		key = JournalKey(init)
	}
	log := c.Log.With().Str("name", init.Name).Str("parent_id", init.ParentID).Logger()

	st, err := c.resumeOrInitiate(ctx, init, key)
	if err != nil {
		c.Metrics.upload(uploadFailed)
		return models.FileDescriptor{}, err
	}
	if st.Done() {
		return c.complete(ctx, key, init, st.File)
	}

	sess := st.Session
	notify(req.OnProgress, sess)

	plan := PlanChunks(sess.Remaining(), chunkSize)
	buf := make([]byte, plan.Size)
	bo := c.Retry.newBackOff()

	log.Debug().
		Str("upload_id", sess.UploadID).
		Int64("offset", sess.ReceivedOffset).
		Int("chunks", plan.Total).
		Msg("transfer started")

	for {
		if err = ctx.Err(); err != nil {
			return models.FileDescriptor{}, c.fail(ctx, key, sess, err)
		}

		n := min(chunkSize, sess.Remaining())
		if n > int64(len(buf)) {
			buf = make([]byte, n)
		}
		chunk := buf[:n]
		if n > 0 {
			rn, rerr := req.Source.ReadAt(chunk, sess.ReceivedOffset)
			if rn != len(chunk) {
				if rerr == nil || errors.Is(rerr, io.EOF) {
					rerr = io.ErrUnexpectedEOF
				}
				return models.FileDescriptor{}, c.fail(ctx, key, sess, fmt.Errorf("read source at %d: %w", sess.ReceivedOffset, rerr))
			}
		}

		st, err = c.UploadChunk(ctx, sess, sess.ReceivedOffset, chunk)
		switch {
		case err == nil:
			bo.Reset()
			if st.Done() {
				notify(req.OnProgress, models.UploadSession{
					UploadID:       sess.UploadID,
					DeclaredSize:   sess.DeclaredSize,
					ReceivedOffset: sess.DeclaredSize,
				})
				return c.complete(ctx, key, init, st.File)
			}
			if st.Session.ReceivedOffset <= sess.ReceivedOffset {
				return models.FileDescriptor{}, c.fail(ctx, key, sess, fmt.Errorf("server did not advance upload %s past offset %d", sess.UploadID, sess.ReceivedOffset))
			}
			sess = st.Session
			c.journalSave(ctx, key, sess)
			notify(req.OnProgress, sess)

		case models.IsTransport(err) && ctx.Err() == nil:
			delay := bo.NextBackOff()
			if delay == backoff.Stop {
				return models.FileDescriptor{}, c.fail(ctx, key, sess, fmt.Errorf("giving up after %d attempts: %w", c.Retry.MaxAttempts, err))
			}
			log.Warn().Err(err).
				Str("upload_id", sess.UploadID).
				Int64("offset", sess.ReceivedOffset).
				Dur("retry_in", delay).
				Msg("chunk outcome unknown, resyncing offset")

			if werr := wait(ctx, delay); werr != nil {
				return models.FileDescriptor{}, c.fail(ctx, key, sess, werr)
			}
			remote, rerr := c.reconcile(ctx, sess.UploadID)
			switch {
			case rerr != nil && errors.Is(rerr, models.ErrUploadNotFound) && sess.ReceivedOffset+n == sess.DeclaredSize:
				// Сервер без следа собранной загрузки: файл мог быть создан, item не удаляем.
				return models.FileDescriptor{}, c.fail(ctx, key, sess, fmt.Errorf("%w: upload %s, item %s: %w", models.ErrCommitUnconfirmed, sess.UploadID, sess.ItemID, rerr))
			case rerr != nil:
				return models.FileDescriptor{}, c.fail(ctx, key, sess, rerr)
			case remote.Done():
				notify(req.OnProgress, models.UploadSession{
					UploadID:       sess.UploadID,
					DeclaredSize:   sess.DeclaredSize,
					ReceivedOffset: sess.DeclaredSize,
				})
				return c.complete(ctx, key, init, remote.File)
			}

			off := remote.Session.ReceivedOffset
			if off < 0 || off > sess.DeclaredSize {
				return models.FileDescriptor{}, c.fail(ctx, key, sess, fmt.Errorf("server reported offset %d outside [0, %d]", off, sess.DeclaredSize))
			}
			if off > sess.ReceivedOffset {
				// Кусок дошёл, хоть ответ и потерян: бюджет попыток считается заново.
				bo.Reset()
			}
			sess.ReceivedOffset = off
			c.journalSave(ctx, key, sess)
			notify(req.OnProgress, sess)

		default:
			return models.FileDescriptor{}, c.fail(ctx, key, sess, err)
		}
	}
}

func (c *Coordinator) resumeOrInitiate(ctx context.Context, init models.InitRequest, key string) (models.UploadState, error) {
	if c.Journal != nil {
		sess, err := c.Journal.Get(ctx, key)
		switch {
		case err == nil:
			remote, rerr := c.reconcile(ctx, sess.UploadID)
			if rerr == nil && remote.Done() {
				return remote, nil
			}
			off := remote.Session.ReceivedOffset
			if rerr == nil && off >= 0 && off <= sess.DeclaredSize {
				sess.ReceivedOffset = off
				c.Log.Info().
					Str("upload_id", sess.UploadID).
					Int64("offset", off).
					Int64("size", sess.DeclaredSize).
					Msg("resuming upload from journal")
				return models.Pending(sess), nil
			}
			if rerr != nil && !errors.Is(rerr, models.ErrUploadNotFound) {
				return models.UploadState{}, rerr
			}
			c.Log.Info().Str("upload_id", sess.UploadID).Msg("journaled upload is gone, starting over")
			if derr := c.Journal.Delete(ctx, key); derr != nil {
				return models.UploadState{}, derr
			}
		case !errors.Is(err, models.ErrNotFound):
			return models.UploadState{}, fmt.Errorf("journal lookup: %w", err)
		}
	}

	st, err := c.Initiate(ctx, init)
	if err != nil {
		return models.UploadState{}, err
	}
	if st.Kind == models.StatePending {
		c.journalSave(ctx, key, st.Session)
	}
	return st, nil
}

func (c *Coordinator) complete(ctx context.Context, key string, init models.InitRequest, file models.FileDescriptor) (models.FileDescriptor, error) {
	c.journalDelete(ctx, key)
	if file.Size != init.Size {
		c.Metrics.upload(uploadFailed)
		return models.FileDescriptor{}, fmt.Errorf("file %s committed with size %d, declared %d", file.FileID, file.Size, init.Size)
	}
	c.Metrics.upload(uploadComplete)
	c.Log.Info().
		Str("file_id", file.FileID).
		Str("item_id", file.ItemID).
		Str("name", file.Name).
		Int64("size", file.Size).
		Msg("upload complete")
	return file, nil
}

// fail завершает загрузку ошибкой. Если сервер уже принял хоть один кусок, пытается удалить
// item; ошибка очистки добавляется к исходной, повторов нет.
func (c *Coordinator) fail(ctx context.Context, key string, sess models.UploadSession, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		c.Metrics.upload(uploadCancelled)
	} else {
		c.Metrics.upload(uploadFailed)
	}

	c.Log.Error().Err(cause).
		Str("upload_id", sess.UploadID).
		Int64("offset", sess.ReceivedOffset).
		Msg("upload failed")

	// Отказ по offset'у оставляем вызывающему: он решает, делать resync или удалять.
	// Неподтверждённый последний кусок тоже: item может уже содержать файл.
	if !c.CleanupOnFailure || sess.ReceivedOffset == 0 || sess.ItemID == "" ||
		errors.Is(cause, models.ErrChunkRejected) || errors.Is(cause, models.ErrCommitUnconfirmed) {
		return cause
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.CleanupTimeout)
	defer cancel()

	if err := c.Abort(cleanupCtx, sess.ItemID); err != nil {
		c.Log.Warn().Err(err).Str("item_id", sess.ItemID).Msg("cleanup failed, partial item left in place")
		return errors.Join(cause, fmt.Errorf("cleanup item %s: %w", sess.ItemID, err))
	}
	c.journalDelete(cleanupCtx, key)
	return cause
}

func (c *Coordinator) journalSave(ctx context.Context, key string, sess models.UploadSession) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Save(ctx, key, sess); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("journal save failed")
	}
}

func (c *Coordinator) journalDelete(ctx context.Context, key string) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Delete(ctx, key); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("journal delete failed")
	}
}

func notify(fn func(models.UploadSession), sess models.UploadSession) {
	if fn != nil {
		fn(sess)
	}
}
