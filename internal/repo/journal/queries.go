package journal

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/sir_venger/girder_uploader/internal/models"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	sessionColumns = []string{
		"upload_id", "parent_id", "parent_type", "name", "declared_size",
		"mime_type", "received_offset", "item_id", "user_id", "created",
	}
)

func selectSession(key string) sq.SelectBuilder {
	return psql.Select(sessionColumns...).
		From(journalTable).
		Where(sq.Eq{"key": key}).
		Limit(1)
}

// upsertSession пишет сессию целиком; при конфликте обновляются только поля, которые
// меняет продолжение загрузки.
func upsertSession(key string, sess models.UploadSession, now time.Time) sq.InsertBuilder {
	created := sess.Created
	if created.IsZero() {
		created = now
	}

	return psql.Insert(journalTable).
		Columns("key").
		Columns(sessionColumns...).
		Columns("updated").
		Values(
			key, sess.UploadID, sess.ParentID, string(sess.ParentType), sess.Name, sess.DeclaredSize,
			sess.MimeType, sess.ReceivedOffset, sess.ItemID, sess.UserID, created, now,
		).
		Suffix("ON CONFLICT (key) DO UPDATE SET " +
			"upload_id = EXCLUDED.upload_id, " +
			"received_offset = EXCLUDED.received_offset, " +
			"item_id = EXCLUDED.item_id, " +
			"updated = EXCLUDED.updated")
}

func deleteSession(key string) sq.DeleteBuilder {
	return psql.Delete(journalTable).Where(sq.Eq{"key": key})
}
