package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// Get возвращает сохранённую сессию по ключу.
func (s *PGStore) Get(ctx context.Context, key string) (models.UploadSession, error) {
	if strings.TrimSpace(key) == "" {
		return models.UploadSession{}, fmt.Errorf("journal key is empty")
	}

	sqlStr, args, err := selectSession(key).ToSql()
	if err != nil {
		return models.UploadSession{}, fmt.Errorf("build select: %w", err)
	}

	var (
		sess       models.UploadSession
		parentType string
	)
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(
		&sess.UploadID,
		&sess.ParentID,
		&parentType,
		&sess.Name,
		&sess.DeclaredSize,
		&sess.MimeType,
		&sess.ReceivedOffset,
		&sess.ItemID,
		&sess.UserID,
		&sess.Created,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UploadSession{}, models.ErrNotFound
		}
		return models.UploadSession{}, fmt.Errorf("scan journal row: %w", err)
	}
	sess.ParentType = models.ParentType(parentType)

	return sess, nil
}
