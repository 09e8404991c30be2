package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// Save записывает (или обновляет) сессию под ключом.
func (s *PGStore) Save(ctx context.Context, key string, sess models.UploadSession) error {
	sqlStr, args, err := upsertSession(key, sess, time.Now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert sql: %w", err)
	}

	if _, err = s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}
	return nil
}

// Delete удаляет запись журнала.
func (s *PGStore) Delete(ctx context.Context, key string) error {
	sqlStr, args, err := deleteSession(key).ToSql()
	if err != nil {
		return fmt.Errorf("build delete sql: %w", err)
	}

	if _, err = s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("exec delete: %w", err)
	}
	return nil
}
