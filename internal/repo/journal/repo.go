package journal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// Store — журнал незавершённых загрузок, по которому перезапущенный клиент продолжает работу.
type Store interface {
	Get(ctx context.Context, key string) (models.UploadSession, error)
	Save(ctx context.Context, key string, sess models.UploadSession) error
	Delete(ctx context.Context, key string) error
	Close()
}

const journalTable = "upload_journal"

// PGStore сохраняет журнал в Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore создаёт подключение к Postgres. Без WithMigrations таблица должна уже существовать.
func NewPGStore(ctx context.Context, dsn string, opts ...Option) (*PGStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("journal dsn is empty")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PGStore{pool: pool}
	if o.migrate {
		if err = s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Open выбирает реализацию по DSN: memory:// или строка подключения Postgres.
func Open(ctx context.Context, dsn string, opts ...Option) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || strings.HasPrefix(dsn, "memory://") {
		return NewMemoryStore(), nil
	}
	return NewPGStore(ctx, dsn, opts...)
}

// Close освобождает подключения пула.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
