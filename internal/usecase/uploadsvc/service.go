package uploadsvc

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderclient"
)

const (
	DefaultChunkSize      = 64 << 20
	defaultCleanupTimeout = 30 * time.Second
)

type (
	// Journal хранилище незавершённых сессий для продолжения после перезапуска
	Journal interface {
		Get(ctx context.Context, key string) (models.UploadSession, error)
		Save(ctx context.Context, key string, sess models.UploadSession) error
		Delete(ctx context.Context, key string) error
	}

	// Source — локальные байты файла с известным размером. *bytes.Reader и *io.SectionReader подходят как есть.
	Source interface {
		io.ReaderAt
		Size() int64
	}

	// Service объединяет операции возобновляемой загрузки.
	Service interface {
		Initiate(ctx context.Context, req models.InitRequest) (models.UploadState, error)
		UploadChunk(ctx context.Context, sess models.UploadSession, offset int64, chunk []byte) (models.UploadState, error)
		GetOffset(ctx context.Context, uploadID string) (int64, error)
		GetFileDetails(ctx context.Context, fileID string) (models.FileDescriptor, error)
		Abort(ctx context.Context, itemID string) error
		Transfer(ctx context.Context, req TransferRequest) (models.FileDescriptor, error)
		UploadMany(ctx context.Context, reqs []TransferRequest) ([]Result, error)
	}
)

type Deps struct {
	Client  girderclient.Client
	Journal Journal
	Log     zerolog.Logger
	Metrics *Metrics
	Retry   RetryPolicy

	ChunkSize        int64
	Concurrency      int
	CleanupOnFailure bool
	CleanupTimeout   time.Duration
}

type Coordinator struct {
	Deps
}

var validate = validator.New()

// New конструирует координатор загрузок с заданными зависимостями.
func New(deps Deps) *Coordinator {
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = DefaultChunkSize
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = 1
	}
	if deps.CleanupTimeout <= 0 {
		deps.CleanupTimeout = defaultCleanupTimeout
	}
	if deps.Retry.MaxAttempts <= 0 {
		deps.Retry = DefaultRetryPolicy()
	}
	return &Coordinator{Deps: deps}
}

var _ Service = (*Coordinator)(nil)
