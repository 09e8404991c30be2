package uploadsvc

import (
	"context"
	"errors"
	"sync"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

var errConnReset = errors.New("connection reset by peer")

// fakeClient — сервер с одной загрузкой в памяти. Хуки позволяют ронять запросы до или после применения.
type fakeClient struct {
	mu sync.Mutex

	sess     models.UploadSession
	data     []byte
	exists   bool
	initErr  error
	deleted  []string
	calls    map[string]int
	finalize bool
	// completed — загрузка собрана в файл; forgetCompleted имитирует сервер, который после
	// этого отвечает на запрос offset'а 404.
	completed       bool
	forgetCompleted bool

	// beforeChunk вызывается до применения куска; ошибка возвращается как есть.
	beforeChunk func(call int) error
	// afterChunk вызывается после применения куска; ошибка имитирует потерянный ответ.
	afterChunk func(call int) error
	offsetErr  error
	deleteErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}}
}

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeClient) InitUpload(_ context.Context, req models.InitRequest) (models.UploadState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["init"]++
	if f.initErr != nil {
		return models.UploadState{}, f.initErr
	}
	f.sess = models.UploadSession{
		UploadID:     "upload-1",
		ParentID:     req.ParentID,
		ParentType:   req.ParentType,
		Name:         req.Name,
		DeclaredSize: req.Size,
		MimeType:     req.MimeType,
		ItemID:       "item-1",
	}
	f.data = nil
	f.exists = true
	f.completed = false
	if req.Size == 0 && f.finalize {
		f.exists = false
		return models.Complete(f.file()), nil
	}
	return models.Pending(f.sess), nil
}

func (f *fakeClient) UploadChunk(_ context.Context, uploadID string, offset int64, chunk []byte) (models.UploadState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["chunk"]++
	call := f.calls["chunk"]

	if f.beforeChunk != nil {
		if err := f.beforeChunk(call); err != nil {
			return models.UploadState{}, err
		}
	}
	if !f.exists || uploadID != f.sess.UploadID {
		return models.UploadState{}, models.ErrUploadNotFound
	}
	if offset != f.sess.ReceivedOffset {
		received := f.sess.ReceivedOffset
		return models.UploadState{}, &models.ChunkRejectedError{UploadID: uploadID, Expected: received, Offset: offset,
			Cause: &models.ServerRejection{Op: "upload chunk", Status: 400, Message: "offset mismatch", Received: &received}}
	}

	f.data = append(f.data, chunk...)
	f.sess.ReceivedOffset += int64(len(chunk))

	var st models.UploadState
	if f.sess.ReceivedOffset == f.sess.DeclaredSize {
		f.exists = false
		f.completed = true
		st = models.Complete(f.file())
	} else {
		st = models.Pending(f.sess)
	}

	if f.afterChunk != nil {
		if err := f.afterChunk(call); err != nil {
			return models.UploadState{}, err
		}
	}
	return st, nil
}

func (f *fakeClient) GetOffset(_ context.Context, uploadID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["offset"]++
	if f.offsetErr != nil {
		return 0, f.offsetErr
	}
	if !f.exists || uploadID != f.sess.UploadID {
		return 0, models.ErrUploadNotFound
	}
	return f.sess.ReceivedOffset, nil
}

func (f *fakeClient) ResolveUpload(_ context.Context, uploadID string) (models.UploadState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["offset"]++
	if f.offsetErr != nil {
		return models.UploadState{}, f.offsetErr
	}
	if uploadID == f.sess.UploadID && f.completed && !f.forgetCompleted {
		return models.Complete(f.file()), nil
	}
	if !f.exists || uploadID != f.sess.UploadID {
		return models.UploadState{}, models.ErrUploadNotFound
	}
	return models.Pending(models.UploadSession{UploadID: uploadID, ReceivedOffset: f.sess.ReceivedOffset}), nil
}

func (f *fakeClient) GetFile(_ context.Context, fileID string) (models.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["file"]++
	if fileID != "file-1" {
		return models.FileDescriptor{}, models.ErrNotFound
	}
	return f.file(), nil
}

func (f *fakeClient) DeleteItem(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, itemID)
	f.exists = false
	f.completed = false
	return nil
}

func (f *fakeClient) CurrentUser(context.Context) (*models.User, error) {
	return &models.User{ID: "u1", Login: "user1"}, nil
}

func (f *fakeClient) Health(context.Context) (girderproto.HealthResponse, error) {
	return girderproto.HealthResponse{OK: true}, nil
}

func (f *fakeClient) file() models.FileDescriptor {
	return models.FileDescriptor{
		FileID:   "file-1",
		ItemID:   f.sess.ItemID,
		Name:     f.sess.Name,
		Size:     int64(len(f.data)),
		MimeType: f.sess.MimeType,
	}
}

func transportErr(op string) error {
	return &models.TransportError{Op: op, Err: errConnReset}
}
