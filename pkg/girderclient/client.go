package girderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

type Client interface {
	// InitUpload Создать слот загрузки на сервере
	InitUpload(ctx context.Context, req models.InitRequest) (models.UploadState, error)
	// UploadChunk Отправить кусок файла начиная с offset
	UploadChunk(ctx context.Context, uploadID string, offset int64, chunk []byte) (models.UploadState, error)
	// GetOffset Узнать, сколько байт сервер уже принял
	GetOffset(ctx context.Context, uploadID string) (int64, error)
	// ResolveUpload Узнать состояние загрузки: принятый offset или уже готовый файл
	ResolveUpload(ctx context.Context, uploadID string) (models.UploadState, error)
	// GetFile Достать метаданные готового файла
	GetFile(ctx context.Context, fileID string) (models.FileDescriptor, error)
	// DeleteItem Удалить item вместе с файлами
	DeleteItem(ctx context.Context, itemID string) error
	// CurrentUser Вернуть владельца токена; nil для анонимного доступа
	CurrentUser(ctx context.Context) (*models.User, error)
	// Health Проверить готовность API
	Health(ctx context.Context) (girderproto.HealthResponse, error)
}

type Option func(*httpClient)

// WithHTTPClient подменяет транспорт, например для таймаутов или тестов.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpClient) {
		if c != nil {
			h.c = c
		}
	}
}

type httpClient struct {
	c       *http.Client
	baseURL string
	token   string
}

// New создаёт HTTP-клиент поверх baseURL. Токен передаётся как есть в заголовке Girder-Token.
func New(baseURL, token string, opts ...Option) Client {
	h := &httpClient{
		c:       &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitUpload регистрирует загрузку. Для пустого файла сервер может сразу вернуть готовый file.
func (h *httpClient) InitUpload(ctx context.Context, req models.InitRequest) (models.UploadState, error) {
	body, err := json.Marshal(girderproto.InitUploadRequest{
		ParentID:   req.ParentID,
		ParentType: string(req.ParentType),
		Name:       req.Name,
		Size:       req.Size,
		MimeType:   req.MimeType,
	})
	if err != nil {
		return models.UploadState{}, err
	}

	var doc girderproto.Document
	if err = h.do(ctx, "init upload", http.MethodPost, girderproto.PathUpload, nil, bytes.NewReader(body), "application/json", &doc); err != nil {
		return models.UploadState{}, err
	}

	return documentState(doc)
}

// UploadChunk отправляет байты [offset, offset+len(chunk)).
func (h *httpClient) UploadChunk(ctx context.Context, uploadID string, offset int64, chunk []byte) (models.UploadState, error) {
	q := url.Values{}
	q.Set(girderproto.QueryUploadID, uploadID)
	q.Set(girderproto.QueryOffset, strconv.FormatInt(offset, 10))

	var doc girderproto.Document
	err := h.do(ctx, "upload chunk", http.MethodPost, girderproto.PathUploadChunk, q, bytes.NewReader(chunk), "application/octet-stream", &doc)
	if err != nil {
		var rej *models.ServerRejection
		if errors.As(err, &rej) && rej.Received != nil {
			return models.UploadState{}, &models.ChunkRejectedError{
				UploadID: uploadID,
				Expected: *rej.Received,
				Offset:   offset,
				Cause:    err,
			}
		}
		return models.UploadState{}, err
	}

	return documentState(doc)
}

// GetOffset возвращает подтверждённый сервером offset.
func (h *httpClient) GetOffset(ctx context.Context, uploadID string) (int64, error) {
	q := url.Values{}
	q.Set(girderproto.QueryUploadID, uploadID)

	var out girderproto.OffsetResponse
	if err := h.do(ctx, "get offset", http.MethodGet, girderproto.PathUploadOffset, q, nil, "", &out); err != nil {
		return 0, err
	}
	return out.Offset, nil
}

// ResolveUpload читает /upload/offset. Если сервер уже собрал файл, дочитывает его описание,
// поэтому потерянный ответ на последний кусок не выглядит как пропавшая загрузка.
func (h *httpClient) ResolveUpload(ctx context.Context, uploadID string) (models.UploadState, error) {
	q := url.Values{}
	q.Set(girderproto.QueryUploadID, uploadID)

	var out girderproto.OffsetResponse
	if err := h.do(ctx, "get offset", http.MethodGet, girderproto.PathUploadOffset, q, nil, "", &out); err != nil {
		return models.UploadState{}, err
	}
	if out.FileID == "" {
		return models.Pending(models.UploadSession{UploadID: uploadID, ReceivedOffset: out.Offset}), nil
	}

	file, err := h.GetFile(ctx, out.FileID)
	if err != nil {
		return models.UploadState{}, err
	}
	return models.Complete(file), nil
}

// GetFile возвращает описание файла по его идентификатору.
func (h *httpClient) GetFile(ctx context.Context, fileID string) (models.FileDescriptor, error) {
	var doc girderproto.Document
	path := fmt.Sprintf(girderproto.PathFileFormat, url.PathEscape(fileID))
	if err := h.do(ctx, "get file", http.MethodGet, path, nil, nil, "", &doc); err != nil {
		return models.FileDescriptor{}, err
	}
	return fileDescriptor(doc), nil
}

// DeleteItem удаляет item целиком.
func (h *httpClient) DeleteItem(ctx context.Context, itemID string) error {
	path := fmt.Sprintf(girderproto.PathItemFormat, url.PathEscape(itemID))
	return h.do(ctx, "delete item", http.MethodDelete, path, nil, nil, "", nil)
}

// CurrentUser запрашивает /user/me; API отвечает null, если токен не распознан.
func (h *httpClient) CurrentUser(ctx context.Context) (*models.User, error) {
	var out *girderproto.UserResponse
	if err := h.do(ctx, "current user", http.MethodGet, girderproto.PathUserMe, nil, nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &models.User{
		ID:        out.ID,
		Login:     out.Login,
		Email:     out.Email,
		FirstName: out.FirstName,
		LastName:  out.LastName,
	}, nil
}

// Health опрашивает /health.
func (h *httpClient) Health(ctx context.Context) (girderproto.HealthResponse, error) {
	var out girderproto.HealthResponse
	if err := h.do(ctx, "health", http.MethodGet, girderproto.PathHealth, nil, nil, "", &out); err != nil {
		return girderproto.HealthResponse{}, err
	}
	return out, nil
}

func (h *httpClient) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, contentType string, out any) error {
	u := h.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if h.token != "" {
		req.Header.Set(girderproto.HeaderToken, h.token)
	}
	req.Header.Set(girderproto.HeaderRequestID, uuid.NewString())

	resp, err := h.c.Do(req)
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	// Тело читаем целиком: обрыв посреди ответа — такой же сетевой сбой с неизвестным исходом.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &models.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return rejection(op, path, resp, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func rejection(op, path string, resp *http.Response, raw []byte) error {
	rej := &models.ServerRejection{Op: op, Status: resp.StatusCode}

	var payload girderproto.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		rej.Message = payload.Message
		rej.Received = payload.Received
	} else {
		rej.Message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		if strings.HasPrefix(path, girderproto.PathUpload) {
			return fmt.Errorf("%w: %w", models.ErrUploadNotFound, rej)
		}
		return fmt.Errorf("%w: %w", models.ErrNotFound, rej)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", models.ErrUnauthorized, rej)
	}
	return rej
}

func documentState(doc girderproto.Document) (models.UploadState, error) {
	switch doc.ModelType {
	case girderproto.ModelFile:
		return models.Complete(fileDescriptor(doc)), nil
	case girderproto.ModelUpload:
		return models.Pending(models.UploadSession{
			UploadID:       doc.ID,
			ParentID:       doc.ParentID,
			ParentType:     models.ParentType(doc.ParentType),
			Name:           doc.Name,
			DeclaredSize:   doc.Size,
			MimeType:       doc.MimeType,
			ReceivedOffset: doc.Received,
			ItemID:         doc.ItemID,
			UserID:         doc.UserID,
			Created:        doc.Created,
		}), nil
	default:
		return models.UploadState{}, fmt.Errorf("unexpected document model type %q", doc.ModelType)
	}
}

func fileDescriptor(doc girderproto.Document) models.FileDescriptor {
	return models.FileDescriptor{
		FileID:   doc.ID,
		ItemID:   doc.ItemID,
		Name:     doc.Name,
		Size:     doc.Size,
		MimeType: doc.MimeType,
	}
}
