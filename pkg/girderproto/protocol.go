// Package girderproto описывает HTTP-протокол загрузки файлов в Girder-совместимый API.
package girderproto

import "time"

// Пути и параметры REST-протокола загрузки.
const (
	PathUpload       = "/upload"
	PathUploadChunk  = "/upload/chunk"
	PathUploadOffset = "/upload/offset"
	PathFile         = "/file/{id}"
	PathItem         = "/item/{id}"
	PathUserMe       = "/user/me"
	PathHealth       = "/health"
	PathMetrics      = "/metrics"

	PathFileFormat = "/file/%s"
	PathItemFormat = "/item/%s"

	HeaderToken     = "Girder-Token"
	HeaderRequestID = "X-Request-Id"

	QueryUploadID = "uploadId"
	QueryOffset   = "offset"
)

// Значения дискриминатора _modelType.
const (
	ModelUpload = "upload"
	ModelFile   = "file"
)

// Типы ошибок в поле "type" тела ответа.
const (
	ErrorTypeValidation = "validation"
	ErrorTypeAccess     = "access"
	ErrorTypeNotFound   = "notfound"
	ErrorTypeInternal   = "internal"
)

// InitUploadRequest — тело POST /upload.
type InitUploadRequest struct {
	ParentID   string `json:"parentId"`
	ParentType string `json:"parentType"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mimeType,omitempty"`
}

// Document — общий вид ответа init/chunk. ModelType решает, что это: upload или file.
type Document struct {
	ID         string    `json:"_id"`
	ModelType  string    `json:"_modelType"`
	ItemID     string    `json:"itemId,omitempty"`
	Name       string    `json:"name,omitempty"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType,omitempty"`
	Received   int64     `json:"received"`
	ParentID   string    `json:"parentId,omitempty"`
	ParentType string    `json:"parentType,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Created    time.Time `json:"created"`
}

// OffsetResponse — тело ответа GET /upload/offset. FileID заполнен, когда загрузка
// уже превратилась в файл: тогда Offset равен размеру.
type OffsetResponse struct {
	Offset int64  `json:"offset"`
	FileID string `json:"fileId,omitempty"`
}

// ErrorResponse — тело любого неуспешного ответа.
type ErrorResponse struct {
	Message  string `json:"message"`
	Type     string `json:"type,omitempty"`
	Field    string `json:"field,omitempty"`
	Received *int64 `json:"received,omitempty"`
}

// UserResponse — тело ответа GET /user/me.
type UserResponse struct {
	ID        string `json:"_id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// HealthResponse — тело ответа GET /health.
type HealthResponse struct {
	OK            bool  `json:"ok"`
	ActiveUploads int   `json:"active_uploads"`
	TotalBytes    int64 `json:"total_bytes"`
}
