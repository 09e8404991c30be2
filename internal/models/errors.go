package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUploadInit     = errors.New("upload init failed")
	ErrUploadNotFound = errors.New("upload not found")
	ErrChunkRejected  = errors.New("chunk rejected")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
)

// ErrCommitUnconfirmed: последний кусок ушёл, ответ потерян, а сервер уже не знает загрузку.
// Файл, скорее всего, собран; item не трогаем.
var ErrCommitUnconfirmed = errors.New("final chunk outcome unconfirmed")

// Validationf оборачивает ErrValidation сообщением о конкретном нарушении.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransportError — сетевой сбой, исход удалённой операции неизвестен.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerRejection — удалённый API вернул неуспешный статус.
type ServerRejection struct {
	Op      string
	Status  int
	Message string
	// Received заполняется, если сервер сообщил свой текущий offset загрузки.
	Received *int64
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("%s: server rejected (%d): %s", e.Op, e.Status, e.Message)
}

// ChunkRejectedError описывает расхождение offset'ов между клиентом и сервером.
type ChunkRejectedError struct {
	UploadID string
	// Expected — offset, который считается подтверждённым; -1 если неизвестен.
	Expected int64
	Offset   int64
	Cause    error
}

func (e *ChunkRejectedError) Error() string {
	msg := fmt.Sprintf("chunk rejected for upload %s: expected offset %d, got %d", e.UploadID, e.Expected, e.Offset)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ChunkRejectedError) Is(target error) bool { return target == ErrChunkRejected }

func (e *ChunkRejectedError) Unwrap() error { return e.Cause }

// IsTransport сообщает, является ли ошибка сетевым сбоем с неизвестным исходом.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
