package models

import (
	"strings"
	"time"
)

// ParentType — тип контейнера, в который кладётся файл.
type ParentType string

const (
	ParentFolder ParentType = "folder"
	ParentItem   ParentType = "item"
)

// ParseParentType приводит строку к ParentType или возвращает ErrValidation.
func ParseParentType(s string) (ParentType, error) {
	switch pt := ParentType(strings.ToLower(strings.TrimSpace(s))); pt {
	case ParentFolder, ParentItem:
		return pt, nil
	default:
		return "", Validationf("parent type %q must be one of folder, item", s)
	}
}

// UploadSession — состояние незавершённой загрузки на сервере.
type UploadSession struct {
	UploadID       string     `json:"upload_id"`
	ParentID       string     `json:"parent_id"`
	ParentType     ParentType `json:"parent_type"`
	Name           string     `json:"name"`
	DeclaredSize   int64      `json:"declared_size"`
	MimeType       string     `json:"mime_type,omitempty"`
	ReceivedOffset int64      `json:"received_offset"`
	ItemID         string     `json:"item_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	Created        time.Time  `json:"created"`
}

// Remaining возвращает количество байт, которые сервер ещё не подтвердил.
func (s UploadSession) Remaining() int64 {
	return s.DeclaredSize - s.ReceivedOffset
}

// StateKind различает ответы "ещё грузим" и "файл готов".
type StateKind int

const (
	StatePending StateKind = iota + 1
	StateComplete
)

func (k StateKind) String() string {
	switch k {
	case StatePending:
		return "pending"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// UploadState — явный результат init/chunk: либо обновлённая сессия, либо файл.
type UploadState struct {
	Kind    StateKind
	Session UploadSession
	File    FileDescriptor
}

// Pending конструирует состояние с незавершённой сессией.
func Pending(s UploadSession) UploadState {
	return UploadState{Kind: StatePending, Session: s}
}

// Complete конструирует терминальное состояние.
func Complete(f FileDescriptor) UploadState {
	return UploadState{Kind: StateComplete, File: f}
}

// Done сообщает, что загрузка завершена.
func (s UploadState) Done() bool {
	return s.Kind == StateComplete
}

// InitRequest — параметры создания загрузки.
type InitRequest struct {
	ParentID   string     `json:"parent_id" validate:"required"`
	ParentType ParentType `json:"parent_type" validate:"required,oneof=folder item"`
	Name       string     `json:"name" validate:"required"`
	Size       int64      `json:"size" validate:"gte=0"`
	MimeType   string     `json:"mime_type,omitempty"`
}

// ChunkPlan описывает, на сколько частей нужно разбить файл и какого они размера.
type ChunkPlan struct {
	Total int
	Size  int64
}
