package girderhttp

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

const (
	metaFileName = "meta.json"
	dataFileName = "data.bin"

	uploadsDir = "uploads"
	filesDir   = "files"
	itemsDir   = "items"
)

// uploadMeta — состояние незавершённой загрузки на диске.
type uploadMeta struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	ParentType string    `json:"parent_type"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type,omitempty"`
	Received   int64     `json:"received"`
	ItemID     string    `json:"item_id"`
	UserID     string    `json:"user_id"`
	Created    time.Time `json:"created"`
	// FileID выставляется при финализации; такая запись остаётся до GC как ответ на /upload/offset.
	FileID string `json:"file_id,omitempty"`
}

func (m *uploadMeta) finalized() bool { return m.FileID != "" }

func (m *uploadMeta) document() girderproto.Document {
	return girderproto.Document{
		ID:         m.ID,
		ModelType:  girderproto.ModelUpload,
		ItemID:     m.ItemID,
		Name:       m.Name,
		Size:       m.Size,
		MimeType:   m.MimeType,
		Received:   m.Received,
		ParentID:   m.ParentID,
		ParentType: m.ParentType,
		UserID:     m.UserID,
		Created:    m.Created,
	}
}

// fileMeta описывает готовый файл.
type fileMeta struct {
	ID       string    `json:"id"`
	ItemID   string    `json:"item_id"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type,omitempty"`
	Created  time.Time `json:"created"`
}

func (m *fileMeta) document() girderproto.Document {
	return girderproto.Document{
		ID:        m.ID,
		ModelType: girderproto.ModelFile,
		ItemID:    m.ItemID,
		Name:      m.Name,
		Size:      m.Size,
		MimeType:  m.MimeType,
		Created:   m.Created,
	}
}

// itemMeta — item и принадлежащие ему файлы.
type itemMeta struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	FolderID string    `json:"folder_id"`
	Files    []string  `json:"files"`
	Created  time.Time `json:"created"`
}

func (a *Server) uploadDir(id string) string { return filepath.Join(a.dataDir, uploadsDir, id) }
func (a *Server) fileDir(id string) string   { return filepath.Join(a.dataDir, filesDir, id) }
func (a *Server) itemDir(id string) string   { return filepath.Join(a.dataDir, itemsDir, id) }

// writeMeta атомарно перезаписывает meta.json в каталоге dir.
func writeMeta(dir string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, metaFileName+".tmp")
	if err = os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, metaFileName))
}

// readMeta читает meta.json из каталога; отсутствие файла превращается в notFound.
func readMeta(dir string, v any, notFound error) error {
	b, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(b, v)
}

func (a *Server) loadUpload(id string) (*uploadMeta, error) {
	if !validID(id) {
		return nil, models.ErrUploadNotFound
	}
	var m uploadMeta
	if err := readMeta(a.uploadDir(id), &m, models.ErrUploadNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *Server) loadFile(id string) (*fileMeta, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	var m fileMeta
	if err := readMeta(a.fileDir(id), &m, models.ErrNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *Server) loadItem(id string) (*itemMeta, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	var m itemMeta
	if err := readMeta(a.itemDir(id), &m, models.ErrNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}

// validID не пускает в пути на диске ничего, кроме UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
