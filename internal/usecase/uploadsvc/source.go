package uploadsvc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// LocalFile — файл на диске как Source. Размер фиксируется при открытии.
type LocalFile struct {
	f        *os.File
	size     int64
	name     string
	mimeType string
}

// OpenSource открывает файл и определяет его MIME-тип по содержимому.
func OpenSource(path string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	lf := &LocalFile{
		f:    f,
		size: info.Size(),
		name: filepath.Base(path),
	}

	if lf.size > 0 {
		mt, err := mimetype.DetectReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("detect mime type: %w", err)
		}
		lf.mimeType = mt.String()
	}

	return lf, nil
}

func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) { return l.f.ReadAt(p, off) }

func (l *LocalFile) Size() int64 { return l.size }

func (l *LocalFile) Name() string { return l.name }

// MimeType возвращает определённый тип; пустая строка для пустого файла.
func (l *LocalFile) MimeType() string { return l.mimeType }

func (l *LocalFile) Close() error { return l.f.Close() }
