package girderhttp

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/sir_venger/girder_uploader/pkg/girderproto"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

// health возвращает число активных загрузок и объём данных на диске.
func (a *Server) health(w http.ResponseWriter, _ *http.Request) {
	var total int64
	// Проходим по всем файлам в dataDir и суммируем их размер для простого capacity-метрика.
	err := filepath.WalkDir(a.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()

		return nil
	})

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		httperrors.Write(w, err)
		return
	}

	active := 0
	if err = a.eachUpload(func(up *uploadMeta, _ string) error {
		if !up.finalized() {
			active++
		}
		return nil
	}); err != nil {
		httperrors.Write(w, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, girderproto.HealthResponse{
		OK:            true,
		ActiveUploads: active,
		TotalBytes:    total,
	})
}
