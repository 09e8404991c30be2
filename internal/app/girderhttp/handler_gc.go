package girderhttp

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/pkg/httperrors"
)

const manualGCTTL = 24 * time.Hour

type gcResponse struct {
	Removed int `json:"removed"`
}

// gcOnce вручную запускает сбор устаревших загрузок.
func (a *Server) gcOnce(w http.ResponseWriter, _ *http.Request) {
	removed, err := a.Sweep(manualGCTTL)
	if err != nil {
		httperrors.Write(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, gcResponse{Removed: removed})
}

// StartGC стартует периодическую очистку незавершённых загрузок.
func (a *Server) StartGC(ttl time.Duration, every time.Duration) func() {
	if every <= 0 || ttl <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				if n, err := a.Sweep(ttl); err != nil {
					a.log.Warn().Err(err).Msg("gc sweep failed")
				} else if n > 0 {
					a.log.Info().Int("removed", n).Msg("gc removed stale uploads")
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}

// Sweep удаляет загрузки (и следы собранных), чей meta.json не менялся дольше ttl.
// После этого /upload/offset отвечает 404.
func (a *Server) Sweep(ttl time.Duration) (int, error) {
	now := a.now()
	removed := 0

	err := a.eachUpload(func(up *uploadMeta, dir string) error {
		fi, err := os.Stat(filepath.Join(dir, metaFileName))
		if err != nil {
			return nil
		}
		if now.Sub(fi.ModTime()) < ttl {
			return nil
		}

		unlock := a.lockUpload(up.ID)
		defer unlock()
		if err = os.RemoveAll(dir); err != nil {
			return err
		}
		a.forgetUpload(up.ID)
		removed++
		a.metrics.gcRemoved.Inc()
		return nil
	})

	return removed, err
}

// eachUpload обходит все незавершённые загрузки; битые каталоги пропускаются.
func (a *Server) eachUpload(fn func(up *uploadMeta, dir string) error) error {
	root := filepath.Join(a.dataDir, uploadsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		var up uploadMeta
		if err := readMeta(dir, &up, models.ErrUploadNotFound); err != nil {
			continue
		}
		if err := fn(&up, dir); err != nil {
			return err
		}
	}

	return nil
}
