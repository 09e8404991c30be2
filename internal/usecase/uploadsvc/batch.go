package uploadsvc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// Result — итог загрузки одного файла из пачки.
type Result struct {
	Name string
	File models.FileDescriptor
	Err  error
}

// UploadMany загружает независимые файлы параллельно, не более Concurrency одновременно.
// У каждого файла своя сессия; ошибка одного файла не останавливает остальные.
func (c *Coordinator) UploadMany(ctx context.Context, reqs []TransferRequest) ([]Result, error) {
	results := make([]Result, len(reqs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.Concurrency)

	for idx := range reqs {
		idx := idx
		req := reqs[idx]
		results[idx].Name = req.Init.Name

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				results[idx].Err = err
				return nil
			}
			file, err := c.Transfer(egCtx, req)
			results[idx].File = file
			results[idx].Err = err
			return nil
		})
	}
	_ = eg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}

	return results, errors.Join(errs...)
}
