package uploadsvc

import (
	"fmt"

	"github.com/sir_venger/girder_uploader/internal/models"
)

// PlanChunks вычисляет число кусков фиксированного размера для файла длиной length.
// Пустой файл всё равно отправляется одним пустым куском.
func PlanChunks(length, chunkSize int64) models.ChunkPlan {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if length <= 0 {
		return models.ChunkPlan{Total: 1, Size: 0}
	}

	total := (length + chunkSize - 1) / chunkSize
	size := chunkSize
	if length < size {
		size = length
	}

	return models.ChunkPlan{
		Total: int(total),
		Size:  size,
	}
}

// JournalKey строит ключ журнала для файла: одинаковый родитель, имя и размер значат тот же файл.
func JournalKey(req models.InitRequest) string {
	return fmt.Sprintf("%s:%s/%s#%d", req.ParentType, req.ParentID, req.Name, req.Size)
}
