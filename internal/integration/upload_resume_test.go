package integration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir_venger/girder_uploader/internal/app/girderhttp"
	"github.com/sir_venger/girder_uploader/internal/models"
	"github.com/sir_venger/girder_uploader/internal/repo/journal"
	"github.com/sir_venger/girder_uploader/internal/usecase/uploadsvc"
)

func folderReq(name string, size int) models.InitRequest {
	return models.InitRequest{ParentID: "folder-1", ParentType: models.ParentFolder, Name: name, Size: int64(size)}
}

func TestTransfer_SurvivesLostResponsesAndRequests(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	s.flaky.failChunk(2, true)
	s.flaky.failChunk(4, false)
	s.flaky.failChunk(5, false)
	c := s.coordinator()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<10) // 16 KiB, 4 куска
	file, err := c.Transfer(context.Background(), uploadsvc.TransferRequest{
		Init:   folderReq("resume.bin", len(payload)),
		Source: bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), file.Size)

	got := s.download(t, file.FileID)
	assert.Equal(t, sha256.Sum256(payload), sha256.Sum256(got))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.Metrics.Resyncs))
}

func TestTransfer_ManualChunkFlow(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	c := s.coordinator()
	ctx := context.Background()

	st, err := c.Initiate(ctx, folderReq("a.bin", 10))
	require.NoError(t, err)
	require.Equal(t, models.StatePending, st.Kind)

	_, err = c.UploadChunk(ctx, st.Session, 5, []byte("56789"))
	require.ErrorIs(t, err, models.ErrChunkRejected)

	st, err = c.UploadChunk(ctx, st.Session, 0, []byte("01234"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Session.ReceivedOffset)

	off, err := c.GetOffset(ctx, st.Session.UploadID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), off)

	st, err = c.UploadChunk(ctx, st.Session, 5, []byte("56789"))
	require.NoError(t, err)
	require.True(t, st.Done())

	details, err := c.GetFileDetails(ctx, st.File.FileID)
	require.NoError(t, err)
	assert.Equal(t, "a.bin", details.Name)
	assert.Equal(t, int64(10), details.Size)
	assert.Equal(t, []byte("0123456789"), s.download(t, st.File.FileID))

	off, err = c.GetOffset(ctx, st.Session.UploadID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), off)
}

func TestTransfer_LostFinalResponseKeepsCommittedFile(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	s.flaky.failChunk(2, true)
	c := s.coordinator()

	payload := bytes.Repeat([]byte("f"), 8<<10)
	file, err := c.Transfer(context.Background(), uploadsvc.TransferRequest{
		Init:   folderReq("final.bin", len(payload)),
		Source: bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), file.Size)
	assert.Equal(t, payload, s.download(t, file.FileID))

	items, err := os.ReadDir(filepath.Join(s.dataDir, "items"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTransfer_LostButLandedChunksKeepRetrying(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	s.flaky.failChunk(1, true)
	s.flaky.failChunk(2, true)
	c := s.coordinator(func(d *uploadsvc.Deps) { d.Retry.MaxAttempts = 2 })

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<10)
	file, err := c.Transfer(context.Background(), uploadsvc.TransferRequest{
		Init:   folderReq("steady.bin", len(payload)),
		Source: bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, payload, s.download(t, file.FileID))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.Metrics.Resyncs))
}

func TestTransfer_EmptyFileBothContracts(t *testing.T) {
	for _, finalizeOnInit := range []bool{false, true} {
		t.Run(fmt.Sprintf("finalize_on_init=%v", finalizeOnInit), func(t *testing.T) {
			s := newStack(t, girderhttp.Options{FinalizeEmptyOnInit: finalizeOnInit})
			file, err := s.coordinator().Transfer(context.Background(), uploadsvc.TransferRequest{
				Init:   folderReq("empty.txt", 0),
				Source: bytes.NewReader(nil),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), file.Size)
			assert.Empty(t, s.download(t, file.FileID))
		})
	}
}

func TestUploadMany_DistinctFiles(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	c := s.coordinator()

	var reqs []uploadsvc.TransferRequest
	payloads := map[string][]byte{}
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("file-%d.bin", i)
		data := bytes.Repeat([]byte{byte('a' + i)}, 3000*i+1)
		payloads[name] = data
		reqs = append(reqs, uploadsvc.TransferRequest{Init: folderReq(name, len(data)), Source: bytes.NewReader(data)})
	}

	results, err := c.UploadMany(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	seen := map[string]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.False(t, seen[r.File.FileID], "file ids are distinct")
		seen[r.File.FileID] = true
		assert.Equal(t, payloads[r.Name], s.download(t, r.File.FileID), r.Name)
	}
}

func TestUploadMany_OneFailureDoesNotStopOthers(t *testing.T) {
	s := newStack(t, girderhttp.Options{MaxFileSize: 1 << 10})
	c := s.coordinator()

	small := []byte("fits")
	big := bytes.Repeat([]byte("x"), 2<<10)
	results, err := c.UploadMany(context.Background(), []uploadsvc.TransferRequest{
		{Init: folderReq("big.bin", len(big)), Source: bytes.NewReader(big)},
		{Init: folderReq("small.bin", len(small)), Source: bytes.NewReader(small)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, results[0].Err, models.ErrUploadInit)
	require.NoError(t, results[1].Err)
	assert.Equal(t, small, s.download(t, results[1].File.FileID))
}

func TestTransfer_JournalResumeAndExpiredSession(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	store := journal.NewMemoryStore()
	payload := bytes.Repeat([]byte("z"), 10<<10)
	req := uploadsvc.TransferRequest{Init: folderReq("journaled.bin", len(payload)), Source: bytes.NewReader(payload)}

	// Первый запуск обрывается на втором куске и ничего не чистит.
	s.flaky.failChunk(2, false)
	c := s.coordinator(func(d *uploadsvc.Deps) {
		d.Journal = store
		d.CleanupOnFailure = false
		d.Retry.MaxAttempts = 1
	})
	_, err := c.Transfer(context.Background(), req)
	require.Error(t, err)
	assert.True(t, models.IsTransport(err))

	saved, err := store.Get(context.Background(), uploadsvc.JournalKey(req.Init))
	require.NoError(t, err)
	assert.Equal(t, int64(4<<10), saved.ReceivedOffset)

	// Сессия устаревает и удаляется сборщиком мусора.
	old := time.Now().Add(-48 * time.Hour)
	meta := filepath.Join(s.dataDir, "uploads", saved.UploadID, "meta.json")
	require.NoError(t, os.Chtimes(meta, old, old))
	removed, err := s.server.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	file, err := c.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), file.Size)
	assert.Equal(t, payload, s.download(t, file.FileID))
	assert.Equal(t, 0, store.Len())
}

func TestTransfer_GiveUpRemovesPartialItem(t *testing.T) {
	s := newStack(t, girderhttp.Options{})
	for n := 2; n <= 10; n++ {
		s.flaky.failChunk(n, false)
	}
	c := s.coordinator()

	payload := bytes.Repeat([]byte("q"), 12<<10)
	_, err := c.Transfer(context.Background(), uploadsvc.TransferRequest{
		Init:   folderReq("doomed.bin", len(payload)),
		Source: bytes.NewReader(payload),
	})
	require.Error(t, err)
	assert.True(t, models.IsTransport(err))

	entries, err := os.ReadDir(filepath.Join(s.dataDir, "items"))
	require.NoError(t, err)
	assert.Empty(t, entries, "partial item deleted")
}
