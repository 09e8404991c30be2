package integration

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sir_venger/girder_uploader/internal/app/girderhttp"
	"github.com/sir_venger/girder_uploader/internal/logger"
	"github.com/sir_venger/girder_uploader/internal/usecase/uploadsvc"
	"github.com/sir_venger/girder_uploader/pkg/girderclient"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

const testToken = "integration-token"

type stack struct {
	dataDir string
	server  *girderhttp.Server
	api     *httptest.Server
	flaky   *flakyTransport
	client  girderclient.Client
}

func newStack(t *testing.T, opts girderhttp.Options) *stack {
	t.Helper()
	if opts.DataDir == "" {
		opts.DataDir = t.TempDir()
	}
	opts.Tokens = []string{testToken}
	opts.Log = logger.Nop()

	srv, h := girderhttp.NewServer(opts)
	api := httptest.NewServer(h)
	t.Cleanup(api.Close)

	flaky := &flakyTransport{next: http.DefaultTransport, drop: map[int]bool{}}
	cli := girderclient.New(api.URL, testToken, girderclient.WithHTTPClient(&http.Client{Transport: flaky}))

	return &stack{dataDir: opts.DataDir, server: srv, api: api, flaky: flaky, client: cli}
}

func (s *stack) coordinator(mutate ...func(*uploadsvc.Deps)) *uploadsvc.Coordinator {
	deps := uploadsvc.Deps{
		Client:           s.client,
		Log:              logger.Nop(),
		Metrics:          uploadsvc.NewMetrics(prometheus.NewRegistry()),
		ChunkSize:        4 << 10,
		Concurrency:      3,
		CleanupOnFailure: true,
		Retry:            uploadsvc.RetryPolicy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
	}
	for _, m := range mutate {
		m(&deps)
	}
	return uploadsvc.New(deps)
}

// download читает содержимое файла напрямую с сервера.
func (s *stack) download(t *testing.T, fileID string) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.api.URL+fmt.Sprintf(girderproto.PathFileFormat, fileID)+"/download", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(girderproto.HeaderToken, testToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download %s: %s: %s", fileID, resp.Status, string(body))
	}
	return body
}

var errDropped = errors.New("connection dropped")

// flakyTransport теряет выбранные запросы на кусок: lost=true доставляет запрос серверу, но
// выбрасывает ответ, иначе запрос не уходит вовсе.
type flakyTransport struct {
	next http.RoundTripper

	mu     sync.Mutex
	chunks int
	drop   map[int]bool
}

func (f *flakyTransport) failChunk(n int, lost bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop[n] = lost
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !strings.HasSuffix(req.URL.Path, girderproto.PathUploadChunk) {
		return f.next.RoundTrip(req)
	}

	f.mu.Lock()
	f.chunks++
	lost, ok := f.drop[f.chunks]
	f.mu.Unlock()

	if !ok {
		return f.next.RoundTrip(req)
	}
	if !lost {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, errDropped
	}

	resp, err := f.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil, errDropped
}
