package girderhttp

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sir_venger/girder_uploader/internal/config"
	"github.com/sir_venger/girder_uploader/pkg/girderproto"
)

// Options — настройки сервера.
type Options struct {
	DataDir string
	// Tokens — принимаемые токены. Пустой список отключает проверку.
	Tokens []string
	// FinalizeEmptyOnInit: пустой файл создаётся сразу на POST /upload, без пустого куска.
	FinalizeEmptyOnInit bool
	// MaxFileSize ограничивает объявленный размер; 0 — без ограничений.
	MaxFileSize int64
	Log         zerolog.Logger
	Registry    *prometheus.Registry
}

// OptionsFromConfig переносит секцию stub конфигурации в Options.
func OptionsFromConfig(cfg config.StubConfig, log zerolog.Logger) Options {
	return Options{
		DataDir:             cfg.DataDir,
		Tokens:              cfg.Tokens,
		FinalizeEmptyOnInit: cfg.FinalizeEmptyOnInit,
		MaxFileSize:         int64(cfg.MaxFileSize),
		Log:                 log,
	}
}

// Server — upload API поверх локального каталога.
type Server struct {
	dataDir       string
	users         map[string]user
	finalizeEmpty bool
	maxFileSize   int64
	log           zerolog.Logger
	metrics       *serverMetrics
	registry      *prometheus.Registry

	// uploadLocks сериализует запросы к одной загрузке: в полёте максимум один кусок.
	uploadLocks sync.Map
	itemsMu     sync.Mutex
	now         func() time.Time
}

// New создаёт HTTP-обработчик upload API поверх каталога с данными.
func New(opts Options) http.Handler {
	_, h := NewServer(opts)
	return h
}

// NewServer возвращает и сам сервер, и его обработчик. Сервер нужен для GC.
func NewServer(opts Options) (*Server, http.Handler) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	srv := &Server{
		dataDir:       opts.DataDir,
		users:         usersFromTokens(opts.Tokens),
		finalizeEmpty: opts.FinalizeEmptyOnInit,
		maxFileSize:   opts.MaxFileSize,
		log:           opts.Log,
		metrics:       newServerMetrics(reg),
		registry:      reg,
		now:           func() time.Time { return time.Now().UTC() },
	}

	return srv, srv.routes()
}

// routes регистрирует обработчики загрузок, файлов, item'ов и служебные.
func (a *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.requestLog)
	r.Use(middleware.Recoverer)

	r.Get(girderproto.PathHealth, a.health)
	r.Handle(girderproto.PathMetrics, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Group(func(pr chi.Router) {
		pr.Use(a.identify)
		pr.Get(girderproto.PathUserMe, a.currentUser)

		pr.Group(func(ar chi.Router) {
			ar.Use(a.requireUser)
			ar.Post(girderproto.PathUpload, a.initUpload)
			ar.Post(girderproto.PathUploadChunk, a.uploadChunk)
			ar.Get(girderproto.PathUploadOffset, a.uploadOffset)
			ar.Get(girderproto.PathFile, a.getFile)
			ar.Get(girderproto.PathFile+"/download", a.downloadFile)
			ar.Delete(girderproto.PathItem, a.deleteItem)
			ar.Post("/admin/gc", a.gcOnce)
		})
	})

	return r
}

func (a *Server) lockUpload(id string) func() {
	v, _ := a.uploadLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forgetUpload убирает мьютекс загрузки. Вызывается под этим же мьютексом, когда
// запись на диске больше не меняется: ждущие запросы увидят новое состояние с диска.
func (a *Server) forgetUpload(id string) {
	a.uploadLocks.LoadAndDelete(id)
}

// requestLog пишет одну строку на запрос.
func (a *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqLog := a.log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Logger()

		next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

		reqLog.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
