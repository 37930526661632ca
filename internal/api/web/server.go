// Package web веб-интерфейс классификации ткани: загрузка фото, снимок с
// веб-камеры, живая классификация с камеры сервера и разбор видео.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	app "textile-vision/internal/application"
	"textile-vision/internal/domain/port"
)

//go:embed templates/*.html
var templates embed.FS

// Options ограничения и параметры по умолчанию для обработчиков
type Options struct {
	MaxImageBytes  int64
	MaxVideoBytes  int64
	VideoFrameStep int
	CameraDevice   int
}

type Server struct {
	classifier *app.Classifier
	stream     *app.StreamService
	live       *app.LiveService
	uploads    port.UploadStore
	log        *zap.SugaredLogger
	opts       Options
	page       *template.Template
}

func NewServer(classifier *app.Classifier, stream *app.StreamService, live *app.LiveService,
	uploads port.UploadStore, opts Options, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 10 << 20
	}
	if opts.MaxVideoBytes <= 0 {
		opts.MaxVideoBytes = 200 << 20
	}
	if opts.VideoFrameStep < 1 {
		opts.VideoFrameStep = 1
	}

	page := template.Must(template.ParseFS(templates, "templates/index.html"))

	return &Server{
		classifier: classifier,
		stream:     stream,
		live:       live,
		uploads:    uploads,
		log:        log,
		opts:       opts,
		page:       page,
	}
}

// Router маршруты приложения
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger, enableCORS)

	r.HandleFunc("/", s.HandleIndex).Methods(http.MethodGet)
	r.HandleFunc("/classify", s.HandleClassifyForm).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/labels", s.HandleLabels).Methods(http.MethodGet)
	api.HandleFunc("/classify", s.HandleClassify).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/frame", s.HandleFrame).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/video", s.HandleVideo).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/live", s.HandleLiveStatus).Methods(http.MethodGet)
	api.HandleFunc("/live/start", s.HandleLiveStart).Methods(http.MethodPost)
	api.HandleFunc("/live/stop", s.HandleLiveStop).Methods(http.MethodPost)
	api.HandleFunc("/live/frame.jpg", s.HandleLiveFrame).Methods(http.MethodGet)

	return r
}

// NewHTTPServer http.Server с таймаутами. Видео обрабатывается долго,
// поэтому WriteTimeout больше, чем нужно для фото.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Debugw("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
