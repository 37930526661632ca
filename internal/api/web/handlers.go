package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"textile-vision/internal/domain/entity"
)

const multipartMemory = 32 << 20

type scoreView struct {
	Label   string
	Color   string
	Percent string
}

type resultView struct {
	Label      string
	Color      string
	Confidence string
	Scores     []scoreView
}

type pageData struct {
	View        string
	Labels      []LabelResponse
	Result      *resultView
	Image       template.URL
	FileName    string
	Error       string
	LiveRunning bool
}

var views = map[string]bool{"upload": true, "webcam": true, "live": true, "video": true}

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if !views[view] {
		view = "upload"
	}
	s.render(w, http.StatusOK, &pageData{View: view})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) HandleLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.labels())
}

// HandleClassifyForm форма загрузки: файл сохраняется во временный каталог,
// классифицируется и удаляется; результат показывается на странице.
func (s *Server) HandleClassifyForm(w http.ResponseWriter, r *http.Request) {
	data := &pageData{View: "upload"}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxImageBytes)
	file, header, err := formFile(r, "image")
	if err != nil {
		data.Error = formError(err)
		s.render(w, http.StatusBadRequest, data)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		status, _ := errorStatus(err)
		data.Error = userMessage(err)
		s.render(w, status, data)
		return
	}
	data.FileName = header.Filename

	p, err := s.classifyUpload(r.Context(), header.Filename, raw)
	if err != nil {
		status, _ := errorStatus(err)
		s.logFailure(err, "file", header.Filename)
		data.Error = "Prediction failed: " + userMessage(err)
		s.render(w, status, data)
		return
	}

	data.Image = dataURL(header.Header.Get("Content-Type"), raw)
	data.Result = s.resultView(p)
	s.render(w, http.StatusOK, data)
}

// HandleClassify multipart-поле "image" или тело запроса целиком
func (s *Server) HandleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxImageBytes)

	var (
		raw  []byte
		name = "upload"
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := formFile(r, "image")
		if ferr != nil {
			s.writeFormError(w, ferr)
			return
		}
		defer file.Close()
		name = header.Filename
		raw, err = io.ReadAll(file)
	} else {
		raw, err = io.ReadAll(r.Body)
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}

	p, err := s.classifyUpload(r.Context(), name, raw)
	if err != nil {
		s.logFailure(err, "file", name)
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(s.classifier.Labels(), p))
}

type frameRequest struct {
	Image string `json:"image"`
}

// HandleFrame снимок с веб-камеры браузера: base64 или data URL
func (s *Server) HandleFrame(w http.ResponseWriter, r *http.Request) {
	// base64 раздувает данные на треть
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxImageBytes*4/3+1024)

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErr(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON")
		return
	}

	raw, err := decodeBase64Image(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_image", err.Error())
		return
	}

	p, err := s.classifier.PredictBytes(r.Context(), raw)
	if err != nil {
		s.logFailure(err, "source", "webcam")
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(s.classifier.Labels(), p))
}

// HandleVideo кадры видео классифицируются по очереди; плохой кадр
// попадает в ответ с ошибкой, остальные обрабатываются дальше.
func (s *Server) HandleVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxVideoBytes)

	file, header, err := formFile(r, "video")
	if err != nil {
		s.writeFormError(w, err)
		return
	}
	defer file.Close()

	every := s.opts.VideoFrameStep
	if v := r.FormValue("every"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "every must be a positive integer")
			return
		}
		every = n
	}

	path, err := s.uploads.Save(header.Filename, file)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	defer s.removeUpload(path)

	report, err := s.stream.ClassifyVideo(r.Context(), path, every)
	if report == nil {
		s.logFailure(err, "file", header.Filename)
		s.writeErr(w, err)
		return
	}

	resp := newVideoResponse(s.classifier.Labels(), report)
	if err != nil {
		s.log.Warnw("video processing stopped early", "file", header.Filename, "error", err)
		resp.Error = userMessage(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleLiveStart(w http.ResponseWriter, r *http.Request) {
	device := s.opts.CameraDevice
	if v := r.URL.Query().Get("device"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "device must be a non-negative integer")
			return
		}
		device = n
	}

	if err := s.live.Start(device); err != nil {
		s.log.Warnw("live classification start failed", "device", device, "error", err)
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLiveResponse(s.classifier.Labels(), s.live.Status()))
}

func (s *Server) HandleLiveStop(w http.ResponseWriter, r *http.Request) {
	s.live.Stop()
	writeJSON(w, http.StatusOK, newLiveResponse(s.classifier.Labels(), s.live.Status()))
}

func (s *Server) HandleLiveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newLiveResponse(s.classifier.Labels(), s.live.Status()))
}

func (s *Server) HandleLiveFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.live.LatestFrame()
	if !ok {
		writeError(w, http.StatusNotFound, "no_frame", "No frame captured yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

// classifyUpload сохраняет загрузку во временный файл на время классификации
func (s *Server) classifyUpload(ctx context.Context, name string, raw []byte) (*entity.Prediction, error) {
	path, err := s.uploads.Save(name, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer s.removeUpload(path)

	return s.classifier.PredictFile(ctx, path)
}

func (s *Server) removeUpload(path string) {
	if err := s.uploads.Remove(path); err != nil {
		s.log.Warnw("remove upload", "path", path, "error", err)
	}
}

// logFailure ошибки формы входа и инференса пишутся в error-лог
func (s *Server) logFailure(err error, kv ...interface{}) {
	kv = append(kv, "error", err)
	switch {
	case errors.Is(err, entity.ErrInputShape), errors.Is(err, entity.ErrInference):
		s.log.Errorw("prediction failed", kv...)
	default:
		s.log.Infow("prediction rejected", kv...)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, userMessage(err))
}

func (s *Server) writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeErr(w, err)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_request", formError(err))
}

func (s *Server) labels() []LabelResponse {
	labels := s.classifier.Labels()
	out := make([]LabelResponse, len(labels))
	for i, l := range labels {
		out[i] = LabelResponse{Index: i, Label: string(l), Color: l.Color()}
	}
	return out
}

func (s *Server) resultView(p *entity.Prediction) *resultView {
	labels := s.classifier.Labels()
	scores := make([]scoreView, len(p.Scores))
	for i, v := range p.Scores {
		scores[i] = scoreView{Label: string(labels[i]), Color: labels[i].Color(), Percent: formatPercent(v)}
	}
	return &resultView{
		Label:      string(p.Label),
		Color:      p.Label.Color(),
		Confidence: formatPercent(p.Confidence),
		Scores:     scores,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	data.Labels = s.labels()
	data.LiveRunning = s.live != nil && s.live.Running()

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Errorw("render page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, err
	}
	return r.FormFile(field)
}

func formError(err error) string {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return userMessage(err)
	case errors.Is(err, http.ErrMissingFile):
		return "Please choose a file to upload."
	default:
		return "Failed to parse form."
	}
}

func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("image is empty")
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, errors.New("image must be a base64 data URL")
		}
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return raw, nil
}

func dataURL(contentType string, raw []byte) template.URL {
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(raw)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(raw))
}

func formatPercent(v float32) string {
	return strconv.FormatFloat(float64(v)*100, 'f', 2, 64) + "%"
}
