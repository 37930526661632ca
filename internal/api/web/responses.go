package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	app "textile-vision/internal/application"
	"textile-vision/internal/domain/entity"
)

type ScoreEntry struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type PredictionResponse struct {
	Label      string       `json:"label"`
	Index      int          `json:"index"`
	Confidence float32      `json:"confidence"`
	Color      string       `json:"color"`
	Scores     []ScoreEntry `json:"scores"`
	ElapsedMs  float64      `json:"elapsed_ms"`
}

type FrameResponse struct {
	Frame      int     `json:"frame"`
	Label      string  `json:"label,omitempty"`
	Confidence float32 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type SummaryResponse struct {
	Frames     int            `json:"frames"`
	Classified int            `json:"classified"`
	Failed     int            `json:"failed"`
	Counts     map[string]int `json:"counts"`
	Dominant   string         `json:"dominant,omitempty"`
}

type VideoResponse struct {
	Frames  []FrameResponse `json:"frames"`
	Summary SummaryResponse `json:"summary"`
	Error   string          `json:"error,omitempty"`
}

type LiveResponse struct {
	Running   bool            `json:"running"`
	Device    int             `json:"device"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	Latest    *FrameResponse  `json:"latest,omitempty"`
	Summary   SummaryResponse `json:"summary"`
	Error     string          `json:"error,omitempty"`
}

type LabelResponse struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newPredictionResponse(labels []entity.Label, p *entity.Prediction) PredictionResponse {
	scores := make([]ScoreEntry, len(p.Scores))
	for i, s := range p.Scores {
		scores[i] = ScoreEntry{Label: string(labels[i]), Score: s}
	}
	return PredictionResponse{
		Label:      string(p.Label),
		Index:      p.Index,
		Confidence: p.Confidence,
		Color:      p.Label.Color(),
		Scores:     scores,
		ElapsedMs:  float64(p.Timings.Total.Microseconds()) / 1000,
	}
}

func newFrameResponse(r entity.FrameResult) FrameResponse {
	if r.Err != nil {
		return FrameResponse{Frame: r.Frame, Error: userMessage(r.Err)}
	}
	return FrameResponse{
		Frame:      r.Frame,
		Label:      string(r.Prediction.Label),
		Confidence: r.Prediction.Confidence,
	}
}

func newSummaryResponse(labels []entity.Label, s entity.StreamSummary) SummaryResponse {
	out := SummaryResponse{
		Frames:     s.Frames,
		Classified: s.Classified,
		Failed:     s.Failed,
		Counts:     make(map[string]int, len(s.Counts)),
	}
	for l, c := range s.Counts {
		out.Counts[string(l)] = c
	}
	if d, ok := s.Dominant(labels); ok {
		out.Dominant = string(d)
	}
	return out
}

func newVideoResponse(labels []entity.Label, report *app.VideoReport) VideoResponse {
	frames := make([]FrameResponse, len(report.Frames))
	for i, r := range report.Frames {
		frames[i] = newFrameResponse(r)
	}
	return VideoResponse{
		Frames:  frames,
		Summary: newSummaryResponse(labels, report.Summary),
	}
}

func newLiveResponse(labels []entity.Label, st app.LiveStatus) LiveResponse {
	resp := LiveResponse{
		Running: st.Running,
		Device:  st.Device,
		Summary: newSummaryResponse(labels, st.Summary),
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		resp.StartedAt = &started
	}
	if st.Latest != nil {
		latest := newFrameResponse(*st.Latest)
		resp.Latest = &latest
	}
	if st.LastError != nil {
		resp.Error = userMessage(st.LastError)
	}
	return resp
}

// errorStatus сопоставляет ошибку с HTTP-кодом и машинным кодом ответа
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, entity.ErrDecode):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, entity.ErrInputShape):
		return http.StatusInternalServerError, "input_shape"
	case errors.Is(err, entity.ErrInference):
		return http.StatusInternalServerError, "inference_error"
	case errors.Is(err, entity.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "source_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// userMessage текст для пользователя без внутренних подробностей
func userMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrDecode):
		return "The file could not be read as an image. Supported: JPEG, PNG, GIF, BMP, TIFF, WebP."
	case errors.Is(err, entity.ErrInputShape):
		return "The image could not be prepared for the model."
	case errors.Is(err, entity.ErrInference):
		return "Prediction failed."
	case errors.Is(err, entity.ErrSourceUnavailable):
		return "Camera or video decoding is not available on this server."
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "The upload is too large."
		}
		return "Unexpected error."
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
