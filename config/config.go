package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	ModelPath     string
	ONNXLibPath   string
	InputName     string
	OutputName    string
	InputSize     int
	Normalization string
	ResizeFilter  string
	IntraOp       int

	UploadDir      string
	MaxImageBytes  int64
	MaxVideoBytes  int64
	VideoFrameStep int
	CameraDevice   int

	TelegramToken string

	LogLevel string
	Debug    bool
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		ModelPath:     getEnv("MODEL_PATH", "models/textile.onnx"),
		ONNXLibPath:   os.Getenv("ONNXRUNTIME_LIB"),
		InputName:     os.Getenv("MODEL_INPUT_NAME"),
		OutputName:    os.Getenv("MODEL_OUTPUT_NAME"),
		Normalization: strings.ToLower(getEnv("NORMALIZATION", "caffe")),
		ResizeFilter:  strings.ToLower(getEnv("RESIZE_FILTER", "nearest")),
		UploadDir:     os.Getenv("UPLOAD_DIR"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:         os.Getenv("DEBUG") == "true",
	}

	var err error
	if cfg.InputSize, err = getInt("INPUT_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.IntraOp, err = getInt("INTRA_OP_THREADS", 0); err != nil {
		return nil, err
	}
	if cfg.VideoFrameStep, err = getInt("VIDEO_FRAME_STEP", 1); err != nil {
		return nil, err
	}
	if cfg.CameraDevice, err = getInt("CAMERA_DEVICE", 0); err != nil {
		return nil, err
	}
	if cfg.MaxImageBytes, err = getInt64("MAX_IMAGE_BYTES", 10<<20); err != nil {
		return nil, err
	}
	if cfg.MaxVideoBytes, err = getInt64("MAX_VIDEO_BYTES", 200<<20); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить по ходу работы
func (c *Config) Validate() error {
	switch {
	case c.ModelPath == "":
		return fmt.Errorf("MODEL_PATH is required")
	case c.InputSize <= 0:
		return fmt.Errorf("INPUT_SIZE must be positive, got %d", c.InputSize)
	case c.IntraOp < 0:
		return fmt.Errorf("INTRA_OP_THREADS must not be negative, got %d", c.IntraOp)
	case c.VideoFrameStep < 1:
		return fmt.Errorf("VIDEO_FRAME_STEP must be >= 1, got %d", c.VideoFrameStep)
	case c.CameraDevice < 0:
		return fmt.Errorf("CAMERA_DEVICE must not be negative, got %d", c.CameraDevice)
	case c.MaxImageBytes <= 0 || c.MaxVideoBytes <= 0:
		return fmt.Errorf("upload limits must be positive")
	}
	switch c.Normalization {
	case "caffe", "tf", "torch", "raw":
	default:
		return fmt.Errorf("NORMALIZATION must be one of caffe, tf, torch, raw; got %q", c.Normalization)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
