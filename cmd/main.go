package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"textile-vision/config"
	"textile-vision/internal/api/telegram"
	"textile-vision/internal/api/web"
	"textile-vision/internal/container"
	"textile-vision/internal/domain/entity"
	"textile-vision/internal/infrastructure/logging"
	"textile-vision/internal/infrastructure/onnx"
	"textile-vision/internal/infrastructure/storage"
	"textile-vision/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatalw("textile-vision stopped", "error", err)
	}
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Без модели работать нечем: ошибка загрузки завершает процесс
	model, err := onnx.Load(onnx.Config{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ONNXLibPath,
		InputName:   cfg.InputName,
		OutputName:  cfg.OutputName,
		InputSize:   cfg.InputSize,
		NumClasses:  len(entity.Labels),
		IntraOp:     cfg.IntraOp,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warnw("close model", "error", err)
		}
	}()
	logger.Infow("model loaded", "path", cfg.ModelPath, "input", model.InputShape(), "classes", model.OutputSize())

	pre, err := vision.NewPreprocessor(vision.PreprocessConfig{
		Width:         cfg.InputSize,
		Height:        cfg.InputSize,
		Normalization: vision.Normalization(cfg.Normalization),
		Filter:        cfg.ResizeFilter,
	})
	if err != nil {
		return err
	}

	uploads, err := storage.NewTempUploadStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Собираем сервисы приложения
	services, err := container.New(container.Deps{
		Model:        model,
		Preprocessor: pre,
		Decoder:      vision.NewDecoder(),
		Sources:      vision.NewCaptureFactory(),
		Annotator:    vision.NewAnnotator(),
		Users:        storage.NewMemoryUserRepository(),
	}, logger)
	if err != nil {
		return err
	}
	defer services.LiveService.Stop()

	srv := web.NewServer(services.Classifier, services.StreamService, services.LiveService, uploads, web.Options{
		MaxImageBytes:  cfg.MaxImageBytes,
		MaxVideoBytes:  cfg.MaxVideoBytes,
		VideoFrameStep: cfg.VideoFrameStep,
		CameraDevice:   cfg.CameraDevice,
	}, logger.Named("web"))
	httpServer := web.NewHTTPServer(cfg.HTTPAddr, srv.Router())

	errs := make(chan error, 2)
	go func() {
		logger.Infow("http server listening", "addr", cfg.HTTPAddr, "uploads", uploads.Dir())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, services, cfg.MaxImageBytes, logger.Named("telegram"))
		if err != nil {
			return err
		}
		go func() {
			logger.Infow("bot is running")
			if err := bot.Run(ctx); err != nil {
				errs <- err
			}
		}()
	} else {
		logger.Infow("TELEGRAM_TOKEN is not set, bot disabled")
	}

	select {
	case <-ctx.Done():
		logger.Infow("shutting down")
	case err = <-errs:
		logger.Errorw("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warnw("http shutdown", "error", serr)
	}
	return err
}
