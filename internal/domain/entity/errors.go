package entity

import "errors"

var (
	// ErrDecode изображение не читается или не декодируется
	ErrDecode = errors.New("image decode failed")

	// ErrInputShape тензор после предобработки не совпадает со входом модели.
	// Это ошибка конфигурации, а не пользовательского ввода.
	ErrInputShape = errors.New("input shape mismatch")

	// ErrModelLoad модель не загрузилась при старте
	ErrModelLoad = errors.New("model load failed")

	// ErrInference прямой проход завершился ошибкой или вернул вектор неверной длины
	ErrInference = errors.New("inference failed")

	// ErrSourceUnavailable камера или видео недоступны в этой сборке/окружении
	ErrSourceUnavailable = errors.New("frame source unavailable")
)
