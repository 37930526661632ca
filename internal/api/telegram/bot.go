package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"textile-vision/internal/container"
	"textile-vision/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот для классификации дефектов ткани.

📸 Отправьте мне фото ткани, и я определю класс: Good, Hole, Objects, Oil Spot или Thread Error.

📋 Команды:
/check — начать проверку ткани
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото ткани (как фото или как файл)
2️⃣ Бот классифицирует изображение
3️⃣ Вы получите класс и уверенность модели

💡 Рекомендации:
• Снимайте при хорошем освещении
• Ткань должна занимать весь кадр
• Фото должно быть чётким

📋 Команды:
/check — начать проверку
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото ткани для проверки."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото ткани для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgBusy            = "⏳ Предыдущее фото ещё обрабатывается, подождите."
	msgNotAnImage      = "⚠️ Не удалось прочитать изображение. Поддерживаются JPEG, PNG, GIF, BMP, TIFF и WebP."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgTooLarge        = "⚠️ Файл слишком большой."
)

// client часть BotAPI, которой пользуется бот
type client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api      *tgbotapi.BotAPI
	client   client
	http     *http.Client
	services *container.Container
	log      *zap.SugaredLogger
	maxBytes int64
}

// NewBot создаёт нового бота
func NewBot(token string, services *container.Container, maxBytes int64, log *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.Infow("authorized on telegram", "account", api.Self.UserName)

	b := newBot(api, services, maxBytes, log)
	b.api = api
	return b, nil
}

func newBot(c client, services *container.Container, maxBytes int64, log *zap.SugaredLogger) *Bot {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Bot{
		client:   c,
		http:     &http.Client{Timeout: 30 * time.Second},
		services: services,
		log:      log,
		maxBytes: maxBytes,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	user, err := b.services.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Errorw("get user", "user", msg.From.ID, "error", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Фото или изображение, отправленное файлом
	if fileID, ok := imageFileID(msg); ok {
		if user.State == entity.StateProcessing {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		b.handlePhoto(ctx, msg, fileID)
		return
	}

	// Текстовое сообщение (не команда)
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	users := b.services.UserService
	userID, chatID := msg.From.ID, msg.Chat.ID

	var (
		reply string
		err   error
	)
	switch msg.Command() {
	case "start":
		_, err = users.Cancel(ctx, userID, chatID)
		reply = msgStart

	case "help":
		reply = msgHelp

	case "check":
		_, err = users.BeginCheck(ctx, userID, chatID)
		reply = msgAwaitingPhoto

	case "cancel":
		_, err = users.Cancel(ctx, userID, chatID)
		reply = msgCancelled

	default:
		reply = msgUnknownCommand
	}
	if err != nil {
		b.log.Errorw("update user state", "user", userID, "command", msg.Command(), "error", err)
	}
	b.sendMessage(chatID, reply)
}

// handlePhoto скачивает фото и отвечает классом ткани
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	userID, chatID := msg.From.ID, msg.Chat.ID
	b.sendMessage(chatID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Warnw("download photo", "user", userID, "error", err)
		if errors.Is(err, errTooLarge) {
			b.sendMessage(chatID, msgTooLarge)
		} else {
			b.sendMessage(chatID, msgProcessingError)
		}
		if _, cerr := b.services.UserService.Cancel(ctx, userID, chatID); cerr != nil {
			b.log.Errorw("reset user state", "user", userID, "error", cerr)
		}
		return
	}

	p, err := b.services.PhotoService.Classify(ctx, userID, chatID, imageData)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrDecode):
			b.log.Infow("photo rejected", "user", userID, "error", err)
			b.sendMessage(chatID, msgNotAnImage)
		case errors.Is(err, entity.ErrInputShape):
			b.log.Errorw("photo skipped: preprocessing does not match model", "user", userID, "error", err)
			b.sendMessage(chatID, msgProcessingError)
		default:
			b.log.Errorw("classify photo", "user", userID, "error", err)
			b.sendMessage(chatID, msgProcessingError)
		}
		return
	}

	b.log.Infow("photo classified", "user", userID, "label", p.Label, "confidence", p.Confidence)
	b.sendMessage(chatID, formatResult(b.services.Classifier.Labels(), p))
}

var errTooLarge = errors.New("file is too large")

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.client.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, errTooLarge
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.client.Send(msg); err != nil {
		b.log.Warnw("send message", "chat", chatID, "error", err)
	}
}

// imageFileID берёт фото с максимальным разрешением или документ-картинку
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

func formatResult(labels []entity.Label, p *entity.Prediction) string {
	var sb strings.Builder
	if p.Label.IsDefect() {
		fmt.Fprintf(&sb, "⚠️ Дефект: %s (%.2f%%)\n", p.Label, p.Confidence*100)
	} else {
		fmt.Fprintf(&sb, "✅ Ткань без дефектов: %s (%.2f%%)\n", p.Label, p.Confidence*100)
	}

	sb.WriteString("\n📊 Оценки модели:\n")
	for i, score := range p.Scores {
		if i >= len(labels) {
			break
		}
		fmt.Fprintf(&sb, "• %s — %.2f%%\n", labels[i], score*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}
