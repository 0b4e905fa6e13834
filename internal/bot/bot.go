package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"gymbot/internal/config"
	"gymbot/internal/logger"
	"gymbot/internal/models"
	"gymbot/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrUpdatesClosed is returned by Start when Telegram stops delivering updates
// before the bot was asked to stop.
var ErrUpdatesClosed = errors.New("telegram updates channel closed")

// API is the part of the Telegram client the bot uses
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Conversation turns chat messages into prompts
type Conversation interface {
	HandleInput(ctx context.Context, sessionID, text string) (session.Prompt, error)
	Summary(ctx context.Context, sessionID string) (map[string]string, error)
}

// LogSource feeds the xlsx export
type LogSource interface {
	List(ctx context.Context, since time.Time) ([]models.LogRow, error)
}

// Bot представляет Telegram бота
type Bot struct {
	api    API
	conv   Conversation
	logs   LogSource
	config *config.Config
	log    *logger.Logger

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

// New создаёт новый экземпляр бота
func New(api API, conv Conversation, logs LogSource, cfg *config.Config, log *logger.Logger) *Bot {
	return &Bot{
		api:     api,
		conv:    conv,
		logs:    logs,
		config:  cfg,
		log:     log.With("service", "TelegramBot"),
		workers: make(map[int64]*worker),
	}
}

// Start запускает бота и блокируется до отмены ctx или закрытия канала обновлений
func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := b.initUpdatesChannel()
	b.log.Info("bot started, waiting for updates")

	err := b.handleUpdates(ctx, updates)

	cancel()
	b.wg.Wait()
	if err != nil {
		b.log.Error("bot stopped", "error", err)
		return err
	}
	b.log.Info("bot stopped")
	return nil
}

// Stop ends long polling; Start then returns once the workers are done
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrUpdatesClosed
			}
			if update.Message == nil {
				continue
			}
			b.dispatch(ctx, update.Message)
		}
	}
}

func (b *Bot) initUpdatesChannel() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	return b.api.GetUpdatesChan(u)
}
