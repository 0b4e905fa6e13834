package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 32

// worker processes one chat's messages in arrival order
type worker struct {
	queue chan *tgbotapi.Message
}

// dispatch hands the message to the chat's worker, starting one if needed
func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	w, ok := b.workers[chatID]
	if !ok {
		w = &worker{queue: make(chan *tgbotapi.Message, queueSize)}
		b.workers[chatID] = w
		b.wg.Add(1)
		go b.runWorker(ctx, chatID, w)
	}
	select {
	case w.queue <- msg:
		b.mu.Unlock()
		return
	default:
	}
	b.mu.Unlock()

	// a full queue keeps the worker from retiring, so blocking here is safe
	b.log.Warn("chat queue is full, waiting", "chat_id", chatID)
	select {
	case w.queue <- msg:
	case <-ctx.Done():
	}
}

func (b *Bot) runWorker(ctx context.Context, chatID int64, w *worker) {
	defer b.wg.Done()

	idle := time.NewTimer(b.idleTimeout())
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			delete(b.workers, chatID)
			b.mu.Unlock()
			return
		case msg := <-w.queue:
			b.handleMessage(ctx, msg)
			idle.Reset(b.idleTimeout())
		case <-idle.C:
			b.mu.Lock()
			if len(w.queue) > 0 {
				b.mu.Unlock()
				idle.Reset(b.idleTimeout())
				continue
			}
			delete(b.workers, chatID)
			b.mu.Unlock()
			b.log.Debug("chat worker retired", "chat_id", chatID)
			return
		}
	}
}

func (b *Bot) idleTimeout() time.Duration {
	if b.config.WorkerIdle <= 0 {
		return 10 * time.Minute
	}
	return b.config.WorkerIdle
}

// activeWorkers is used by tests
func (b *Bot) activeWorkers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.workers)
}
