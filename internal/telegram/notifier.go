package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/kirillm/trade-state/pkg/utils"
)

// sender абстрагирует Telegram API для тестов
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier отправляет уведомления о деградации хранилища в Telegram.
// Реализует storage.AlertSink. Отправка ограничена по частоте: нестабильное
// хранилище не должно заспамить чат. Ошибка отправки пишется в лог и не
// влияет на работу менеджера — канал оповещений пассивный.
type Notifier struct {
	api     sender
	chatID  int64
	logger  utils.Log
	limiter *rate.Limiter
}

// NewNotifier создает уведомитель. При пустом токене возвращает nil без
// ошибки: уведомления просто отключены.
func NewNotifier(token string, chatID int64, minInterval time.Duration, logger utils.Log) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram notifier authorized: @%s", bot.Self.UserName)
	return newNotifier(bot, chatID, minInterval, logger), nil
}

func newNotifier(api sender, chatID int64, minInterval time.Duration, logger utils.Log) *Notifier {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &Notifier{
		api:     api,
		chatID:  chatID,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// StorageFallback уведомляет о переходе на локальное хранилище
func (n *Notifier) StorageFallback(reason string) {
	n.send(fmt.Sprintf("⚠️ State storage degraded to local fallback: %s", reason))
}

// StorageFailing уведомляет о повторяющихся сбоях записи
func (n *Notifier) StorageFailing(operation string, failures int) {
	n.send(fmt.Sprintf("🚨 State operation %s failed %d times in a row", operation, failures))
}

func (n *Notifier) send(text string) {
	if !n.limiter.Allow() {
		n.logger.Debug("Alert suppressed by rate limit: %s", text)
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("Failed to send telegram alert: %v", err)
	}
}
