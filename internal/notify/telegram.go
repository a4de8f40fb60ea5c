// Package notify отправляет модераторам оповещения в Telegram:
// о новых местах и наблюдениях, сводку непроверенных наблюдений,
// и принимает команды проверки из чата модераторов.
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/features/nearby"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// DefaultMaxInflight: сколько оповещений может отправляться одновременно.
const DefaultMaxInflight = 16

// API: часть клиента Telegram, которой пользуется пакет.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Moderators шлёт оповещения в чат модераторов. Реализует nearby.Notifier.
type Moderators struct {
	api    API
	chatID int64
	parser *CommandParser

	// ограничитель параллельных отправок
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New подключается к Telegram по токену бота.
func New(token string, chatID int64) (*Moderators, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Telegram: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("Бот модераторов подключён")
	return NewWithAPI(api, chatID, DefaultMaxInflight), nil
}

// NewWithAPI создаёт оповещатель поверх готового клиента.
func NewWithAPI(api API, chatID int64, maxInflight int) *Moderators {
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	return &Moderators{
		api:      api,
		chatID:   chatID,
		parser:   NewCommandParser(),
		inflight: make(chan struct{}, maxInflight),
	}
}

// SpotCreated сообщает о новом месте. Не блокирует запрос.
func (m *Moderators) SpotCreated(_ context.Context, s *nearby.Spot) {
	m.post("spot", spotText(s))
}

// SightingReported сообщает о новом наблюдении. Не блокирует запрос.
func (m *Moderators) SightingReported(_ context.Context, g *nearby.Sighting) {
	m.post("sighting", sightingText(g))
}

// Digest отправляет сводку непроверенных наблюдений. Пустой список не отправляется.
func (m *Moderators) Digest(_ context.Context, pending []*nearby.Sighting) error {
	text := digestText(pending)
	if text == "" {
		return nil
	}
	return m.send("digest", m.chatID, text)
}

// Close дожидается отправки оповещений, которые уже в пути.
func (m *Moderators) Close() {
	m.wg.Wait()
}

// post отправляет оповещение в фоне. При переполнении оповещение теряется:
// данные уже сохранены, а сводка всё равно покажет непроверенное.
func (m *Moderators) post(kind, text string) {
	select {
	case m.inflight <- struct{}{}:
	default:
		metrics.ModeratorAlerts.WithLabelValues(kind, "dropped").Inc()
		log.WithField("kind", kind).Warn("Очередь оповещений переполнена, оповещение пропущено")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() { <-m.inflight }()
		defer recoverFromPanic()
		_ = m.send(kind, m.chatID, text)
	}()
}

func (m *Moderators) send(kind string, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := m.api.Send(msg); err != nil {
		metrics.ModeratorAlerts.WithLabelValues(kind, "error").Inc()
		log.WithError(err).WithFields(log.Fields{"chat_id": chatID, "kind": kind}).Error("Ошибка отправки сообщения")
		return fmt.Errorf("telegram: %w", err)
	}
	metrics.ModeratorAlerts.WithLabelValues(kind, "ok").Inc()
	return nil
}

func recoverFromPanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("Паника при отправке оповещения, восстановлено")
	}
}
