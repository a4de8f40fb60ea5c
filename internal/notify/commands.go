package notify

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/features/nearby"
)

// pollTimeoutSeconds: таймаут long polling.
const pollTimeoutSeconds = 30

// Moderation: операции, доступные из чата модераторов.
type Moderation interface {
	PendingSightings(ctx context.Context) ([]*nearby.Sighting, error)
	VerifySighting(ctx context.Context, id int64) error
	VerifySpot(ctx context.Context, id int64) error
}

// Listen принимает команды из чата модераторов, пока не отменён ctx.
// Сообщения из других чатов игнорируются.
func (m *Moderators) Listen(ctx context.Context, mod Moderation) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := m.api.GetUpdatesChan(u)

	log.WithField("chat_id", m.chatID).Info("Бот модераторов ожидает команды")
	for {
		select {
		case <-ctx.Done():
			m.api.StopReceivingUpdates()
			log.Info("Бот модераторов остановлен")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			m.handleUpdate(ctx, mod, update)
		}
	}
}

func (m *Moderators) handleUpdate(ctx context.Context, mod Moderation, update tgbotapi.Update) {
	defer recoverFromPanic()

	msg := update.Message
	if !m.fromModerators(msg) {
		return
	}
	cmd, args, ok := m.parser.ParseCommand(msg.Text)
	if !ok {
		return
	}

	log.WithFields(log.Fields{"cmd": cmd, "args": args, "user_id": msg.From.ID}).Debug("Команда модератора")
	reply := m.run(ctx, mod, cmd, args)
	if reply != "" {
		_ = m.send("reply", msg.Chat.ID, reply)
	}
}

// fromModerators пропускает только сообщения людей из чата модераторов.
func (m *Moderators) fromModerators(msg *tgbotapi.Message) bool {
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.Text == "" {
		return false
	}
	if msg.Chat.ID != m.chatID {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   msg.Chat.ID,
			"user_id":   msg.From.ID,
		}).Debug("deny: foreign chat")
		return false
	}
	return !msg.From.IsBot
}

// run выполняет команду и возвращает ответ.
func (m *Moderators) run(ctx context.Context, mod Moderation, cmd string, args []string) string {
	switch cmd {
	case "start", "help":
		return helpText

	case "pending":
		pending, err := mod.PendingSightings(ctx)
		if err != nil {
			log.WithError(err).Error("Не удалось получить непроверенные наблюдения")
			return "Could not load pending sightings, try again later."
		}
		if text := digestText(pending); text != "" {
			return text
		}
		return "No sightings are waiting for verification."

	case "verify_sighting", "verify_spot":
		if len(args) != 1 {
			return "Usage: /" + cmd + " <id>"
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return "The id must be a positive number."
		}
		what, verify := "Sighting", mod.VerifySighting
		if cmd == "verify_spot" {
			what, verify = "Spot", mod.VerifySpot
		}
		switch err := verify(ctx, id); {
		case err == nil:
			return what + " #" + args[0] + " verified ✅"
		case errors.Is(err, common.ErrNotFound):
			return what + " #" + args[0] + " not found."
		default:
			log.WithError(err).WithField("id", id).Error("Ошибка проверки из чата модераторов")
			return "Verification failed, try again later."
		}
	}
	return ""
}

// CommandParser разбирает команды вида /cmd, /cmd@bot или !cmd.
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{validPrefixes: []string{"/", "!"}}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")
	if command == "" {
		return "", nil, false
	}
	return command, parts[1:], true
}
