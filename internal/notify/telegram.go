package notify

import (
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"travelfolio/internal/types"
	"travelfolio/lib/helpers"
	"travelfolio/lib/translation"
)

// TelegramConfig configures the optional Telegram channel. A missing token
// disables it.
type TelegramConfig struct {
	Token  string
	ChatID int64
	Debug  bool
}

// Telegram pushes triggered alerts to a single chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(c TelegramConfig) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}
	bot.Debug = c.Debug
	return &Telegram{bot: bot, chatID: c.ChatID}, nil
}

func (t *Telegram) Notify(ev types.AlertEvent) error {
	msg := tgbotapi.NewMessage(t.chatID, triggerMessage(ev))
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := t.bot.Send(msg)
	return errors.Wrapf(err, "could not send alert %s notification", ev.ID)
}

// triggerMessage builds the MarkdownV2 notification text.
func triggerMessage(ev types.AlertEvent) string {
	route := ev.Dest
	if ev.Origin != "" {
		route = ev.Origin + " → " + ev.Dest
	}

	text := "🚨 *" + translation.Translate("Price Alert Triggered") + "*\n\n" +
		"*" + helpers.EscapeMarkdownV2(route) + "*"
	if ev.Date != "" {
		when := ev.Date
		if d, err := time.Parse("2006-01-02", ev.Date); err == nil {
			when = ev.Date + ", " + humanize.Time(d)
		}
		text += " \\(" + helpers.EscapeMarkdownV2(when) + "\\)"
	}
	text += "\n" +
		translation.Translate("Current fare") + ": *€" + helpers.FormatFare(ev.CurrentPrice, true) + "*\n" +
		translation.Translate("Target") + ": *€" + helpers.FormatFare(ev.TargetPrice, true) + "*"
	return text
}
