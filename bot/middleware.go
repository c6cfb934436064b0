package bot

import (
	"log/slog"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegohandler"
)

// updateMiddleware counts updates and drops messages written by other bots.
func (b *Bot) updateMiddleware(bot *telego.Bot, update telego.Update, next telegohandler.Handler) {
	updatesTotal.WithLabelValues(updateKind(update)).Inc()

	if b.opts.IgnoreBots && fromBot(update) {
		slog.Debug("bot: Ignoring update from a bot", "update_id", update.UpdateID)
		return
	}

	next(bot, update)
}

func updateKind(update telego.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.MyChatMember != nil:
		return "my_chat_member"
	default:
		return "other"
	}
}

func fromBot(update telego.Update) bool {
	var message *telego.Message
	switch {
	case update.Message != nil:
		message = update.Message
	case update.EditedMessage != nil:
		message = update.EditedMessage
	default:
		return false
	}

	return message.From != nil && message.From.IsBot
}
