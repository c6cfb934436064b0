package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

func (b *Bot) sendMessage(chatID int64, text string) error {
	message := tu.Message(tu.ID(chatID), text)

	_, err := b.client.SendMessage(message)
	if err != nil {
		// Check if it's a rate limit error
		if retryAfter := parseRetryAfter(err); retryAfter > 0 {
			slog.Debug("bot: API error", "error", err.Error())
			slog.Info("bot: Rate limit hit, waiting", "seconds", retryAfter)
			time.Sleep(time.Duration(retryAfter) * time.Second)
			_, err = b.client.SendMessage(message)
			if err == nil {
				slog.Info("bot: Message sent successfully after rate limit wait")
			}
		}
		if err != nil {
			slog.Error("bot: Failed to send message", "error", err, "chat_id", chatID, "text_length", len(text))
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	}

	slog.Debug("bot: Message sent successfully", "chat_id", chatID)
	return nil
}

// parseRetryAfter extracts the wait time from a "Too Many Requests" error, or returns 0.
// Format: "telego: sendMessage(): api: 429 "Too Many Requests: retry after 5", migrate to chat ID: 0, retry after: 5"
func parseRetryAfter(err error) int {
	if !strings.Contains(err.Error(), "Too Many Requests") {
		return 0
	}

	parts := strings.Split(err.Error(), "retry after: ")
	if len(parts) != 2 {
		return 0
	}

	var retryAfter int
	if _, scanErr := fmt.Sscanf(parts[1], "%d", &retryAfter); scanErr != nil {
		return 0
	}
	return retryAfter
}

// react puts a single emoji reaction on a message.
func (b *Bot) react(chatID int64, messageID int, emoji string) {
	err := b.client.SetMessageReaction(&telego.SetMessageReactionParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Reaction:  []telego.ReactionType{&telego.ReactionTypeEmoji{Type: "emoji", Emoji: emoji}},
	})
	if err != nil {
		slog.Error("bot: Failed to set reaction", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

// canManageMessages reports whether the user may remove other people's shouts
// and change group settings.
func (b *Bot) canManageMessages(chatID, userID int64) (bool, error) {
	member, err := b.client.GetChatMember(&telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		slog.Error("bot: Failed to get chat member", "error", err, "chat_id", chatID, "user_id", userID)
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}

	return canDeleteMessages(member), nil
}

// canDeleteMessages is true for the chat creator and for administrators
// holding the delete messages right.
func canDeleteMessages(member telego.ChatMember) bool {
	switch m := member.(type) {
	case *telego.ChatMemberAdministrator:
		return m.CanDeleteMessages
	case nil:
		return false
	default:
		return m.MemberStatus() == memberStatusCreator
	}
}
