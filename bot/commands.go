package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"telegram-shout-bot/storage"

	"github.com/mymmrac/telego"
)

const helpText = "I COLLECT SHOUTS AND SOMETIMES SHOUT BACK.\n\n" +
	"/toggle - opt yourself in or out, in every chat\n" +
	"/togglegroup - switch this group between opt-out and opt-in mode (admins)\n" +
	"/enable - put this group in opt-out mode (admins)\n" +
	"/remove - reply to a shout to make me forget it, or pass message ids (admins)\n" +
	"/stats - how many shouts I know from this chat"

// toggleHandler flips the author's global opt-in state.
func (b *Bot) toggleHandler(_ *telego.Bot, message telego.Message) {
	if message.From == nil {
		return
	}

	var groupID *int64
	if message.Chat.Type != chatTypePrivate {
		groupID = &message.Chat.ID
	}

	state, err := b.prefs.ToggleUser(context.Background(), message.From.ID, groupID)
	if err != nil {
		b.sendError(message.Chat.ID)
		return
	}

	action := "OUT OF"
	if state {
		action = "IN TO"
	}
	slog.Info("bot: User toggled", "user_id", message.From.ID, "state", state)
	_ = b.sendMessage(message.Chat.ID, fmt.Sprintf("OPTED %s THE SHOUT AUTO RESPONSE.", action))
}

// toggleGroupHandler switches the group between opt-out and opt-in mode.
func (b *Bot) toggleGroupHandler(_ *telego.Bot, message telego.Message) {
	if !b.requireGroupAdmin(message) {
		return
	}

	state, err := b.prefs.ToggleGroup(context.Background(), message.Chat.ID)
	if err != nil {
		b.sendError(message.Chat.ID)
		return
	}

	slog.Info("bot: Group toggled", "chat_id", message.Chat.ID, "state", state)
	_ = b.sendMessage(message.Chat.ID, fmt.Sprintf("SHOUT AUTO RESPONSE IS NOW %s FOR THIS CHAT.", modeName(state)))
}

func (b *Bot) enableHandler(_ *telego.Bot, message telego.Message) {
	if !b.requireGroupAdmin(message) {
		return
	}

	if err := b.prefs.SetGroup(context.Background(), message.Chat.ID, true); err != nil {
		b.sendError(message.Chat.ID)
		return
	}

	slog.Info("bot: Group enabled", "chat_id", message.Chat.ID)
	_ = b.sendMessage(message.Chat.ID, "SHOUT AUTO RESPONSE IS NOW OPT-OUT FOR THIS CHAT.")
}

// removeHandler forgets the replied-to shout, or every listed message id.
func (b *Bot) removeHandler(_ *telego.Bot, message telego.Message) {
	if message.From == nil {
		return
	}

	ids, err := parseMessageIDs(commandArgs(message.Text))
	if err != nil {
		_ = b.sendMessage(message.Chat.ID, "THOSE AREN'T MESSAGE IDS.")
		return
	}
	if len(ids) > 0 {
		b.removeMany(message, ids)
		return
	}

	target := message.ReplyToMessage
	if target == nil {
		_ = b.sendMessage(message.Chat.ID, "REPLY TO THE SHOUT YOU WANT ME TO FORGET.")
		return
	}

	allowed := target.From != nil && target.From.ID == message.From.ID
	if !allowed && message.Chat.Type != chatTypePrivate {
		allowed, err = b.canManageMessages(message.Chat.ID, message.From.ID)
		if err != nil {
			b.sendError(message.Chat.ID)
			return
		}
	}
	if !allowed {
		_ = b.sendMessage(message.Chat.ID,
			"YOU DON'T HAVE PERMISSION TO DELETE THAT SHOUT BECAUSE YOU DON'T HAVE PERMISSION TO DELETE THAT MESSAGE")
		return
	}

	found, err := b.coordinator.HandleDelete(context.Background(), storage.MessageRef{
		ChatID:    message.Chat.ID,
		MessageID: target.MessageID,
	})
	if err != nil {
		b.sendError(message.Chat.ID)
		return
	}
	if !found {
		b.react(message.Chat.ID, message.MessageID, b.opts.Emojis[false])
		_ = b.sendMessage(message.Chat.ID, "THAT MESSAGE IS NOT A SHOUT THAT I KNOW ABOUT")
		return
	}

	b.react(message.Chat.ID, message.MessageID, b.opts.Emojis[true])
}

func (b *Bot) removeMany(message telego.Message, ids []int) {
	if !b.requireGroupAdmin(message) {
		return
	}

	refs := make([]storage.MessageRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, storage.MessageRef{ChatID: message.Chat.ID, MessageID: id})
	}

	if err := b.coordinator.HandleBulkDelete(context.Background(), refs); err != nil {
		b.react(message.Chat.ID, message.MessageID, b.opts.Emojis[false])
		b.sendError(message.Chat.ID)
		return
	}

	slog.Info("bot: Shouts removed", "chat_id", message.Chat.ID, "count", len(refs))
	b.react(message.Chat.ID, message.MessageID, b.opts.Emojis[true])
}

func (b *Bot) statsHandler(_ *telego.Bot, message telego.Message) {
	owner := message.Chat.ID
	if message.Chat.Type == chatTypePrivate && message.From != nil {
		owner = message.From.ID
	}

	count, err := b.archive.Count(context.Background(), owner)
	if err != nil {
		b.sendError(message.Chat.ID)
		return
	}

	_ = b.sendMessage(message.Chat.ID, fmt.Sprintf("I KNOW %d SHOUTS FROM HERE.", count))
}

func (b *Bot) helpHandler(_ *telego.Bot, message telego.Message) {
	_ = b.sendMessage(message.Chat.ID, helpText)
}

// requireGroupAdmin answers the author and returns false unless the message
// comes from the group creator or an administrator allowed to delete messages.
func (b *Bot) requireGroupAdmin(message telego.Message) bool {
	if message.Chat.Type == chatTypePrivate {
		_ = b.sendMessage(message.Chat.ID, "THAT ONLY WORKS IN GROUPS.")
		return false
	}
	if message.From == nil {
		return false
	}

	admin, err := b.canManageMessages(message.Chat.ID, message.From.ID)
	if err != nil {
		b.sendError(message.Chat.ID)
		return false
	}
	if !admin {
		_ = b.sendMessage(message.Chat.ID, "ONLY GROUP ADMINS WHO CAN DELETE MESSAGES CAN DO THAT.")
		return false
	}

	return true
}

func (b *Bot) sendError(chatID int64) {
	_ = b.sendMessage(chatID, "SOMETHING WENT WRONG. TRY AGAIN LATER.")
}

func modeName(state bool) string {
	if state {
		return "OPT-OUT"
	}
	return "OPT-IN"
}

// commandArgs returns everything after the command word.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

func parseMessageIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid message id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
