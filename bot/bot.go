package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"telegram-shout-bot/storage"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

var (
	ErrGetMe          = errors.New("cannot retrieve api user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
	ErrHandlerInit    = errors.New("cannot initialize handler")
)

const (
	chatTypePrivate = "private"
	chatTypeChannel = "channel"

	memberStatusLeft    = "left"
	memberStatusKicked  = "kicked"
	memberStatusCreator = "creator"
)

type Options struct {
	// Emojis maps a removal result to the reaction acknowledging it.
	Emojis     map[bool]string
	IgnoreBots bool
}

// telegramAPI is the part of the Bot API the handlers call.
type telegramAPI interface {
	SendMessage(params *telego.SendMessageParams) (*telego.Message, error)
	SetMessageReaction(params *telego.SetMessageReactionParams) error
	GetChatMember(params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

type Bot struct {
	bot         *telego.Bot
	client      telegramAPI
	username    string
	prefs       *storage.Preferences
	archive     *storage.Archive
	coordinator *Coordinator
	opts        Options
	handler     *th.BotHandler
}

func New(token string, prefs *storage.Preferences, archive *storage.Archive, opts Options) (*Bot, error) {
	api, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		slog.Error("bot: Failed to create bot", "error", err)
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:     api,
		client:  api,
		prefs:   prefs,
		archive: archive,
		opts:    opts,
	}
	b.coordinator = NewCoordinator(prefs, archive, b)

	return b, nil
}

// Start begins long polling and handling updates in the background.
func (b *Bot) Start() error {
	botUser, err := b.bot.GetMe()
	if err != nil {
		slog.Error("bot: Cannot retrieve api user", "error", err)
		return ErrGetMe
	}

	slog.Info("bot: Running as", "id", botUser.ID, "username", botUser.Username)
	b.username = botUser.Username

	updates, err := b.bot.UpdatesViaLongPolling(&telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "edited_message", "my_chat_member"},
	})
	if err != nil {
		slog.Error("bot: Cannot get update channel", "error", err)
		return ErrUpdatesChannel
	}

	bh, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		slog.Error("bot: Cannot initialize bot handler", "error", err)
		return ErrHandlerInit
	}
	b.handler = bh

	bh.Use(b.updateMiddleware)

	bh.HandleMessage(b.toggleHandler, commandEqual(b.username, "toggle"))
	bh.HandleMessage(b.toggleGroupHandler, commandEqual(b.username, "togglegroup"))
	bh.HandleMessage(b.enableHandler, commandEqual(b.username, "enable"))
	bh.HandleMessage(b.removeHandler, commandEqual(b.username, "remove"))
	bh.HandleMessage(b.statsHandler, commandEqual(b.username, "stats"))
	bh.HandleMessage(b.helpHandler, th.Or(commandEqual(b.username, "help"), commandEqual(b.username, "start")))
	bh.HandleMessage(b.shoutHandler, isChatMessage)
	bh.Handle(b.editHandler, isEdit)
	bh.Handle(b.membershipHandler, isMembershipChange)

	go bh.Start()

	return nil
}

// Stop stops polling and waits for running handlers.
func (b *Bot) Stop() {
	b.bot.StopLongPolling()
	if b.handler != nil {
		b.handler.Stop()
	}
}

// Reply implements Replier for the coordinator.
func (b *Bot) Reply(_ context.Context, chatID int64, text string) error {
	return b.sendMessage(chatID, text)
}

func (b *Bot) shoutHandler(_ *telego.Bot, message telego.Message) {
	msg, ok := incomingFromMessage(message)
	if !ok {
		return
	}

	res, err := b.coordinator.HandleMessage(context.Background(), msg)
	if err != nil {
		slog.Error("bot: Failed to handle message", "error", err,
			"chat_id", message.Chat.ID, "message_id", message.MessageID)
		return
	}

	slog.Debug("bot: Message handled", "chat_id", message.Chat.ID, "message_id", message.MessageID,
		"outcome", res.Outcome.String(), "recalled", res.Recalled)
}

func (b *Bot) editHandler(_ *telego.Bot, update telego.Update) {
	message := update.EditedMessage
	ref := storage.MessageRef{ChatID: message.Chat.ID, MessageID: message.MessageID}
	text, entities := messageContent(*message)

	out, err := b.coordinator.HandleEdit(context.Background(), ref, text, sanitize(text, entities))
	if err != nil {
		slog.Error("bot: Failed to handle edit", "error", err,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return
	}

	slog.Debug("bot: Edit handled", "chat_id", ref.ChatID, "message_id", ref.MessageID, "outcome", out)
}

// membershipHandler forgets a chat's shouts once the bot is removed from it
// or blocked in a private chat.
func (b *Bot) membershipHandler(_ *telego.Bot, update telego.Update) {
	change := update.MyChatMember
	status := change.NewChatMember.MemberStatus()
	if status != memberStatusLeft && status != memberStatusKicked {
		return
	}

	slog.Info("bot: Removed from chat", "chat_id", change.Chat.ID, "status", status)
	if err := b.coordinator.HandleOwnerRemoved(context.Background(), change.Chat.ID); err != nil {
		slog.Error("bot: Failed to forget removed chat", "error", err, "chat_id", change.Chat.ID)
	}
}

// incomingFromMessage converts a Telegram message; ok is false for messages
// the pipeline never looks at.
func incomingFromMessage(message telego.Message) (Incoming, bool) {
	if message.From == nil || message.Chat.Type == chatTypeChannel {
		return Incoming{}, false
	}

	text, entities := messageContent(message)
	if text == "" || isCommand(text) {
		return Incoming{}, false
	}

	msg := Incoming{
		Ref:      storage.MessageRef{ChatID: message.Chat.ID, MessageID: message.MessageID},
		AuthorID: message.From.ID,
		Text:     text,
		Clean:    sanitize(text, entities),
	}
	if message.Chat.Type != chatTypePrivate {
		groupID := message.Chat.ID
		msg.GroupID = &groupID
	}

	return msg, true
}

// messageContent returns the text of a message, or the caption of a media message.
func messageContent(message telego.Message) (string, []telego.MessageEntity) {
	if message.Text != "" {
		return message.Text, message.Entities
	}
	return message.Caption, message.CaptionEntities
}

func isCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// commandEqual matches "/name" and "/name@username"; commands addressed to
// another bot are left alone.
func commandEqual(username, name string) th.Predicate {
	return func(update telego.Update) bool {
		if update.Message == nil {
			return false
		}

		matches := th.CommandRegexp.FindStringSubmatch(update.Message.Text)
		if len(matches) != th.CommandMatchGroupsLen {
			return false
		}
		if !strings.EqualFold(matches[th.CommandMatchCmdGroup], name) {
			return false
		}

		addressee := strings.TrimPrefix(matches[th.CommandMatchBotUsernameGroup], "@")
		return addressee == "" || strings.EqualFold(addressee, username)
	}
}

func isChatMessage(update telego.Update) bool {
	return update.Message != nil
}

func isEdit(update telego.Update) bool {
	return update.EditedMessage != nil
}

func isMembershipChange(update telego.Update) bool {
	return update.MyChatMember != nil
}
