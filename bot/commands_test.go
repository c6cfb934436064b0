package bot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telegram-shout-bot/storage"
)

const (
	testGroup  int64 = -1001
	testAuthor int64 = 7
	testOther  int64 = 8

	okEmoji   = "👍"
	failEmoji = "👎"
)

func newTestBot(t *testing.T) (*Bot, *TelegramAPIMock) {
	t.Helper()

	store, err := storage.New(storage.DriverSQLite, filepath.Join(t.TempDir(), "bot.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cipher, err := storage.NewCipher("test key")
	require.NoError(t, err)

	api := &TelegramAPIMock{}
	b := &Bot{
		client:   api,
		username: "shoutbot",
		prefs:    storage.NewPreferences(store),
		archive:  storage.NewArchive(store, cipher),
		opts:     Options{Emojis: map[bool]string{true: okEmoji, false: failEmoji}},
	}
	b.coordinator = NewCoordinator(b.prefs, b.archive, b)

	return b, api
}

func sentText(chatID int64, text string) any {
	return mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return p.ChatID.ID == chatID && p.Text == text
	})
}

func reactedWith(messageID int, emoji string) any {
	return mock.MatchedBy(func(p *telego.SetMessageReactionParams) bool {
		if p.MessageID != messageID || len(p.Reaction) != 1 {
			return false
		}
		r, ok := p.Reaction[0].(*telego.ReactionTypeEmoji)
		return ok && r.Emoji == emoji
	})
}

func memberLookup(chatID, userID int64) any {
	return mock.MatchedBy(func(p *telego.GetChatMemberParams) bool {
		return p.ChatID.ID == chatID && p.UserID == userID
	})
}

func groupCommand(from int64, text string) telego.Message {
	return telego.Message{
		MessageID: 100,
		Chat:      telego.Chat{ID: testGroup, Type: "supergroup"},
		From:      &telego.User{ID: from},
		Text:      text,
	}
}

func archiveShout(t *testing.T, b *Bot, messageID int) storage.MessageRef {
	t.Helper()

	ref := storage.MessageRef{ChatID: testGroup, MessageID: messageID}
	saved, err := b.archive.Save(context.Background(), ref, testGroup, "ARCHIVED SHOUT")
	require.NoError(t, err)
	require.True(t, saved)
	return ref
}

func archived(t *testing.T, b *Bot, ref storage.MessageRef) bool {
	t.Helper()

	_, found, err := b.archive.Get(context.Background(), ref)
	require.NoError(t, err)
	return found
}

var (
	plainMember   = &telego.ChatMemberMember{Status: "member"}
	limitedAdmin  = &telego.ChatMemberAdministrator{Status: "administrator"}
	deletingAdmin = &telego.ChatMemberAdministrator{Status: "administrator", CanDeleteMessages: true}
	groupCreator  = &telego.ChatMemberOwner{Status: memberStatusCreator}
)

func TestCanDeleteMessages(t *testing.T) {
	assert.False(t, canDeleteMessages(plainMember))
	assert.False(t, canDeleteMessages(limitedAdmin))
	assert.True(t, canDeleteMessages(deletingAdmin))
	assert.True(t, canDeleteMessages(groupCreator))
	assert.False(t, canDeleteMessages(&telego.ChatMemberLeft{Status: memberStatusLeft}))
	assert.False(t, canDeleteMessages(nil))
}

func TestToggleInPrivateChat(t *testing.T) {
	b, api := newTestBot(t)
	api.On("SendMessage", sentText(testAuthor, "OPTED IN TO THE SHOUT AUTO RESPONSE.")).Return(&telego.Message{}, nil).Once()

	b.toggleHandler(nil, telego.Message{
		MessageID: 1,
		Chat:      telego.Chat{ID: testAuthor, Type: chatTypePrivate},
		From:      &telego.User{ID: testAuthor},
		Text:      "/toggle",
	})

	api.AssertExpectations(t)
	api.AssertNotCalled(t, "GetChatMember", mock.Anything)

	state, found, err := b.prefs.UserState(context.Background(), testAuthor)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, state)
}

func TestToggleGroupPermissions(t *testing.T) {
	tests := []struct {
		name    string
		member  telego.ChatMember
		allowed bool
	}{
		{name: "plain member", member: plainMember},
		{name: "admin without delete right", member: limitedAdmin},
		{name: "admin with delete right", member: deletingAdmin, allowed: true},
		{name: "creator", member: groupCreator, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api := newTestBot(t)
			api.On("GetChatMember", memberLookup(testGroup, testAuthor)).Return(tt.member, nil).Once()

			reply := "ONLY GROUP ADMINS WHO CAN DELETE MESSAGES CAN DO THAT."
			if tt.allowed {
				reply = "SHOUT AUTO RESPONSE IS NOW OPT-OUT FOR THIS CHAT."
			}
			api.On("SendMessage", sentText(testGroup, reply)).Return(&telego.Message{}, nil).Once()

			b.toggleGroupHandler(nil, groupCommand(testAuthor, "/togglegroup"))

			api.AssertExpectations(t)

			state, found, err := b.prefs.GroupState(context.Background(), testGroup)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, found)
			assert.Equal(t, tt.allowed, state)
		})
	}
}

func TestToggleGroupInPrivateChat(t *testing.T) {
	b, api := newTestBot(t)
	api.On("SendMessage", sentText(testAuthor, "THAT ONLY WORKS IN GROUPS.")).Return(&telego.Message{}, nil).Once()

	b.toggleGroupHandler(nil, telego.Message{
		Chat: telego.Chat{ID: testAuthor, Type: chatTypePrivate},
		From: &telego.User{ID: testAuthor},
		Text: "/togglegroup",
	})

	api.AssertExpectations(t)
	api.AssertNotCalled(t, "GetChatMember", mock.Anything)
}

func TestEnableMemberLookupFails(t *testing.T) {
	b, api := newTestBot(t)
	api.On("GetChatMember", memberLookup(testGroup, testAuthor)).Return(nil, errors.New("api: 400 Bad Request")).Once()
	api.On("SendMessage", sentText(testGroup, "SOMETHING WENT WRONG. TRY AGAIN LATER.")).Return(&telego.Message{}, nil).Once()

	b.enableHandler(nil, groupCommand(testAuthor, "/enable"))

	api.AssertExpectations(t)

	_, found, err := b.prefs.GroupState(context.Background(), testGroup)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEnableByCreator(t *testing.T) {
	b, api := newTestBot(t)
	api.On("GetChatMember", memberLookup(testGroup, testAuthor)).Return(groupCreator, nil).Once()
	api.On("SendMessage", sentText(testGroup, "SHOUT AUTO RESPONSE IS NOW OPT-OUT FOR THIS CHAT.")).Return(&telego.Message{}, nil).Once()

	b.enableHandler(nil, groupCommand(testAuthor, "/enable"))

	api.AssertExpectations(t)

	state, found, err := b.prefs.GroupState(context.Background(), testGroup)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, state)
}

func TestRemoveOwnShout(t *testing.T) {
	b, api := newTestBot(t)
	ref := archiveShout(t, b, 5)
	api.On("SetMessageReaction", reactedWith(100, okEmoji)).Return(nil).Once()

	message := groupCommand(testAuthor, "/remove")
	message.ReplyToMessage = &telego.Message{MessageID: 5, From: &telego.User{ID: testAuthor}}
	b.removeHandler(nil, message)

	api.AssertExpectations(t)
	api.AssertNotCalled(t, "GetChatMember", mock.Anything)
	assert.False(t, archived(t, b, ref))
}

func TestRemoveSomeoneElsesShout(t *testing.T) {
	tests := []struct {
		name    string
		member  telego.ChatMember
		allowed bool
	}{
		{name: "plain member", member: plainMember},
		{name: "admin without delete right", member: limitedAdmin},
		{name: "admin with delete right", member: deletingAdmin, allowed: true},
		{name: "creator", member: groupCreator, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api := newTestBot(t)
			ref := archiveShout(t, b, 5)
			api.On("GetChatMember", memberLookup(testGroup, testOther)).Return(tt.member, nil).Once()
			if tt.allowed {
				api.On("SetMessageReaction", reactedWith(100, okEmoji)).Return(nil).Once()
			} else {
				api.On("SendMessage", mock.MatchedBy(func(p *telego.SendMessageParams) bool {
					return p.ChatID.ID == testGroup && p.Text ==
						"YOU DON'T HAVE PERMISSION TO DELETE THAT SHOUT BECAUSE YOU DON'T HAVE PERMISSION TO DELETE THAT MESSAGE"
				})).Return(&telego.Message{}, nil).Once()
			}

			message := groupCommand(testOther, "/remove")
			message.ReplyToMessage = &telego.Message{MessageID: 5, From: &telego.User{ID: testAuthor}}
			b.removeHandler(nil, message)

			api.AssertExpectations(t)
			assert.Equal(t, !tt.allowed, archived(t, b, ref))
		})
	}
}

func TestRemoveUnknownMessage(t *testing.T) {
	b, api := newTestBot(t)
	api.On("SetMessageReaction", reactedWith(100, failEmoji)).Return(nil).Once()
	api.On("SendMessage", sentText(testGroup, "THAT MESSAGE IS NOT A SHOUT THAT I KNOW ABOUT")).Return(&telego.Message{}, nil).Once()

	message := groupCommand(testAuthor, "/remove")
	message.ReplyToMessage = &telego.Message{MessageID: 42, From: &telego.User{ID: testAuthor}}
	b.removeHandler(nil, message)

	api.AssertExpectations(t)
}

func TestRemoveWithoutReply(t *testing.T) {
	b, api := newTestBot(t)
	api.On("SendMessage", sentText(testGroup, "REPLY TO THE SHOUT YOU WANT ME TO FORGET.")).Return(&telego.Message{}, nil).Once()

	b.removeHandler(nil, groupCommand(testAuthor, "/remove"))

	api.AssertExpectations(t)
}

func TestRemoveByIDs(t *testing.T) {
	t.Run("admin with delete right", func(t *testing.T) {
		b, api := newTestBot(t)
		first, second := archiveShout(t, b, 10), archiveShout(t, b, 11)
		kept := archiveShout(t, b, 12)
		api.On("GetChatMember", memberLookup(testGroup, testAuthor)).Return(deletingAdmin, nil).Once()
		api.On("SetMessageReaction", reactedWith(100, okEmoji)).Return(nil).Once()

		b.removeHandler(nil, groupCommand(testAuthor, "/remove 10 11"))

		api.AssertExpectations(t)
		assert.False(t, archived(t, b, first))
		assert.False(t, archived(t, b, second))
		assert.True(t, archived(t, b, kept))
	})

	t.Run("admin without delete right", func(t *testing.T) {
		b, api := newTestBot(t)
		ref := archiveShout(t, b, 10)
		api.On("GetChatMember", memberLookup(testGroup, testAuthor)).Return(limitedAdmin, nil).Once()
		api.On("SendMessage", sentText(testGroup, "ONLY GROUP ADMINS WHO CAN DELETE MESSAGES CAN DO THAT.")).Return(&telego.Message{}, nil).Once()

		b.removeHandler(nil, groupCommand(testAuthor, "/remove 10"))

		api.AssertExpectations(t)
		assert.True(t, archived(t, b, ref))
	})
}

func TestSendMessageFailureIsReported(t *testing.T) {
	b, api := newTestBot(t)
	api.On("SendMessage", sentText(testGroup, helpText)).Return(nil, errors.New("api: 403 Forbidden")).Once()

	err := b.sendMessage(testGroup, helpText)

	assert.Error(t, err)
	api.AssertExpectations(t)
}
