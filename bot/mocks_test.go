package bot

import (
	"context"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"

	"telegram-shout-bot/storage"
)

type PreferencesMock struct {
	mock.Mock
}

func (m *PreferencesMock) Resolve(ctx context.Context, groupID *int64, userID int64) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

type ArchiveMock struct {
	mock.Mock
}

func (m *ArchiveMock) Save(ctx context.Context, ref storage.MessageRef, owner int64, content string) (bool, error) {
	args := m.Called(ctx, ref, owner, content)
	return args.Bool(0), args.Error(1)
}

func (m *ArchiveMock) Update(ctx context.Context, ref storage.MessageRef, content string) (bool, error) {
	args := m.Called(ctx, ref, content)
	return args.Bool(0), args.Error(1)
}

func (m *ArchiveMock) Delete(ctx context.Context, ref storage.MessageRef) (int64, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ArchiveMock) DeleteMany(ctx context.Context, refs []storage.MessageRef) error {
	args := m.Called(ctx, refs)
	return args.Error(0)
}

func (m *ArchiveMock) DeleteByOwner(ctx context.Context, owner int64) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ArchiveMock) Random(ctx context.Context, owner int64) (string, bool, error) {
	args := m.Called(ctx, owner)
	return args.String(0), args.Bool(1), args.Error(2)
}

type ReplierMock struct {
	mock.Mock
}

func (m *ReplierMock) Reply(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

type TelegramAPIMock struct {
	mock.Mock
}

func (m *TelegramAPIMock) SendMessage(params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(params)
	message, _ := args.Get(0).(*telego.Message)
	return message, args.Error(1)
}

func (m *TelegramAPIMock) SetMessageReaction(params *telego.SetMessageReactionParams) error {
	args := m.Called(params)
	return args.Error(0)
}

func (m *TelegramAPIMock) GetChatMember(params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(params)
	member, _ := args.Get(0).(telego.ChatMember)
	return member, args.Error(1)
}
