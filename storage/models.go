package storage

// GuildOpt holds a group's mode: true is opt-out (on for everyone by default),
// false is opt-in. No row means opt-out.
type GuildOpt struct {
	ID    int64 `gorm:"primaryKey;autoIncrement:false"`
	State bool  `gorm:"not null"`
}

func (GuildOpt) TableName() string { return "guild_opt" }

// UserOpt is a user's personal override. It applies in every group the user is in.
type UserOpt struct {
	ID    int64 `gorm:"primaryKey;autoIncrement:false"`
	State bool  `gorm:"not null"`
}

func (UserOpt) TableName() string { return "user_opt" }

// Shout is an archived shout. Telegram message ids are only unique inside a chat,
// so the key is the (chat, message) pair.
type Shout struct {
	ChatID      int64  `gorm:"primaryKey;autoIncrement:false"`
	MessageID   int    `gorm:"column:message;primaryKey;autoIncrement:false"`
	GuildOrUser int64  `gorm:"index;not null"`
	Content     []byte `gorm:"not null"`
}

func (Shout) TableName() string { return "shout" }

// MessageRef identifies the upstream message a shout came from.
type MessageRef struct {
	ChatID    int64
	MessageID int
}
