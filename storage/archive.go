package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archive stores shouts encrypted at rest.
type Archive struct {
	storage *Storage
	db      *gorm.DB
	cipher  *Cipher
	// int63n draws the offset of a random shout; swapped out in tests
	int63n func(int64) int64
}

func NewArchive(s *Storage, c *Cipher) *Archive {
	return &Archive{
		storage: s,
		db:      s.db,
		cipher:  c,
		int63n:  rand.Int63n,
	}
}

// Save archives a shout. Saving an already archived message keeps the first content
// and reports false.
func (a *Archive) Save(ctx context.Context, ref MessageRef, owner int64, content string) (bool, error) {
	sealed, err := a.cipher.Seal(content)
	if err != nil {
		return false, err
	}

	result := a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&Shout{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		GuildOrUser: owner,
		Content:     sealed,
	})
	if result.Error != nil {
		slog.Error("storage: Failed to save shout", "error", result.Error,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return false, fmt.Errorf("%w: failed to save shout: %w", ErrStorage, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Update replaces the content of an archived shout. It reports false when
// the message was never archived.
func (a *Archive) Update(ctx context.Context, ref MessageRef, content string) (bool, error) {
	sealed, err := a.cipher.Seal(content)
	if err != nil {
		return false, err
	}

	result := a.db.WithContext(ctx).Model(&Shout{}).
		Where("chat_id = ? AND message = ?", ref.ChatID, ref.MessageID).
		Update("content", sealed)
	if result.Error != nil {
		slog.Error("storage: Failed to update shout", "error", result.Error,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return false, fmt.Errorf("%w: failed to update shout: %w", ErrStorage, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Delete removes a shout and returns how many rows went away (0 or 1).
func (a *Archive) Delete(ctx context.Context, ref MessageRef) (int64, error) {
	result := a.db.WithContext(ctx).
		Where("chat_id = ? AND message = ?", ref.ChatID, ref.MessageID).
		Delete(&Shout{})
	if result.Error != nil {
		slog.Error("storage: Failed to delete shout", "error", result.Error,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return 0, fmt.Errorf("%w: failed to delete shout: %w", ErrStorage, result.Error)
	}

	return result.RowsAffected, nil
}

// DeleteMany removes every listed shout in one transaction.
func (a *Archive) DeleteMany(ctx context.Context, refs []MessageRef) error {
	if len(refs) == 0 {
		return nil
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ref := range refs {
			err := tx.Where("chat_id = ? AND message = ?", ref.ChatID, ref.MessageID).
				Delete(&Shout{}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("storage: Failed to delete shouts", "error", err, "count", len(refs))
		return fmt.Errorf("%w: failed to delete shouts: %w", ErrStorage, err)
	}

	return nil
}

// DeleteByOwner removes every shout of a group or private chat user.
func (a *Archive) DeleteByOwner(ctx context.Context, owner int64) (int64, error) {
	result := a.db.WithContext(ctx).Where("guild_or_user = ?", owner).Delete(&Shout{})
	if result.Error != nil {
		slog.Error("storage: Failed to delete shouts by owner", "error", result.Error, "owner", owner)
		return 0, fmt.Errorf("%w: failed to delete shouts by owner: %w", ErrStorage, result.Error)
	}

	return result.RowsAffected, nil
}

// Get returns the decrypted content of one shout; found is false if it isn't archived.
func (a *Archive) Get(ctx context.Context, ref MessageRef) (content string, found bool, err error) {
	var shouts []Shout
	result := a.db.WithContext(ctx).
		Where("chat_id = ? AND message = ?", ref.ChatID, ref.MessageID).
		Limit(1).Find(&shouts)
	if result.Error != nil {
		slog.Error("storage: Failed to get shout", "error", result.Error,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return "", false, fmt.Errorf("%w: failed to get shout: %w", ErrStorage, result.Error)
	}
	if len(shouts) == 0 {
		return "", false, nil
	}

	content, err = a.cipher.Open(shouts[0].Content)
	if err != nil {
		slog.Error("storage: Failed to decrypt shout", "error", err,
			"chat_id", ref.ChatID, "message_id", ref.MessageID)
		return "", false, err
	}

	return content, true, nil
}

// Random picks one of the owner's shouts uniformly; found is false if the owner has none.
func (a *Archive) Random(ctx context.Context, owner int64) (content string, found bool, err error) {
	var shouts []Shout
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Shout{}).Where("guild_or_user = ?", owner).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return nil
		}

		return tx.Where("guild_or_user = ?", owner).
			Order("chat_id").Order("message").
			Offset(int(a.int63n(count))).Limit(1).
			Find(&shouts).Error
	}, a.storage.snapshot())
	if err != nil {
		slog.Error("storage: Failed to get random shout", "error", err, "owner", owner)
		return "", false, fmt.Errorf("%w: failed to get random shout: %w", ErrStorage, err)
	}
	if len(shouts) == 0 {
		return "", false, nil
	}

	content, err = a.cipher.Open(shouts[0].Content)
	if err != nil {
		slog.Error("storage: Failed to decrypt shout", "error", err, "owner", owner)
		return "", false, err
	}

	return content, true, nil
}

// Count returns how many shouts the owner has archived.
func (a *Archive) Count(ctx context.Context, owner int64) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&Shout{}).Where("guild_or_user = ?", owner).Count(&count).Error; err != nil {
		slog.Error("storage: Failed to count shouts", "error", err, "owner", owner)
		return 0, fmt.Errorf("%w: failed to count shouts: %w", ErrStorage, err)
	}
	return count, nil
}
