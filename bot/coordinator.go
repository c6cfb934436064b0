package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"telegram-shout-bot/shout"
	"telegram-shout-bot/storage"
)

const (
	// RecallProbability is how often an accepted shout gets a random archived shout back.
	// Answering every time turns into bickering with users.
	RecallProbability = 0.4

	NothingToRecall = "I AIN'T GOT NOTHIN' ON THAT"
)

type Preferences interface {
	Resolve(ctx context.Context, groupID *int64, userID int64) (bool, error)
}

type Archive interface {
	Save(ctx context.Context, ref storage.MessageRef, owner int64, content string) (bool, error)
	Update(ctx context.Context, ref storage.MessageRef, content string) (bool, error)
	Delete(ctx context.Context, ref storage.MessageRef) (int64, error)
	DeleteMany(ctx context.Context, refs []storage.MessageRef) error
	DeleteByOwner(ctx context.Context, owner int64) (int64, error)
	Random(ctx context.Context, owner int64) (string, bool, error)
}

// Replier sends a message to a chat.
type Replier interface {
	Reply(ctx context.Context, chatID int64, text string) error
}

// Incoming is a chat message handed over by the dispatch layer.
type Incoming struct {
	Ref storage.MessageRef
	// GroupID is nil in private chats.
	GroupID  *int64
	AuthorID int64
	Text     string
	// Clean is Text with platform formatting normalized; it is what gets archived.
	Clean string
}

// Owner is the group, or the author in a private chat.
func (m Incoming) Owner() int64 {
	if m.GroupID != nil {
		return *m.GroupID
	}
	return m.AuthorID
}

type Outcome int

const (
	OutcomeNotShout Outcome = iota
	OutcomeDenied
	OutcomeArchived
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotShout:
		return "not_shout"
	case OutcomeDenied:
		return "denied"
	case OutcomeArchived:
		return "archived"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome Outcome
	// Recalled is set when a reply was sent, including the "nothing" fallback.
	Recalled bool
}

type EditOutcome int

const (
	EditUpdated EditOutcome = iota
	EditNotArchived
	EditPurged
)

// Coordinator runs each message through classification, permission,
// recall, and archival.
type Coordinator struct {
	prefs   Preferences
	archive Archive
	replier Replier
	draw    func() float64
}

func NewCoordinator(prefs Preferences, archive Archive, replier Replier) *Coordinator {
	return &Coordinator{
		prefs:   prefs,
		archive: archive,
		replier: replier,
		draw:    rand.Float64,
	}
}

// HandleMessage archives msg if it is a shout its author allows, after maybe
// answering with an older shout. The recall always reads the archive before
// msg is saved so a message never recalls itself.
func (c *Coordinator) HandleMessage(ctx context.Context, msg Incoming) (Result, error) {
	if !shout.IsShout(msg.Text) {
		messagesTotal.WithLabelValues(OutcomeNotShout.String()).Inc()
		return Result{Outcome: OutcomeNotShout}, nil
	}

	allowed, err := c.prefs.Resolve(ctx, msg.GroupID, msg.AuthorID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve preference: %w", err)
	}
	if !allowed {
		slog.Debug("bot: Shout ignored, author opted out", "chat_id", msg.Ref.ChatID, "user_id", msg.AuthorID)
		messagesTotal.WithLabelValues(OutcomeDenied.String()).Inc()
		return Result{Outcome: OutcomeDenied}, nil
	}

	var result Result
	if c.draw() < RecallProbability {
		if err := c.recall(ctx, msg); err != nil {
			return Result{}, err
		}
		result.Recalled = true
	}

	saved, err := c.archive.Save(ctx, msg.Ref, msg.Owner(), msg.Clean)
	if err != nil {
		return Result{}, fmt.Errorf("failed to archive shout: %w", err)
	}
	if saved {
		archiveOpsTotal.WithLabelValues("save").Inc()
	}

	slog.Debug("bot: Shout archived", "chat_id", msg.Ref.ChatID, "message_id", msg.Ref.MessageID, "new", saved)
	messagesTotal.WithLabelValues(OutcomeArchived.String()).Inc()
	result.Outcome = OutcomeArchived
	return result, nil
}

func (c *Coordinator) recall(ctx context.Context, msg Incoming) error {
	text, found, err := c.archive.Random(ctx, msg.Owner())
	if err != nil {
		return fmt.Errorf("failed to recall shout: %w", err)
	}
	if !found {
		text = NothingToRecall
	}
	recallsTotal.WithLabelValues(fmt.Sprint(found)).Inc()

	// the shout is archived even if the reply fails
	if err := c.replier.Reply(ctx, msg.Ref.ChatID, text); err != nil {
		slog.Error("bot: Failed to send recalled shout", "error", err, "chat_id", msg.Ref.ChatID)
	}
	return nil
}

// HandleEdit keeps the archive in line with an edited message. An edit that is
// no longer a shout removes the archived copy.
func (c *Coordinator) HandleEdit(ctx context.Context, ref storage.MessageRef, text, clean string) (EditOutcome, error) {
	if !shout.IsShout(text) {
		n, err := c.archive.Delete(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("failed to purge edited message: %w", err)
		}
		if n > 0 {
			archiveOpsTotal.WithLabelValues("purge").Inc()
		}
		return EditPurged, nil
	}

	updated, err := c.archive.Update(ctx, ref, clean)
	if err != nil {
		return 0, fmt.Errorf("failed to update edited shout: %w", err)
	}
	if !updated {
		return EditNotArchived, nil
	}

	archiveOpsTotal.WithLabelValues("update").Inc()
	return EditUpdated, nil
}

// HandleDelete drops a removed message from the archive and reports whether it was there.
func (c *Coordinator) HandleDelete(ctx context.Context, ref storage.MessageRef) (bool, error) {
	n, err := c.archive.Delete(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("failed to delete shout: %w", err)
	}
	if n > 0 {
		archiveOpsTotal.WithLabelValues("delete").Inc()
	}
	return n > 0, nil
}

func (c *Coordinator) HandleBulkDelete(ctx context.Context, refs []storage.MessageRef) error {
	if err := c.archive.DeleteMany(ctx, refs); err != nil {
		return fmt.Errorf("failed to delete shouts: %w", err)
	}
	archiveOpsTotal.WithLabelValues("bulk_delete").Inc()
	return nil
}

// HandleOwnerRemoved forgets everything archived for a group the bot left,
// or a user who blocked it.
func (c *Coordinator) HandleOwnerRemoved(ctx context.Context, owner int64) error {
	n, err := c.archive.DeleteByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to delete shouts of owner: %w", err)
	}
	slog.Info("bot: Forgot shouts of removed owner", "owner", owner, "count", n)
	archiveOpsTotal.WithLabelValues("owner_removed").Inc()
	return nil
}
