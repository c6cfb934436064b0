package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope picks one of the two preference tables.
type Scope int

const (
	GroupScope Scope = iota
	UserScope
)

func (s Scope) String() string {
	if s == GroupScope {
		return "group"
	}
	return "user"
}

// row builds a record for the scope's table.
func (s Scope) row(id int64, state bool) any {
	if s == GroupScope {
		return &GuildOpt{ID: id, State: state}
	}
	return &UserOpt{ID: id, State: state}
}

// negated is the update applied when a row already exists.
func (s Scope) negated() clause.Expr {
	if s == GroupScope {
		return gorm.Expr("NOT guild_opt.state")
	}
	return gorm.Expr("NOT user_opt.state")
}

// Preferences resolves whether the bot may respond to and archive a user in a group.
type Preferences struct {
	db *gorm.DB
}

func NewPreferences(s *Storage) *Preferences {
	return &Preferences{db: s.db}
}

// ToggleUser flips the user's global override and returns the new value.
// Without an override yet, the user gets the opposite of the group's explicit mode,
// or true when the group has none or there is no group.
func (p *Preferences) ToggleUser(ctx context.Context, userID int64, groupID *int64) (bool, error) {
	var state bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		initial := true
		if groupID != nil {
			groupState, found, err := getState(tx, GroupScope, *groupID)
			if err != nil {
				return err
			}
			if found {
				initial = !groupState
			}
		}

		var err error
		state, err = toggleState(tx, UserScope, userID, initial)
		return err
	})
	if err != nil {
		slog.Error("storage: Failed to toggle user state", "error", err, "user_id", userID)
		return false, fmt.Errorf("%w: failed to toggle user state: %w", ErrStorage, err)
	}

	return state, nil
}

// ToggleGroup flips the group's mode. A group without a row starts in opt-out mode,
// and that first insert is the result.
func (p *Preferences) ToggleGroup(ctx context.Context, groupID int64) (bool, error) {
	var state bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		state, err = toggleState(tx, GroupScope, groupID, true)
		return err
	})
	if err != nil {
		slog.Error("storage: Failed to toggle group state", "error", err, "group_id", groupID)
		return false, fmt.Errorf("%w: failed to toggle group state: %w", ErrStorage, err)
	}

	return state, nil
}

// SetGroup overwrites the group's mode.
func (p *Preferences) SetGroup(ctx context.Context, groupID int64, state bool) error {
	result := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state"}),
	}).Create(&GuildOpt{ID: groupID, State: state})
	if result.Error != nil {
		slog.Error("storage: Failed to set group state", "error", result.Error, "group_id", groupID)
		return fmt.Errorf("%w: failed to set group state: %w", ErrStorage, result.Error)
	}
	return nil
}

// UserState returns the user's explicit override; found is false when there is none.
func (p *Preferences) UserState(ctx context.Context, userID int64) (state, found bool, err error) {
	state, found, err = getState(p.db.WithContext(ctx), UserScope, userID)
	if err != nil {
		return false, false, fmt.Errorf("%w: failed to get user state: %w", ErrStorage, err)
	}
	return state, found, nil
}

// GroupState returns the group's explicit mode; found is false when there is none.
func (p *Preferences) GroupState(ctx context.Context, groupID int64) (state, found bool, err error) {
	state, found, err = getState(p.db.WithContext(ctx), GroupScope, groupID)
	if err != nil {
		return false, false, fmt.Errorf("%w: failed to get group state: %w", ErrStorage, err)
	}
	return state, found, nil
}

// Resolve reports whether the bot may respond to and archive userID in groupID.
// A nil group means a private chat. The user's override wins, then the group's mode,
// then the default of true.
func (p *Preferences) Resolve(ctx context.Context, groupID *int64, userID int64) (bool, error) {
	state, found, err := p.UserState(ctx, userID)
	if err != nil {
		return false, err
	}
	if found {
		return state, nil
	}

	if groupID == nil {
		return true, nil
	}

	state, found, err = p.GroupState(ctx, *groupID)
	if err != nil {
		return false, err
	}
	if found {
		return state, nil
	}

	return true, nil
}

// toggleState inserts initial or negates the existing value in one statement,
// then reads back the result.
func toggleState(tx *gorm.DB, scope Scope, id int64, initial bool) (bool, error) {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"state": scope.negated()}),
	}).Create(scope.row(id, initial))
	if result.Error != nil {
		return false, result.Error
	}

	state, found, err := getState(tx, scope, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("%s state %d vanished after upsert", scope, id)
	}

	slog.Debug("storage: Toggled state", "scope", scope.String(), "id", id, "state", state)
	return state, nil
}

func getState(tx *gorm.DB, scope Scope, id int64) (state, found bool, err error) {
	var states []bool
	result := tx.Model(scope.row(0, false)).Where("id = ?", id).Limit(1).Pluck("state", &states)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		slog.Error("storage: Failed to get state", "error", result.Error, "scope", scope.String(), "id", id)
		return false, false, result.Error
	}
	if len(states) == 0 {
		return false, false, nil
	}
	return states[0], true, nil
}
