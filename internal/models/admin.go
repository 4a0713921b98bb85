package models

import (
	"encoding/json"
	"time"
)

// AdminActionKind names an administrative operation.
type AdminActionKind string

const (
	ActionAdminLogin  AdminActionKind = "admin_login"
	ActionBlockUser   AdminActionKind = "block_user"
	ActionUnblockUser AdminActionKind = "unblock_user"
	ActionDeleteUser  AdminActionKind = "delete_user"
	ActionDeleteStory AdminActionKind = "delete_story"
)

// IsValid reports whether k is a known action kind.
func (k AdminActionKind) IsValid() bool {
	switch k {
	case ActionAdminLogin, ActionBlockUser, ActionUnblockUser, ActionDeleteUser, ActionDeleteStory:
		return true
	}
	return false
}

// AdminActionLog is an append-only audit record.
type AdminActionLog struct {
	ID        string          `json:"id" db:"id"`
	Kind      AdminActionKind `json:"kind" db:"kind"`
	ActorID   string          `json:"actor_id" db:"actor_id"`
	TargetID  *string         `json:"target_id,omitempty" db:"target_id"`
	Reason    *string         `json:"reason,omitempty" db:"reason"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// PlatformStats aggregates counters for the admin dashboard.
type PlatformStats struct {
	Users struct {
		Total    int `json:"total"`
		Active   int `json:"active"`
		Disabled int `json:"disabled"`
	} `json:"users"`
	Stories struct {
		Total      int `json:"total"`
		Processing int `json:"processing"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
	} `json:"stories"`
	Reviews struct {
		Total int `json:"total"`
	} `json:"reviews"`
	AdminActionsLast30Days int       `json:"admin_actions_last_30_days"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// Review is a rating left by a story owner.
type Review struct {
	ID        string    `json:"id" db:"id"`
	StoryID   string    `json:"story_id" db:"story_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Feedback  *string   `json:"feedback,omitempty" db:"feedback"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
