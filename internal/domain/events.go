package domain

import "time"

// JobType identifies a background job handler
type JobType string

const (
	JobTypeDuelResolve    JobType = "duel_resolve"
	JobTypeTutorialReward JobType = "tutorial_reward"
)

// Job is the persisted state of a background job. Attempts is carried with
// the job across retries.
type Job struct {
	ID          string    `json:"id"`
	Type        JobType   `json:"type"`
	DuelID      int64     `json:"duel_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	ExpAmount   int64     `json:"exp_amount,omitempty"`
	TutorialKey string    `json:"tutorial_key,omitempty"`
	Attempts    int       `json:"attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NotificationType names an alert sent to a user
type NotificationType string

const (
	NotificationLevelUp       NotificationType = "levelup"
	NotificationDuelChallenge NotificationType = "duel_challenge"
	NotificationDuelDeclined  NotificationType = "duel_declined"
	NotificationDuelWin       NotificationType = "duel_win"
	NotificationDuelLoss      NotificationType = "duel_loss"
	NotificationTutorial      NotificationType = "tutorial"
)

// Notification is a fire-and-forget alert for a user
type Notification struct {
	ID         string           `json:"id"`
	UserID     int64            `json:"user_id"`
	FromUserID int64            `json:"from_user_id"`
	Type       NotificationType `json:"type"`
	ContentID  int64            `json:"content_id"`
	Payload    map[string]any   `json:"payload,omitempty"`
	AutoRead   bool             `json:"auto_read"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ActivityType is a forum activity that can feed the pet engine
type ActivityType string

const (
	ActivityPostCreated    ActivityType = "post_created"
	ActivityThreadCreated  ActivityType = "thread_created"
	ActivityReactionAdded  ActivityType = "reaction_added"
	ActivityAvatarUploaded ActivityType = "avatar_uploaded"
)

// ActivityEvent is a forum event delivered by the host platform
type ActivityEvent struct {
	Type      ActivityType `json:"type"`
	UserID    int64        `json:"user_id"`
	ContentID int64        `json:"content_id,omitempty"`
	Position  int          `json:"position,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
