package entity

import "time"

// Log is an audit record of a manager or system action on a poll.
type Log struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	PollID    *string   `json:"poll_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
