package models

import "time"

type MenteeConversation struct {
	ID           int64     `json:"id" db:"id"`
	Conversation string    `json:"conversation" db:"conversation"`
	SessionID    string    `json:"session_id" db:"session_id"`
	Messages     Messages  `json:"messages" db:"messages"`
	MessageCount int       `json:"message_count" db:"message_count"`
	DateCreated  time.Time `json:"date_created" db:"date_created"`
	DateModified time.Time `json:"date_modified" db:"date_modified"`
}
