package models

import "time"

type MessageStatus string

const (
	MessageStatusPending  MessageStatus = "pending"
	MessageStatusApproved MessageStatus = "approved"
	MessageStatusRejected MessageStatus = "rejected"
)

// Message starts pending and transitions exactly once to approved or
// rejected when moderation completes. Only approved messages are ever
// broadcast or listed.
type Message struct {
	ID        string        `json:"id" gorm:"primaryKey;size:36"`
	RoomID    int           `json:"room_id" gorm:"index"`
	AuthorID  int           `json:"author_id"`
	Content   string        `json:"content"`
	Status    MessageStatus `json:"status" gorm:"size:10"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
