package models

import "time"

// RoomMembership authorizes a user to join a room's live session and
// carries the transient online flag for presence broadcasts. At most one
// row exists per (room, user) pair.
type RoomMembership struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	RoomID    int       `json:"room_id" gorm:"uniqueIndex:idx_room_user"`
	UserID    int       `json:"user_id" gorm:"uniqueIndex:idx_room_user"`
	IsOnline  bool      `json:"is_online"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
