// Package events defines the wire payloads exchanged with connected
// clients. Every outbound event carries a "type" tag; sessions and the
// moderation pipeline construct them, the hub fans them out verbatim.
package events

import (
	"encoding/json"
	"time"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
)

const (
	TypeChatMessage   = "chat_message"
	TypeUpdateMembers = "update_members"
	TypeUserNotMember = "user_not_member"
)

// Inbound is the only event clients send: a chat message submission.
type Inbound struct {
	Message string `json:"message"`
}

type Author struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// ChatMessage announces an approved message to a room. It is the only
// signal of approval; rejected messages produce no event at all.
type ChatMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Author    Author `json:"author"`
}

func NewChatMessage(msg *models.Message, author *models.User) ChatMessage {
	return ChatMessage{
		Type:      TypeChatMessage,
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		Author: Author{
			ID:       author.ID,
			Username: author.Username,
		},
	}
}

// UpdateMembers carries the room's current online member names. Sent on
// every presence change.
type UpdateMembers struct {
	Type    string   `json:"type"`
	Members []string `json:"members"`
}

func NewUpdateMembers(members []string) UpdateMembers {
	if members == nil {
		members = []string{}
	}
	return UpdateMembers{Type: TypeUpdateMembers, Members: members}
}

// UserNotMember is sent exactly once before closing the connection of a
// user who is not authorized to join the room.
type UserNotMember struct {
	Type string `json:"type"`
}

func NewUserNotMember() UserNotMember {
	return UserNotMember{Type: TypeUserNotMember}
}

func Marshal(event any) ([]byte, error) {
	return json.Marshal(event)
}
