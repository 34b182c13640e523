package services

import (
	"github.com/luisclicio/fastzap-chat-app-tech-test/events"
	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

type MessageService struct {
	messages    repository.MessageRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
}

func NewMessageService(mr repository.MessageRepository, memberships repository.MembershipRepository, ur repository.UserRepository) *MessageService {
	return &MessageService{messages: mr, memberships: memberships, users: ur}
}

// MessageView is the listing shape: the stored message plus the author
// reference, matching the chat_message wire event.
type MessageView struct {
	models.Message
	Author events.Author `json:"author"`
}

// ListApproved returns a room's approved messages in submission order.
// Only room members and staff may read history; pending and rejected
// messages are never listed.
func (s *MessageService) ListApproved(roomID, limit int, viewer *models.User) ([]MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	if !viewer.IsStaff {
		isMember, err := s.memberships.IsMember(roomID, viewer.ID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, repository.ErrNotAMember
		}
	}

	msgs, err := s.messages.ListApproved(roomID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		author := events.Author{ID: msg.AuthorID, Username: "unknown"}
		if user, err := s.users.FindByID(msg.AuthorID); err == nil {
			author.Username = user.Username
		}
		views = append(views, MessageView{Message: msg, Author: author})
	}
	return views, nil
}
