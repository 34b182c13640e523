package services

import (
	"fmt"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

type RoomService struct {
	rooms       repository.RoomRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
}

func NewRoomService(rr repository.RoomRepository, mr repository.MembershipRepository, ur repository.UserRepository) *RoomService {
	return &RoomService{rooms: rr, memberships: mr, users: ur}
}

// CreateRoom is restricted to staff users. The creator becomes the
// room's owner and, implicitly, its first member.
func (s *RoomService) CreateRoom(name, description string, isPrivate bool, creator *models.User) (*models.Room, error) {
	if !creator.IsStaff {
		return nil, ErrForbidden
	}
	if len(name) < 2 {
		return nil, fmt.Errorf("%w: room name too short (minimum 2 characters)", ErrValidation)
	}
	if len(name) > 100 {
		return nil, fmt.Errorf("%w: room name too long (maximum 100 characters)", ErrValidation)
	}

	room, err := s.rooms.Create(name, description, isPrivate, creator.ID)
	if err != nil {
		return nil, err
	}
	if err := s.memberships.AddMember(room.ID, creator.ID); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns every room for staff, otherwise public rooms plus
// rooms the user owns or belongs to.
func (s *RoomService) ListRooms(user *models.User) ([]models.Room, error) {
	if user.IsStaff {
		return s.rooms.List()
	}
	return s.rooms.ListAccessible(user.ID, s.memberships)
}

func (s *RoomService) GetRoom(roomID int) (*models.Room, error) {
	return s.rooms.FindByID(roomID)
}

// AddMember grants a user access to a room's live sessions. Staff only.
func (s *RoomService) AddMember(roomID, userID int, actor *models.User) error {
	if !actor.IsStaff {
		return ErrForbidden
	}
	if _, err := s.rooms.FindByID(roomID); err != nil {
		return err
	}
	if _, err := s.users.FindByID(userID); err != nil {
		return err
	}
	return s.memberships.AddMember(roomID, userID)
}

// DeleteRoom removes a room and cascades to its memberships. Staff only.
func (s *RoomService) DeleteRoom(roomID int, actor *models.User) error {
	if !actor.IsStaff {
		return ErrForbidden
	}
	if err := s.rooms.Delete(roomID); err != nil {
		return err
	}
	return s.memberships.RemoveAllForRoom(roomID)
}
