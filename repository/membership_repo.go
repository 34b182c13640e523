package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
)

type MembershipRepository interface {
	AddMember(roomID, userID int) error
	RemoveMember(roomID, userID int) error
	// RemoveAllForRoom is the explicit cascade used when a room is deleted.
	RemoveAllForRoom(roomID int) error
	IsMember(roomID, userID int) (bool, error)
	// SetOnline flips the presence flag for an existing membership. It fails
	// with ErrNotAMember when no membership row exists.
	SetOnline(roomID, userID int, online bool) error
	// ListOnlineMembers returns the usernames of the room's online members.
	ListOnlineMembers(roomID int) ([]string, error)
}

type InMemoryMembershipRepo struct {
	mu    sync.RWMutex
	seq   int
	data  map[int]*models.RoomMembership // by membership id
	byRU  map[string]int                 // "roomID:userID" -> membership id
	users UserRepository
}

func NewInMemoryMembershipRepo(users UserRepository) *InMemoryMembershipRepo {
	return &InMemoryMembershipRepo{
		data:  make(map[int]*models.RoomMembership),
		byRU:  make(map[string]int),
		users: users,
	}
}

func (r *InMemoryMembershipRepo) AddMember(roomID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := formatRoomUserKey(roomID, userID)
	if _, exists := r.byRU[key]; exists {
		return nil // already a member
	}

	r.seq++
	now := time.Now()
	membership := &models.RoomMembership{
		ID:        r.seq,
		RoomID:    roomID,
		UserID:    userID,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	r.data[membership.ID] = membership
	r.byRU[key] = membership.ID
	return nil
}

func (r *InMemoryMembershipRepo) RemoveMember(roomID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := formatRoomUserKey(roomID, userID)
	membershipID, exists := r.byRU[key]
	if !exists {
		return ErrNotAMember
	}
	delete(r.data, membershipID)
	delete(r.byRU, key)
	return nil
}

func (r *InMemoryMembershipRepo) RemoveAllForRoom(roomID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, membership := range r.data {
		if membership.RoomID == roomID {
			delete(r.data, id)
			delete(r.byRU, formatRoomUserKey(membership.RoomID, membership.UserID))
		}
	}
	return nil
}

func (r *InMemoryMembershipRepo) IsMember(roomID, userID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byRU[formatRoomUserKey(roomID, userID)]
	return exists, nil
}

func (r *InMemoryMembershipRepo) SetOnline(roomID, userID int, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	membershipID, exists := r.byRU[formatRoomUserKey(roomID, userID)]
	if !exists {
		return ErrNotAMember
	}
	membership := r.data[membershipID]
	membership.IsOnline = online
	membership.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryMembershipRepo) ListOnlineMembers(roomID int) ([]string, error) {
	r.mu.RLock()
	var online []int
	for _, membership := range r.data {
		if membership.RoomID == roomID && membership.IsOnline {
			online = append(online, membership.UserID)
		}
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(online))
	for _, userID := range online {
		user, err := r.users.FindByID(userID)
		if err != nil {
			continue
		}
		names = append(names, user.Username)
	}
	sort.Strings(names)
	return names, nil
}

func formatRoomUserKey(roomID, userID int) string {
	return fmt.Sprintf("%d:%d", roomID, userID)
}
