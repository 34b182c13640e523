package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
)

type RoomRepository interface {
	Create(name, description string, isPrivate bool, ownerID int) (*models.Room, error)
	FindByID(id int) (*models.Room, error)
	List() ([]models.Room, error)
	// ListAccessible returns public rooms plus rooms the user owns or is a
	// member of.
	ListAccessible(userID int, memberships MembershipRepository) ([]models.Room, error)
	Delete(id int) error
}

type InMemoryRoomRepo struct {
	mu   sync.RWMutex
	seq  int
	data map[int]*models.Room
}

func NewInMemoryRoomRepo() *InMemoryRoomRepo {
	return &InMemoryRoomRepo{
		data: make(map[int]*models.Room),
	}
}

func (r *InMemoryRoomRepo) Create(name, description string, isPrivate bool, ownerID int) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.data {
		if room.Name == name {
			return nil, ErrDuplicate
		}
	}

	r.seq++
	now := time.Now()
	room := &models.Room{
		ID:          r.seq,
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.data[room.ID] = room
	copied := *room
	return &copied, nil
}

func (r *InMemoryRoomRepo) FindByID(id int) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *InMemoryRoomRepo) List() ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]models.Room, 0, len(r.data))
	for _, v := range r.data {
		rooms = append(rooms, *v)
	}
	sortRooms(rooms)
	return rooms, nil
}

func (r *InMemoryRoomRepo) ListAccessible(userID int, memberships MembershipRepository) ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]models.Room, 0)
	for _, room := range r.data {
		if !room.IsPrivate || room.OwnerID == userID {
			rooms = append(rooms, *room)
			continue
		}
		isMember, err := memberships.IsMember(room.ID, userID)
		if err != nil {
			return nil, err
		}
		if isMember {
			rooms = append(rooms, *room)
		}
	}
	sortRooms(rooms)
	return rooms, nil
}

func (r *InMemoryRoomRepo) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func sortRooms(rooms []models.Room) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
}
