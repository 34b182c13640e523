package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
)

type roomFixture struct {
	svc         *RoomService
	users       *repository.InMemoryUserRepo
	memberships *repository.InMemoryMembershipRepo
	staff       *models.User
	member      *models.User
}

func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	users := repository.NewInMemoryUserRepo()
	rooms := repository.NewInMemoryRoomRepo()
	memberships := repository.NewInMemoryMembershipRepo(users)

	staff, err := users.Create("admin", "x", true)
	require.NoError(t, err)
	member, err := users.Create("alice", "x", false)
	require.NoError(t, err)

	return &roomFixture{
		svc:         NewRoomService(rooms, memberships, users),
		users:       users,
		memberships: memberships,
		staff:       staff,
		member:      member,
	}
}

func TestCreateRoom_StaffOnly(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.svc.CreateRoom("general", "", false, f.member)
	assert.ErrorIs(t, err, ErrForbidden)

	room, err := f.svc.CreateRoom("general", "town square", false, f.staff)
	require.NoError(t, err)
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, f.staff.ID, room.OwnerID)

	isMember, err := f.memberships.IsMember(room.ID, f.staff.ID)
	require.NoError(t, err)
	assert.True(t, isMember, "creator becomes a member")
}

func TestCreateRoom_NameValidation(t *testing.T) {
	f := newRoomFixture(t)

	_, err := f.svc.CreateRoom("x", "", false, f.staff)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListRooms_Visibility(t *testing.T) {
	f := newRoomFixture(t)

	public, err := f.svc.CreateRoom("public", "", false, f.staff)
	require.NoError(t, err)
	private, err := f.svc.CreateRoom("private", "", true, f.staff)
	require.NoError(t, err)
	joined, err := f.svc.CreateRoom("joined", "", true, f.staff)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddMember(joined.ID, f.member.ID, f.staff))

	visible, err := f.svc.ListRooms(f.member)
	require.NoError(t, err)
	ids := make([]int, 0, len(visible))
	for _, room := range visible {
		ids = append(ids, room.ID)
	}
	assert.ElementsMatch(t, []int{public.ID, joined.ID}, ids)

	all, err := f.svc.ListRooms(f.staff)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	_ = private
}

func TestAddMember_StaffOnly(t *testing.T) {
	f := newRoomFixture(t)
	room, err := f.svc.CreateRoom("general", "", false, f.staff)
	require.NoError(t, err)

	err = f.svc.AddMember(room.ID, f.member.ID, f.member)
	assert.ErrorIs(t, err, ErrForbidden)

	err = f.svc.AddMember(999, f.member.ID, f.staff)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, f.svc.AddMember(room.ID, f.member.ID, f.staff))
	isMember, _ := f.memberships.IsMember(room.ID, f.member.ID)
	assert.True(t, isMember)
}

func TestDeleteRoom_CascadesMemberships(t *testing.T) {
	f := newRoomFixture(t)
	room, err := f.svc.CreateRoom("general", "", false, f.staff)
	require.NoError(t, err)
	require.NoError(t, f.svc.AddMember(room.ID, f.member.ID, f.staff))

	assert.ErrorIs(t, f.svc.DeleteRoom(room.ID, f.member), ErrForbidden)

	require.NoError(t, f.svc.DeleteRoom(room.ID, f.staff))
	_, err = f.svc.GetRoom(room.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	isMember, _ := f.memberships.IsMember(room.ID, f.member.ID)
	assert.False(t, isMember)
}
