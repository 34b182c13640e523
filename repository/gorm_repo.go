package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
)

// OpenGorm opens the SQLite database at dsn and migrates the schema. The
// returned handle backs the Gorm* repositories.
func OpenGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMembership{},
		&models.Message{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo { return &GormUserRepo{db: db} }

func (r *GormUserRepo) Create(username, hashedPwd string, isStaff bool) (*models.User, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}
	u := &models.User{
		Username:  username,
		Password:  hashedPwd,
		IsStaff:   isStaff,
		CreatedAt: time.Now(),
	}
	if err := r.db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *GormUserRepo) FindByUsername(username string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &u, nil
}

func (r *GormUserRepo) FindByID(id int) (*models.User, error) {
	var u models.User
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &u, nil
}

type GormRoomRepo struct {
	db *gorm.DB
}

func NewGormRoomRepo(db *gorm.DB) *GormRoomRepo { return &GormRoomRepo{db: db} }

func (r *GormRoomRepo) Create(name, description string, isPrivate bool, ownerID int) (*models.Room, error) {
	var count int64
	if err := r.db.Model(&models.Room{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicate
	}
	room := &models.Room{
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		OwnerID:     ownerID,
	}
	if err := r.db.Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func (r *GormRoomRepo) FindByID(id int) (*models.Room, error) {
	var room models.Room
	if err := r.db.First(&room, id).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &room, nil
}

func (r *GormRoomRepo) List() ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.Order("id").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *GormRoomRepo) ListAccessible(userID int, _ MembershipRepository) ([]models.Room, error) {
	memberOf := r.db.Model(&models.RoomMembership{}).Select("room_id").Where("user_id = ?", userID)

	var rooms []models.Room
	err := r.db.
		Where("is_private = ?", false).
		Or("owner_id = ?", userID).
		Or("id IN (?)", memberOf).
		Order("id").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *GormRoomRepo) Delete(id int) error {
	tx := r.db.Delete(&models.Room{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	// Explicit cascade: room deletion takes memberships and messages with it.
	if err := r.db.Where("room_id = ?", id).Delete(&models.RoomMembership{}).Error; err != nil {
		return err
	}
	return r.db.Where("room_id = ?", id).Delete(&models.Message{}).Error
}

type GormMembershipRepo struct {
	db *gorm.DB
}

func NewGormMembershipRepo(db *gorm.DB) *GormMembershipRepo { return &GormMembershipRepo{db: db} }

func (r *GormMembershipRepo) AddMember(roomID, userID int) error {
	now := time.Now()
	membership := models.RoomMembership{
		RoomID:    roomID,
		UserID:    userID,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	return r.db.
		Where(models.RoomMembership{RoomID: roomID, UserID: userID}).
		FirstOrCreate(&membership).Error
}

func (r *GormMembershipRepo) RemoveMember(roomID, userID int) error {
	tx := r.db.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMembership{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotAMember
	}
	return nil
}

func (r *GormMembershipRepo) RemoveAllForRoom(roomID int) error {
	return r.db.Where("room_id = ?", roomID).Delete(&models.RoomMembership{}).Error
}

func (r *GormMembershipRepo) IsMember(roomID, userID int) (bool, error) {
	var count int64
	err := r.db.Model(&models.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormMembershipRepo) SetOnline(roomID, userID int, online bool) error {
	tx := r.db.Model(&models.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{"is_online": online, "updated_at": time.Now()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotAMember
	}
	return nil
}

func (r *GormMembershipRepo) ListOnlineMembers(roomID int) ([]string, error) {
	names := make([]string, 0)
	err := r.db.Model(&models.RoomMembership{}).
		Joins("JOIN users ON users.id = room_memberships.user_id").
		Where("room_memberships.room_id = ? AND room_memberships.is_online = ?", roomID, true).
		Order("users.username").
		Pluck("users.username", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo { return &GormMessageRepo{db: db} }

func (r *GormMessageRepo) CreatePending(roomID, authorID int, content string) (*models.Message, error) {
	now := time.Now()
	msg := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		Status:    models.MessageStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *GormMessageRepo) SetStatus(id string, status models.MessageStatus) error {
	if status != models.MessageStatusApproved && status != models.MessageStatusRejected {
		return ErrInvalidTransition
	}

	// The pending-only predicate makes the transition atomic and idempotent
	// under concurrent moderation completions.
	tx := r.db.Model(&models.Message{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		var count int64
		if err := r.db.Model(&models.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *GormMessageRepo) Get(id string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &msg, nil
}

func (r *GormMessageRepo) ListApproved(roomID, limit int) ([]models.Message, error) {
	query := r.db.
		Where("room_id = ? AND status = ?", roomID, models.MessageStatusApproved).
		Order("created_at")
	if limit > 0 {
		var count int64
		if err := r.db.Model(&models.Message{}).
			Where("room_id = ? AND status = ?", roomID, models.MessageStatusApproved).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if offset := int(count) - limit; offset > 0 {
			query = query.Offset(offset)
		}
	}
	var msgs []models.Message
	if err := query.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func translateGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
