package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrNotAMember        = errors.New("user is not a member of the room")
	ErrInvalidTransition = errors.New("message status is already decided")
)
