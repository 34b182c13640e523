package services

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/luisclicio/fastzap-chat-app-tech-test/config"
	"github.com/luisclicio/fastzap-chat-app-tech-test/models"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/utils"
)

type AuthService struct {
	users  repository.UserRepository
	config *config.Config
}

func NewAuthService(userRepo repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{users: userRepo, config: cfg}
}

func (s *AuthService) Register(username, password string) (*models.User, error) {
	if len(username) < 3 || len(username) > 20 {
		return nil, fmt.Errorf("%w: username must be between 3 and 20 characters", ErrValidation)
	}
	if len(password) < 6 || len(password) > 100 {
		return nil, fmt.Errorf("%w: password must be between 6 and 100 characters", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(username, string(hashed), false)
}

func (s *AuthService) Login(username, password string) (string, *models.User, error) {
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.CreateToken(u.ID, u.Username)
	return token, u, err
}

func (s *AuthService) CreateToken(userID int, username string) (string, error) {
	expiry := time.Duration(s.config.JWTExpiry) * time.Hour
	return utils.GenerateJWT(s.config.JWTSecret, userID, username, expiry)
}

// ParseToken resolves a bearer credential to a verified identity. Any
// malformed, expired, or unverifiable token fails; there is no fallback
// identity.
func (s *AuthService) ParseToken(token string) (int, string, error) {
	return utils.ParseJWT(s.config.JWTSecret, token)
}
