// Package services holds the application services behind the HTTP surface:
// account management, conversations, and durable messages. The delivery core
// reaches this layer only through the narrow membership port.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cipherchat/internal/models"
	"cipherchat/internal/repositories/postgres"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = postgres.ErrUserExists
)

// bcrypt silently truncates beyond 72 bytes; reject instead.
const maxPasswordBytes = 72

// UserStore is the account persistence port.
type UserStore interface {
	Create(user *models.User) error
	FindByUsername(username string) (*models.User, error)
	FindByID(id uint) (*models.User, error)
}

// AuthService registers accounts and issues/verifies the JWTs that identify
// users before the delivery core ever sees them.
type AuthService struct {
	users     UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users UserStore, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *AuthService) Register(req *models.RegisterRequest) (*models.RegisterResponse, error) {
	if len([]byte(req.Password)) > maxPasswordBytes {
		return nil, fmt.Errorf("password is too long (max %d bytes)", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username: req.Username,
		Password: string(hash),
		IsActive: true,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return &models.RegisterResponse{Message: "User registered", UserID: user.ID}, nil
}

// Login authenticates the credentials and returns a bearer token.
func (s *AuthService) Login(req *models.LoginRequest) (*models.TokenResponse, error) {
	user, err := s.users.FindByUsername(req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": user.Username,
		"uid": user.ID,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &models.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// VerifyIdentity validates a bearer token and returns the identity it
// carries. Called once per request and once before a websocket upgrade.
func (s *AuthService) VerifyIdentity(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	username, _ := claims["sub"].(string)
	uid, ok := claims["uid"].(float64)
	if username == "" || !ok {
		return 0, "", ErrInvalidToken
	}
	return uint(uid), username, nil
}
