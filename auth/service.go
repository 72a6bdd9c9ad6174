package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/krishkalaria12/snap-classify/config"
	"github.com/krishkalaria12/snap-classify/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated    = errors.New("user not logged in")
	ErrInvalidCredentials = errors.New("invalid identity or password")
	ErrUserExists         = errors.New("email or username already taken")
	ErrInvalidInput       = errors.New("email, username and password are required")
)

// Service issues and validates session tokens for users stored in the
// database.
type Service struct {
	db            *gorm.DB
	auth          *auth.Service
	audience      string
	tokenDuration time.Duration
}

func NewService(db *gorm.DB, cfg config.AuthConfig) *Service {
	secret := cfg.JWTSecret
	options := auth.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return secret, nil
		}),
		TokenDuration:  cfg.TokenDuration,
		CookieDuration: cfg.CookieDuration,
		Issuer:         cfg.Issuer,
		URL:            cfg.URL,
		AvatarStore:    avatar.NewLocalFS(cfg.AvatarDir),
	}

	return &Service{
		db:            db,
		auth:          auth.NewService(options),
		audience:      cfg.Issuer,
		tokenDuration: cfg.TokenDuration,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, username, fullName, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" || !isEmail(email) {
		return nil, ErrInvalidInput
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    email,
		Username: username,
		FullName: fullName,
		Password: hash,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks the credentials and returns the user with a signed token.
func (s *Service) Login(ctx context.Context, identity, password string) (*models.User, string, error) {
	user, err := s.ValidateUserCredentials(ctx, identity, password)
	if err != nil {
		return nil, "", err
	}

	tokenStr, err := s.Token(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, tokenStr, nil
}

// ValidateUserCredentials accepts either an email or a username as identity.
func (s *Service) ValidateUserCredentials(ctx context.Context, identity, password string) (*models.User, error) {
	var user *models.User
	var err error

	if isEmail(identity) {
		user, err = s.findUser(ctx, "email = ?", identity)
	} else {
		user, err = s.findUser(ctx, "username = ?", identity)
	}
	if err != nil {
		return nil, err
	}

	if user == nil || !checkPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) Token(user *models.User) (string, error) {
	now := time.Now()
	claims := token.Claims{
		User: &token.User{
			ID:    strconv.FormatUint(uint64(user.ID), 10),
			Name:  user.FullName,
			Email: user.Email,
			Attributes: map[string]interface{}{
				"username": user.Username,
			},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.auth.TokenService().Issuer,
			Audience:  []string{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	return s.auth.TokenService().Token(claims)
}

// Parse validates a token and returns the caller's user id.
func (s *Service) Parse(tokenStr string) (uint, error) {
	claims, err := s.auth.TokenService().Parse(tokenStr)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	if claims.User == nil {
		return 0, ErrUnauthenticated
	}

	userID, err := strconv.ParseUint(claims.User.ID, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrUnauthenticated
	}

	return uint(userID), nil
}

// User returns the user with the given id, or nil when it does not exist.
func (s *Service) User(ctx context.Context, id uint) (*models.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Service) findUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(hashed), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func isEmail(identity string) bool {
	_, err := mail.ParseAddress(identity)
	return err == nil
}
