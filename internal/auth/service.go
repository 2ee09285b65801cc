package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/creditoya/backend/internal/db"
	"github.com/creditoya/backend/internal/validate"
	"github.com/go-playground/validator/v10"
)

var (
	ErrAccountExists      = errors.New("account_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

type Repository interface {
	CreateUser(ctx context.Context, in db.CreateUserInput) (*db.User, error)
	GetUserByRUT(ctx context.Context, rut string) (*db.User, error)
	GetUserByID(ctx context.Context, id int64) (*db.User, error)
}

type Service struct {
	repo      Repository
	jwt       *JWTManager
	hasher    *PasswordHasher
	accessTTL time.Duration
	validator *validator.Validate
}

type RegisterInput struct {
	RUT      string `json:"rut"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	RUT      string `json:"rut"`
	Password string `json:"password"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *db.User  `json:"user"`
}

func NewService(repo Repository, jwt *JWTManager, hasher *PasswordHasher, accessTTL time.Duration) *Service {
	return &Service{repo: repo, jwt: jwt, hasher: hasher, accessTTL: accessTTL, validator: validator.New()}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	rut, err := validate.ParseRUT(in.RUT)
	if err != nil {
		return nil, validate.Field("rut", "invalid rut")
	}
	fullName := strings.Join(strings.Fields(in.FullName), " ")
	if len([]rune(fullName)) < 3 {
		return nil, validate.Field("full_name", "must have at least 3 characters")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validator.Var(email, "required,email"); err != nil {
		return nil, validate.Field("email", "invalid email")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validate.Field("password", fmt.Sprintf("must have at least %d characters", minPasswordLength))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.CreateUser(ctx, db.CreateUserInput{
		RUT:          rut.String(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return s.issue(user)
}

// Login answers ErrInvalidCredentials for both unknown RUTs and wrong
// passwords.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if strings.TrimSpace(in.RUT) == "" {
		return nil, validate.Field("rut", "is required")
	}
	if in.Password == "" {
		return nil, validate.Field("password", "is required")
	}
	user, err := s.repo.GetUserByRUT(ctx, validate.NormalizeRUT(in.RUT))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *Service) Me(ctx context.Context, userID int64) (*db.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.jwt.Parse(token)
}

func (s *Service) issue(user *db.User) (*Session, error) {
	token, expiresAt, err := s.jwt.Mint(user.ID, user.RUT, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
