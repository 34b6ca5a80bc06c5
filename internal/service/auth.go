package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cashdrop/internal/model"
)

var (
	ErrLoginTaken         = errors.New("login already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
)

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

func (s *AuthService) Register(ctx context.Context, login, password, role, displayName string) (*model.User, error) {
	switch role {
	case model.RoleCustomer, model.RoleRunner, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: role %q", ErrInvalidInput, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (login, password_hash, role, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, login, role, COALESCE(display_name, ''), account_status, created_at`
	row := s.db.QueryRowContext(ctx, query, login, hash, role, displayName)

	var user model.User
	if err := row.Scan(&user.ID, &user.Login, &user.Role, &user.DisplayName, &user.AccountStatus, &user.CreatedAt); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.PasswordHash = hash

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	query := `SELECT id, login, password_hash, role, COALESCE(display_name, ''), linked_bank, account_status, created_at
		FROM users WHERE login = $1`
	row := s.db.QueryRowContext(ctx, query, login)

	var user model.User
	var linkedBank sql.NullString
	err := row.Scan(&user.ID, &user.Login, &user.PasswordHash, &user.Role, &user.DisplayName,
		&linkedBank, &user.AccountStatus, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if linkedBank.Valid {
		user.LinkedBank = &linkedBank.String
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetUser resolves the current actor's full profile; operations requiring
// an identity fail closed when it is missing.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT id, login, role, COALESCE(display_name, ''), linked_bank, account_status, created_at
		FROM users WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, userID)

	var user model.User
	var linkedBank sql.NullString
	err := row.Scan(&user.ID, &user.Login, &user.Role, &user.DisplayName,
		&linkedBank, &user.AccountStatus, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if linkedBank.Valid {
		user.LinkedBank = &linkedBank.String
	}

	return &user, nil
}
