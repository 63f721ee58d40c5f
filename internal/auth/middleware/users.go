package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mind-engage/ielts-practice/internal/rbac"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUser        = errors.New("invalid user")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

type User struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	TargetBand float64 `json:"target_band,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

// Users keeps local accounts in the users table.
type Users struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsers(db *sql.DB) *Users { return &Users{db: db, now: time.Now} }

// Create registers a user with a bcrypt password hash. An empty role
// means student.
func (u *Users) Create(ctx context.Context, username, password, role string, targetBand float64) (User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return User{}, fmt.Errorf("%w: username required", ErrInvalidUser)
	}
	if len(password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}
	if role == "" {
		role = rbac.RoleStudent
	}
	if !rbac.ValidRole(role) {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	if targetBand < 0 || targetBand > 9 {
		return User{}, fmt.Errorf("%w: target band %v outside 0-9", ErrInvalidUser, targetBand)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	usr := User{ID: uuid.NewString(), Username: username, Role: role, TargetBand: targetBand, CreatedAt: u.now().Unix()}
	res, err := u.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role, target_band, created_at)
		VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (username) DO NOTHING`,
		usr.ID, usr.Username, string(hash), usr.Role, usr.TargetBand, usr.CreatedAt)
	if err != nil {
		return User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return User{}, ErrUserExists
	}
	return usr, nil
}

// Authenticate checks a username/password pair.
func (u *Users) Authenticate(ctx context.Context, username, password string) (User, error) {
	var usr User
	var hash string
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, target_band, created_at FROM users WHERE username=$1`,
		strings.ToLower(strings.TrimSpace(username)),
	).Scan(&usr.ID, &usr.Username, &hash, &usr.Role, &usr.TargetBand, &usr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

// ChangePassword replaces the hash after verifying the old password.
func (u *Users) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	var stored string
	err := u.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	_, err = u.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return err
}

// RoleOf returns the stored role for a user id.
func (u *Users) RoleOf(ctx context.Context, userID string) (string, error) {
	var role string
	err := u.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return role, err
}

// SetRole changes a user's role. It takes effect on the next request
// through AttachRoleFromDB.
func (u *Users) SetRole(ctx context.Context, userID, role string) error {
	if !rbac.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	res, err := u.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account if the username is free.
func (u *Users) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	_, err = u.Create(ctx, username, password, rbac.RoleAdmin, 0)
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	return err == nil, err
}
