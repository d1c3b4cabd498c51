package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordTooShort   = errors.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch   = errors.New("password and confirmation do not match")
)

type User struct {
	ID           int64  `json:"-"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	MSOID        string `json:"ms_oid,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// HasPassword reports whether local login is enabled for u.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

const userColumns = "id, uuid, name, email, password_hash, COALESCE(ms_oid, ''), created_at"

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a local user. An empty password leaves local login disabled.
func (s *Store) CreateUser(ctx context.Context, name, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	hash := ""
	if password != "" {
		if len(password) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		var err error
		if hash, err = hashPassword(password); err != nil {
			return nil, err
		}
	}

	if _, err := s.UserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u := &User{
		UUID:         uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().Format(timeLayout),
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (uuid, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.UUID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "inserting user")
	}
	u.ID, _ = res.LastInsertId()
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userWhere(ctx, "email = ?", normalizeEmail(email))
}

func (s *Store) UserByUUID(ctx context.Context, id string) (*User, error) {
	return s.userWhere(ctx, "uuid = ?", id)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg).
		Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.MSOID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying user")
	}
	return &u, nil
}

// UpsertMicrosoftUser links a Microsoft account to a local user, matching first
// on the object id and then on email. A new passwordless user is created when
// neither matches.
func (s *Store) UpsertMicrosoftUser(ctx context.Context, oid, email, name string) (*User, error) {
	email = normalizeEmail(email)
	if oid == "" && email == "" {
		return nil, errors.New("microsoft identity has neither object id nor email")
	}

	var u *User
	var err error
	if oid != "" {
		u, err = s.userWhere(ctx, "ms_oid = ?", oid)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if u == nil && email != "" {
		u, err = s.UserByEmail(ctx, email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if u == nil {
		if email == "" {
			return nil, errors.New("cannot create a user without an email")
		}
		if u, err = s.CreateUser(ctx, name, email, ""); err != nil {
			return nil, err
		}
	}

	if oid != "" && u.MSOID != oid {
		u.MSOID = oid
	}
	if name = strings.TrimSpace(name); name != "" {
		u.Name = name
	}
	_, err = s.db.ExecContext(ctx, "UPDATE users SET ms_oid = NULLIF(?, ''), name = ? WHERE id = ?", u.MSOID, u.Name, u.ID)
	if err != nil {
		return nil, errors.Wrap(err, "linking microsoft account")
	}
	return u, nil
}

// SetPassword enables local login for the user identified by id.
func (s *Store) SetPassword(ctx context.Context, id, password, confirm string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE uuid = ?", hash, id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckPassword returns the user when email and password match.
func (s *Store) CheckPassword(ctx context.Context, email, password string) (*User, error) {
	u, err := s.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	return string(hash), nil
}
