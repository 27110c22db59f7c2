// Package identity stores recipient and admin accounts keyed by email.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"donateblood/m/domain"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email
// or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Store struct {
	db *sqlx.DB
	// defaultPassword is used for recipients created without one. When
	// empty a random credential is generated per recipient.
	defaultPassword string
}

func New(db *sqlx.DB, defaultPassword string) *Store {
	return &Store{db: db, defaultPassword: defaultPassword}
}

// NormalizeEmail returns the identity key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindOrCreate returns the recipient id for p.Email. A missing recipient
// is created with rawPassword (or a default credential); an existing one
// has its profile fields overwritten.
func (s *Store) FindOrCreate(ctx context.Context, p domain.Profile, rawPassword string) (int64, error) {
	email := NormalizeEmail(p.Email)
	if email == "" {
		return 0, domain.Invalid("email", "Email is required")
	}

	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`SELECT id FROM users WHERE email = ?`), email)
	switch {
	case err == nil:
		return id, s.Update(ctx, id, p)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("find user by email: %w", err)
	}

	if rawPassword == "" {
		rawPassword = s.defaultPassword
	}
	if rawPassword == "" {
		rawPassword = uuid.NewString()
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO users (username, email, password, phone, dateofbirth, address, gender, role, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		strings.TrimSpace(p.Name), email, string(hashed), strings.TrimSpace(p.Phone), strings.TrimSpace(p.DateOfBirth),
		strings.TrimSpace(p.Address), strings.TrimSpace(p.Gender), domain.RoleRecipient, now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create recipient: %w", err)
	}
	return id, nil
}

// Update overwrites the mutable profile fields of user id.
func (s *Store) Update(ctx context.Context, id int64, p domain.Profile) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET username = ?, phone = ?, dateofbirth = ?, address = ?, gender = ? WHERE id = ?`),
		strings.TrimSpace(p.Name), strings.TrimSpace(p.Phone), strings.TrimSpace(p.DateOfBirth),
		strings.TrimSpace(p.Address), strings.TrimSpace(p.Gender), id)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "user", ID: id}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(`SELECT id, username, email, password, phone, dateofbirth, address, gender, role, hospital_id, created_at
        FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Entity: "user", ID: id}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// CreateAdmin registers an administrator. hospitalID nil creates an admin
// that is not bound to a hospital.
func (s *Store) CreateAdmin(ctx context.Context, name, email, password string, hospitalID *int64) (int64, error) {
	var verr domain.ValidationError
	email = NormalizeEmail(email)
	if strings.TrimSpace(name) == "" {
		verr.Add("username", "Name is required")
	}
	if email == "" {
		verr.Add("email", "Email is required")
	}
	if password == "" {
		verr.Add("password", "Password is required")
	}
	if err := verr.OrNil(); err != nil {
		return 0, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	var id int64
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO users (username, email, password, role, hospital_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		strings.TrimSpace(name), email, string(hashed), domain.RoleAdmin, hospitalID, now()).Scan(&id)
	if err != nil {
		return 0, domain.Invalid("email", "Email already exists")
	}
	return id, nil
}

// Authenticate checks an admin's credentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(`SELECT id, username, email, password, role, hospital_id FROM users WHERE email = ? AND role = ?`),
		NormalizeEmail(email), domain.RoleAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user.Password = ""
	return user, nil
}

func (s *Store) SetPassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return domain.Invalid("new_password", "new_password is required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password = ? WHERE id = ?`), string(hashed), id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// EmailExists reports whether any account uses email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
